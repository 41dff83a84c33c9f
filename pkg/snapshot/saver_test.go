package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("bg")
	require.NoError(t, err)
	require.Equal(t, KindBackground, k)

	k, err = ParseKind("fg")
	require.NoError(t, err)
	require.Equal(t, KindForeground, k)

	_, err = ParseKind("xx")
	require.EqualError(t, err, "invalid capture kind 'xx'")
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")

	s := &Saver{
		Dir:    dir,
		Logger: zaptest.NewLogger(t),
	}
	err := s.Initialize()
	require.NoError(t, err)

	var paths []string
	for _, ca := range []struct {
		kind  Kind
		label string
	}{
		{KindBackground, "640x480"},
		{KindForeground, "640x480"},
		{KindBackground, "640x480"},
	} {
		var path string
		path, err = s.Save(ca.kind, ca.label, []byte{0xff, 0xd8, byte(len(paths))})
		require.NoError(t, err)
		paths = append(paths, path)
	}

	s.Close()

	require.Equal(t, []string{
		filepath.Join(dir, "640x480-bg-0000.jpg"),
		filepath.Join(dir, "640x480-fg-0000.jpg"),
		filepath.Join(dir, "640x480-bg-0001.jpg"),
	}, paths)

	for i, path := range paths {
		buf, err2 := os.ReadFile(path)
		require.NoError(t, err2)
		require.Equal(t, []byte{0xff, 0xd8, byte(i)}, buf)
	}
}

func TestSaveResetCounters(t *testing.T) {
	dir := t.TempDir()

	s := &Saver{Dir: dir}
	err := s.Initialize()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(KindForeground, "320x240", []byte{1})
	require.NoError(t, err)

	s.ResetCounters()

	path, err := s.Save(KindForeground, "320x240", []byte{2})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "320x240-fg-0000.jpg"), path)
}

func TestSaveErrors(t *testing.T) {
	s := &Saver{Dir: t.TempDir()}
	err := s.Initialize()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save("xx", "640x480", []byte{1})
	require.Error(t, err)

	_, err = s.Save(KindBackground, "", []byte{1})
	require.EqualError(t, err, "label is empty")

	_, err = s.Save(KindBackground, "640x480", nil)
	require.EqualError(t, err, "no image available")
}

func TestSaveWriteError(t *testing.T) {
	dir := t.TempDir()

	done := make(chan error, 1)

	s := &Saver{
		Dir: dir,
		OnSaved: func(_ string, err error) {
			done <- err
		},
	}
	err := s.Initialize()
	require.NoError(t, err)
	defer s.Close()

	// a directory with the same name of the file prevents the write
	err = os.Mkdir(filepath.Join(dir, "160x120-fg-0000.jpg"), 0o755)
	require.NoError(t, err)

	_, err = s.Save(KindForeground, "160x120", []byte{1})
	require.NoError(t, err)

	require.Error(t, <-done)
}
