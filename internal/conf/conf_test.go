package conf

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/bluenviron/gocamstream/pkg/camera"
	"github.com/bluenviron/gocamstream/pkg/command"
)

func TestGetConfString(t *testing.T) {
	dir := t.TempDir()
	fpath := filepath.Join(dir, "camstream.yml")
	err := os.WriteFile(fpath, []byte("fileContent"), 0o644)
	require.NoError(t, err)

	for _, ca := range []struct {
		file string
		body string
		out  string
	}{
		{"", "", ""},
		{"", "configBody", "configBody"},
		{fpath, "configBody", "configBody"},
		{fpath, "", "fileContent"},
	} {
		var s string
		s, err = GetConfString(ca.file, ca.body)
		require.NoError(t, err)
		require.Equal(t, ca.out, s)
	}

	_, err = GetConfString(filepath.Join(dir, "missing.yml"), "")
	require.Error(t, err)
}

func TestNewConfDefaults(t *testing.T) {
	conf, err := NewConf("", true, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConf, *conf)
	require.Equal(t, uint8(2), conf.Mode())
	require.Equal(t, command.Command{Mode: 2, PacketSize: 1024}, conf.Command())
}

func TestNewConf(t *testing.T) {
	conf, err := NewConf(`
camera: OV5642
host: 192.168.4.1
resolution: 2592x1944
packet_size: 2048
gap_policy: deliver
bandwidth:
  window: 2s
  samples: 512
log_level: debug
`, true, nil)
	require.NoError(t, err)

	require.Equal(t, camera.ModelOV5642, conf.Camera)
	require.Equal(t, "192.168.4.1:1234", conf.CommandAddress())
	require.Equal(t, uint8(6), conf.Mode())
	require.Equal(t, uint32(2048), conf.PacketSize)
	require.Equal(t, "deliver", conf.GapPolicy)
	require.Equal(t, EstimatorConf{Window: 2 * time.Second, Samples: 512}, conf.Bandwidth)
	require.Equal(t, DefaultConf.FrameRate, conf.FrameRate)
	require.Equal(t, "debug", conf.LogLevel)
}

func TestNewConfStrict(t *testing.T) {
	_, err := NewConf("unknown_key: 1\n", true, nil)
	require.Error(t, err)

	_, err = NewConf("unknown_key: 1\n", false, nil)
	require.NoError(t, err)
}

func TestNewConfErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		yaml string
		err  string
	}{
		{
			"resolution",
			"resolution: 2592x1944\n",
			"invalid config: resolution '2592x1944' is not supported by camera OV2640",
		},
		{
			"packet size",
			"packet_size: 512\n",
			"invalid config: packet size (512) must be between 1024 and 2048",
		},
		{
			"any packet size",
			"packet_size: 9\nallow_any_packet_size: true\n",
			"invalid config: packet size (9) must be greater than 9",
		},
		{
			"datagram size",
			"packet_size: 2048\nmax_datagram_size: 1500\n",
			"invalid config: max datagram size (1500) is smaller than packet size (2048)",
		},
		{
			"queue size",
			"dispatch_queue_size: 100\n",
			"invalid config: dispatch queue size must be a power of two",
		},
		{
			"gap policy",
			"gap_policy: wait\n",
			"invalid config: invalid gap policy 'wait'",
		},
		{
			"estimator",
			"frame_rate:\n  window: 0s\n  samples: 10\n",
			"invalid config: frame rate window must be positive",
		},
		{
			"start without host",
			"start_on_launch: true\n",
			"invalid config: host is required to start the stream on launch",
		},
		{
			"camera",
			"camera: OV7670\n",
			"could not parse config: invalid camera model 'OV7670'",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			_, err := NewConf(ca.yaml, true, nil)
			require.ErrorContains(t, err, ca.err)
		})
	}
}

func TestNewConfCLI(t *testing.T) {
	app := cli.NewApp()
	app.Name = "test"

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("resolution", "", "")
	set.String("host", "", "")
	set.Uint("packet-size", 0, "")
	err := set.Parse([]string{"--resolution", "1600x1200", "--host", "camera.local", "--packet-size", "1472"})
	require.NoError(t, err)

	c := cli.NewContext(app, set, nil)

	conf, err := NewConf("resolution: 640x480\nhost: 10.0.0.1\n", true, c)
	require.NoError(t, err)

	require.Equal(t, "1600x1200", conf.Resolution)
	require.Equal(t, "camera.local", conf.Host)
	require.Equal(t, uint32(1472), conf.PacketSize)
}
