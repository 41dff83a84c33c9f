package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var cases = []struct {
	name string
	cmd  Command
	enc  []byte
}{
	{
		"default",
		Command{Mode: 2, PacketSize: 1472},
		[]byte{0x02, 0xc0, 0x05, 0x00, 0x00},
	},
	{
		"max",
		Command{Mode: 15, PacketSize: 2048},
		[]byte{0x0f, 0x00, 0x08, 0x00, 0x00},
	},
}

func TestUnmarshal(t *testing.T) {
	for _, ca := range cases {
		t.Run(ca.name, func(t *testing.T) {
			var c Command
			err := c.Unmarshal(ca.enc)
			require.NoError(t, err)
			require.Equal(t, ca.cmd, c)
		})
	}
}

func TestMarshal(t *testing.T) {
	for _, ca := range cases {
		t.Run(ca.name, func(t *testing.T) {
			buf, err := ca.cmd.Marshal()
			require.NoError(t, err)
			require.Equal(t, ca.enc, buf)
		})
	}
}

func TestUnmarshalError(t *testing.T) {
	var c Command
	err := c.Unmarshal([]byte{1, 2, 3})
	require.EqualError(t, err, "invalid command size: 3")
}

func TestValidate(t *testing.T) {
	require.EqualError(t, Command{Mode: 16, PacketSize: 1024}.Validate(), "invalid mode: 16")
	require.EqualError(t, Command{Mode: 1, PacketSize: 9}.Validate(), "packet size (9) must be greater than 9")
	require.NoError(t, Command{Mode: 1, PacketSize: 10}.Validate())
}
