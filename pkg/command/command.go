// Package command contains the command that starts the stream of a peripheral.
package command

import (
	"encoding/binary"
	"fmt"

	"github.com/bluenviron/gocamstream/pkg/packet"
)

// Size is the size of an encoded command.
const Size = 5

// Command asks a peripheral to (re)start streaming with the given
// resolution code and datagram size.
type Command struct {
	Mode       uint8
	PacketSize uint32
}

// Validate checks the command.
func (c Command) Validate() error {
	if c.Mode > uint8(packet.FlagModeMask) {
		return fmt.Errorf("invalid mode: %d", c.Mode)
	}
	if c.PacketSize <= packet.HeaderSize {
		return fmt.Errorf("packet size (%d) must be greater than %d", c.PacketSize, packet.HeaderSize)
	}
	return nil
}

// Unmarshal decodes a command.
func (c *Command) Unmarshal(buf []byte) error {
	if len(buf) != Size {
		return fmt.Errorf("invalid command size: %d", len(buf))
	}

	c.Mode = buf[0]
	c.PacketSize = binary.LittleEndian.Uint32(buf[1:5])
	return nil
}

// Marshal encodes a command.
func (c Command) Marshal() ([]byte, error) {
	buf := make([]byte, Size)
	buf[0] = c.Mode
	binary.LittleEndian.PutUint32(buf[1:5], c.PacketSize)
	return buf, nil
}
