package imagestream

import (
	"fmt"

	"github.com/bluenviron/gocamstream/pkg/packet"
)

const (
	defaultPacketSize = 1472 // 1500 (UDP MTU) - 20 (IP header) - 8 (UDP header)
)

// Encoder fragments images into datagrams, as the peripheral does.
type Encoder struct {
	// Maximum size of a datagram.
	// It defaults to 1472.
	PacketSize int

	// Resolution code written in every datagram.
	Mode uint8

	// Number of the first datagram.
	// It defaults to 1.
	InitialPacketNumber *uint32

	// Number of the first image.
	// It defaults to 1.
	InitialImageNumber *uint32

	// Whether to skip the first-packet flag on the first datagram.
	// It defaults to false.
	NoFirstPacketFlag bool

	packetNumber uint32
	imageNumber  uint32
	firstSent    bool
}

// Initialize initializes Encoder.
func (e *Encoder) Initialize() error {
	if e.PacketSize == 0 {
		e.PacketSize = defaultPacketSize
	}
	if e.PacketSize <= packet.HeaderSize {
		return fmt.Errorf("packet size (%d) must be greater than %d", e.PacketSize, packet.HeaderSize)
	}
	if e.Mode > uint8(packet.FlagModeMask) {
		return fmt.Errorf("invalid mode: %d", e.Mode)
	}

	if e.InitialPacketNumber != nil {
		e.packetNumber = *e.InitialPacketNumber
	} else {
		e.packetNumber = 1
	}

	if e.InitialImageNumber != nil {
		e.imageNumber = *e.InitialImageNumber
	} else {
		e.imageNumber = 1
	}

	e.firstSent = e.NoFirstPacketFlag

	return nil
}

// Encode fragments an image into datagrams.
func (e *Encoder) Encode(image []byte) ([][]byte, error) {
	maxPayload := e.PacketSize - packet.HeaderSize

	n := (len(image) + maxPayload - 1) / maxPayload
	if n == 0 {
		n = 1
	}

	ret := make([][]byte, n)

	for i := range n {
		flags := packet.Flags(0).WithMode(e.Mode)

		if i == 0 {
			flags |= packet.FlagStartOfImage
			if !e.firstSent {
				flags |= packet.FlagFirstPacket
				e.firstSent = true
			}
		}
		if i == (n - 1) {
			flags |= packet.FlagEndOfImage
		}

		end := min((i+1)*maxPayload, len(image))

		buf, err := packet.Packet{
			Header: packet.Header{
				PacketNumber: e.packetNumber,
				ImageNumber:  e.imageNumber,
				Flags:        flags,
			},
			Payload: image[i*maxPayload : end],
		}.Marshal()
		if err != nil {
			return nil, err
		}

		ret[i] = buf
		e.packetNumber++
	}

	e.imageNumber++

	return ret, nil
}
