// Package packet contains the datagram format used by the camera stream.
package packet

import (
	"encoding/binary"

	"github.com/bluenviron/gocamstream/pkg/liberrors"
)

// HeaderSize is the size of the header that precedes every payload.
const HeaderSize = 9

// Flags are the flags of a header.
type Flags uint8

// flags.
const (
	FlagStartOfImage Flags = 0x80
	FlagEndOfImage   Flags = 0x40
	FlagFirstPacket  Flags = 0x20
	FlagModeMask     Flags = 0x0F
)

// StartOfImage returns whether the datagram is the first one of an image.
func (f Flags) StartOfImage() bool {
	return f&FlagStartOfImage != 0
}

// EndOfImage returns whether the datagram is the last one of an image.
func (f Flags) EndOfImage() bool {
	return f&FlagEndOfImage != 0
}

// FirstPacket returns whether the datagram is the first one sent
// since the peripheral has been commanded.
func (f Flags) FirstPacket() bool {
	return f&FlagFirstPacket != 0
}

// Mode returns the resolution code.
func (f Flags) Mode() uint8 {
	return uint8(f & FlagModeMask)
}

// WithMode returns a copy of the flags with the given resolution code.
func (f Flags) WithMode(mode uint8) Flags {
	return (f &^ FlagModeMask) | (Flags(mode) & FlagModeMask)
}

// Header is the header of a datagram.
type Header struct {
	PacketNumber uint32
	ImageNumber  uint32
	Flags        Flags
}

// Unmarshal decodes a header.
func (h *Header) Unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return liberrors.ErrMalformedDatagram{Length: len(buf)}
	}

	h.PacketNumber = binary.LittleEndian.Uint32(buf[0:4])
	h.ImageNumber = binary.LittleEndian.Uint32(buf[4:8])
	h.Flags = Flags(buf[8])
	return nil
}

// MarshalTo encodes a header into buf, that must be at least HeaderSize long.
func (h Header) MarshalTo(buf []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], h.PacketNumber)
	binary.LittleEndian.PutUint32(buf[4:8], h.ImageNumber)
	buf[8] = byte(h.Flags)
	return HeaderSize
}

// Packet is a datagram.
type Packet struct {
	Header
	Payload []byte
}

// Unmarshal decodes a datagram.
// Payload points into buf and is not copied.
func (p *Packet) Unmarshal(buf []byte) error {
	err := p.Header.Unmarshal(buf)
	if err != nil {
		return err
	}

	p.Payload = buf[HeaderSize:]
	return nil
}

// MarshalSize returns the size of the encoded datagram.
func (p Packet) MarshalSize() int {
	return HeaderSize + len(p.Payload)
}

// Marshal encodes a datagram.
func (p Packet) Marshal() ([]byte, error) {
	buf := make([]byte, p.MarshalSize())
	n := p.Header.MarshalTo(buf)
	copy(buf[n:], p.Payload)
	return buf, nil
}
