package imagestream

import (
	"bytes"
	"testing"
	"time"

	"github.com/bluenviron/gocamstream/pkg/liberrors"
	"github.com/bluenviron/gocamstream/pkg/packet"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestDecoder(t *testing.T, policy GapPolicy) (*Decoder, *testClock) {
	clock := &testClock{now: time.Date(2008, 5, 20, 22, 15, 20, 0, time.UTC)}

	d := &Decoder{
		GapPolicy: policy,
		TimeNow:   clock.Now,
	}
	err := d.Initialize()
	require.NoError(t, err)

	return d, clock
}

func mustMarshal(t *testing.T, packetNumber uint32, imageNumber uint32, flags packet.Flags, payload string) []byte {
	buf, err := packet.Packet{
		Header: packet.Header{
			PacketNumber: packetNumber,
			ImageNumber:  imageNumber,
			Flags:        flags,
		},
		Payload: []byte(payload),
	}.Marshal()
	require.NoError(t, err)
	return buf
}

func TestDecode(t *testing.T) {
	d, clock := newTestDecoder(t, GapPolicyDiscard)

	img, err := d.Decode(mustMarshal(t, 1, 1,
		packet.FlagStartOfImage|packet.FlagFirstPacket|0x02, "AB"))
	require.Equal(t, ErrMorePacketsNeeded, err)
	require.Nil(t, img)

	clock.Advance(10 * time.Millisecond)

	img, err = d.Decode(mustMarshal(t, 2, 1, packet.FlagEndOfImage|0x02, "CD"))
	require.NoError(t, err)
	require.Equal(t, &Image{
		Number:      1,
		Mode:        2,
		Payload:     []byte("ABCD"),
		CompletedAt: clock.now,
	}, img)

	require.Equal(t, 1, d.frameRate.Len())

	s := d.Stats()
	require.Equal(t, uint32(2), s.PacketNumber)
	require.Equal(t, uint32(1), s.ImageNumber)
	require.Equal(t, uint64(0), s.DroppedPackets)
	require.Equal(t, uint64(0), s.DroppedImages)
	require.Equal(t, uint64(1), s.ImagesCompleted)
	require.Equal(t, uint8(2), s.ResolutionCode)
	// two datagrams of 11 bytes in 10ms
	require.InDelta(t, 2200, s.Bandwidth, 0.001)
	require.Equal(t, float64(0), s.FrameRate)
}

func TestDecodeConcatenation(t *testing.T) {
	d, clock := newTestDecoder(t, GapPolicyDiscard)

	image := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 2000)

	e := &Encoder{PacketSize: 1024, Mode: 5}
	err := e.Initialize()
	require.NoError(t, err)

	for range 3 {
		var dgrams [][]byte
		dgrams, err = e.Encode(image)
		require.NoError(t, err)
		require.Len(t, dgrams, 10)

		var img *Image
		for i, dgram := range dgrams {
			clock.Advance(time.Millisecond)
			img, err = d.Decode(dgram)
			if i != len(dgrams)-1 {
				require.Equal(t, ErrMorePacketsNeeded, err)
			}
		}

		require.NoError(t, err)
		require.Equal(t, image, img.Payload)
		require.Equal(t, uint8(5), img.Mode)
	}

	s := d.Stats()
	require.Equal(t, uint64(3), s.ImagesCompleted)
	require.Equal(t, uint64(0), s.DroppedPackets)
	require.Equal(t, uint32(30), s.PacketNumber)
	require.Equal(t, uint32(3), s.ImageNumber)
}

func TestDecodeImageIsOwnedCopy(t *testing.T) {
	d, _ := newTestDecoder(t, GapPolicyDiscard)

	img1, err := d.Decode(mustMarshal(t, 1, 1,
		packet.FlagStartOfImage|packet.FlagEndOfImage|packet.FlagFirstPacket, "first"))
	require.NoError(t, err)

	img2, err := d.Decode(mustMarshal(t, 2, 2,
		packet.FlagStartOfImage|packet.FlagEndOfImage, "XXXXX"))
	require.NoError(t, err)

	require.Equal(t, []byte("first"), img1.Payload)
	require.Equal(t, []byte("XXXXX"), img2.Payload)
}

func TestDecodeGap(t *testing.T) {
	d, _ := newTestDecoder(t, GapPolicyDiscard)

	for i := uint32(1); i <= 5; i++ {
		flags := packet.Flags(0)
		if i == 1 {
			flags = packet.FlagStartOfImage | packet.FlagFirstPacket
		}
		_, err := d.Decode(mustMarshal(t, i, 1, flags, "x"))
		require.Equal(t, ErrMorePacketsNeeded, err)
	}

	_, err := d.Decode(mustMarshal(t, 10, 1, 0, "x"))
	require.Equal(t, liberrors.ErrImageDiscarded{ImageNumber: 1, Lost: 4}, err)

	s := d.Stats()
	require.Equal(t, uint64(4), s.DroppedPackets)
	require.Equal(t, uint64(1), s.DroppedImages)
	require.Equal(t, uint32(10), s.PacketNumber)

	// remaining datagrams of the broken image are ignored
	_, err = d.Decode(mustMarshal(t, 11, 1, packet.FlagEndOfImage, "x"))
	require.Equal(t, ErrMorePacketsNeeded, err)
	require.Equal(t, uint64(0), d.Stats().ImagesCompleted)

	// the next image is decoded
	_, err = d.Decode(mustMarshal(t, 12, 2, packet.FlagStartOfImage, "y"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	img, err := d.Decode(mustMarshal(t, 13, 2, packet.FlagEndOfImage, "z"))
	require.NoError(t, err)
	require.Equal(t, []byte("yz"), img.Payload)
}

func TestDecodeGapPolicy(t *testing.T) {
	for _, ca := range []struct {
		policy  GapPolicy
		err     error
		payload []byte
	}{
		{
			GapPolicyDiscard,
			liberrors.ErrImageDiscarded{ImageNumber: 1, Lost: 1},
			nil,
		},
		{
			GapPolicyDeliver,
			nil,
			[]byte("AB"),
		},
	} {
		t.Run(ca.policy.String(), func(t *testing.T) {
			d, _ := newTestDecoder(t, ca.policy)

			_, err := d.Decode(mustMarshal(t, 1, 1, packet.FlagStartOfImage|packet.FlagFirstPacket, "A"))
			require.Equal(t, ErrMorePacketsNeeded, err)

			img, err := d.Decode(mustMarshal(t, 3, 1, packet.FlagEndOfImage, "B"))
			require.Equal(t, ca.err, err)

			if ca.payload != nil {
				require.Equal(t, ca.payload, img.Payload)
			} else {
				require.Nil(t, img)
			}

			require.Equal(t, uint64(1), d.Stats().DroppedPackets)
		})
	}
}

func TestDecodeGapOnStartOfImage(t *testing.T) {
	d, _ := newTestDecoder(t, GapPolicyDiscard)

	_, err := d.Decode(mustMarshal(t, 1, 1, packet.FlagStartOfImage|packet.FlagFirstPacket, "A"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	// end of image 1 and image 2 are lost
	_, err = d.Decode(mustMarshal(t, 5, 3, packet.FlagStartOfImage, "C"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	img, err := d.Decode(mustMarshal(t, 6, 3, packet.FlagEndOfImage, "D"))
	require.NoError(t, err)
	require.Equal(t, []byte("CD"), img.Payload)

	s := d.Stats()
	require.Equal(t, uint64(3), s.DroppedPackets)
	require.Equal(t, uint64(3), s.DroppedImages)
}

func TestDecodeFirstPacketResets(t *testing.T) {
	d, clock := newTestDecoder(t, GapPolicyDiscard)

	_, err := d.Decode(mustMarshal(t, 1, 1, packet.FlagStartOfImage|packet.FlagEndOfImage|packet.FlagFirstPacket, "A"))
	require.NoError(t, err)

	_, err = d.Decode(mustMarshal(t, 5, 2, packet.FlagStartOfImage, "B"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode(mustMarshal(t, 6, 2, 0, "C"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	s := d.Stats()
	require.Equal(t, uint64(3), s.DroppedPackets)
	require.Equal(t, uint64(1), s.ImagesCompleted)

	clock.Advance(time.Second)

	// mid-stream reset: image 2 is discarded
	_, err = d.Decode(mustMarshal(t, 1, 1, packet.FlagFirstPacket|0x04, "D"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode(mustMarshal(t, 2, 2, packet.FlagEndOfImage|0x04, "E"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	s = d.Stats()
	require.Equal(t, Stats{
		PacketNumber:   2,
		ImageNumber:    2,
		ResolutionCode: 4,
		Bandwidth:      0,
		Epoch:          clock.now,
	}, s)
	require.Equal(t, 2, d.bandwidth.Len())
	require.Equal(t, 0, d.frameRate.Len())
}

func TestDecodeMalformed(t *testing.T) {
	d, _ := newTestDecoder(t, GapPolicyDiscard)

	_, err := d.Decode(mustMarshal(t, 1, 1, packet.FlagStartOfImage|packet.FlagFirstPacket, "A"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode([]byte{1, 2, 3})
	require.Equal(t, liberrors.ErrMalformedDatagram{Length: 3}, err)

	s := d.Stats()
	require.Equal(t, uint64(1), s.DroppedPackets)
	require.Equal(t, uint64(1), s.MalformedDatagrams)
	require.Equal(t, uint32(1), s.PacketNumber)
	require.Equal(t, uint32(1), s.ImageNumber)
	require.Equal(t, 1, d.bandwidth.Len())

	// assembly is not affected
	img, err := d.Decode(mustMarshal(t, 2, 1, packet.FlagEndOfImage, "B"))
	require.NoError(t, err)
	require.Equal(t, []byte("AB"), img.Payload)
}

func TestDecodeOtherImageIgnored(t *testing.T) {
	d, _ := newTestDecoder(t, GapPolicyDiscard)

	_, err := d.Decode(mustMarshal(t, 1, 1, packet.FlagStartOfImage|packet.FlagFirstPacket|0x01, "A"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode(mustMarshal(t, 2, 7, 0x03, "Z"))
	require.Equal(t, ErrMorePacketsNeeded, err)
	require.Equal(t, uint8(3), d.Stats().ResolutionCode)
	require.Equal(t, uint32(7), d.Stats().ImageNumber)

	img, err := d.Decode(mustMarshal(t, 3, 1, packet.FlagEndOfImage|0x01, "B"))
	require.NoError(t, err)
	require.Equal(t, []byte("AB"), img.Payload)
}

func TestDecodeWithoutStart(t *testing.T) {
	d, _ := newTestDecoder(t, GapPolicyDiscard)

	_, err := d.Decode(mustMarshal(t, 1, 0, packet.FlagFirstPacket, "A"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode(mustMarshal(t, 2, 0, packet.FlagEndOfImage, "B"))
	require.Equal(t, ErrMorePacketsNeeded, err)
	require.Equal(t, uint64(0), d.Stats().ImagesCompleted)
}

func TestDecodeImageTooBig(t *testing.T) {
	d := &Decoder{MaxImageSize: 3}
	err := d.Initialize()
	require.NoError(t, err)

	_, err = d.Decode(mustMarshal(t, 1, 1, packet.FlagStartOfImage|packet.FlagFirstPacket, "AB"))
	require.Equal(t, ErrMorePacketsNeeded, err)

	_, err = d.Decode(mustMarshal(t, 2, 1, packet.FlagEndOfImage, "CD"))
	require.Equal(t, liberrors.ErrImageTooBig{Size: 4, MaxSize: 3}, err)
}

func TestDecodeRateOverflow(t *testing.T) {
	var overflows []error

	clock := &testClock{now: time.Date(2008, 5, 20, 22, 15, 20, 0, time.UTC)}

	d := &Decoder{
		BandwidthSamples: 2,
		TimeNow:          clock.Now,
		OnRateOverflow: func(err error) {
			overflows = append(overflows, err)
		},
	}
	err := d.Initialize()
	require.NoError(t, err)

	for i := uint32(1); i <= 3; i++ {
		_, err = d.Decode(mustMarshal(t, i, 1, packet.FlagStartOfImage|packet.FlagEndOfImage, "A"))
		require.NoError(t, err)
	}

	require.Len(t, overflows, 1)
	require.EqualError(t, overflows[0], "bandwidth: overflow capacity 2")

	s := d.Stats()
	require.Equal(t, uint64(3), s.ImagesCompleted)
	require.Equal(t, uint32(3), s.PacketNumber)
}

func TestDecodeRates(t *testing.T) {
	d, clock := newTestDecoder(t, GapPolicyDiscard)

	for i := uint32(1); i <= 11; i++ {
		_, err := d.Decode(mustMarshal(t, i, i, packet.FlagStartOfImage|packet.FlagEndOfImage, "0123456789"))
		require.NoError(t, err)
		clock.Advance(100 * time.Millisecond)
	}

	s := d.Stats()
	// 11 images in 1 second
	require.InDelta(t, 11, s.FrameRate, 0.0001)
	// 11 datagrams of 19 bytes in 1 second
	require.InDelta(t, 209, s.Bandwidth, 0.0001)
}

func FuzzDecoder(f *testing.F) {
	f.Add([]byte{0x01, 0, 0, 0, 0x01, 0, 0, 0, 0xa0, 1, 2}, []byte{0x02, 0, 0, 0, 0x01, 0, 0, 0, 0x40, 3})

	f.Fuzz(func(t *testing.T, a []byte, b []byte) {
		d := &Decoder{}
		err := d.Initialize()
		require.NoError(t, err)

		d.Decode(a) //nolint:errcheck
		img, err := d.Decode(b)
		if err == nil {
			require.NotNil(t, img)
		}
	})
}
