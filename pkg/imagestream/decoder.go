// Package imagestream contains a decoder and an encoder of the camera image stream.
package imagestream

import (
	"errors"
	"fmt"
	"time"

	"github.com/bluenviron/gocamstream/pkg/liberrors"
	"github.com/bluenviron/gocamstream/pkg/lossdetector"
	"github.com/bluenviron/gocamstream/pkg/packet"
	"github.com/bluenviron/gocamstream/pkg/rateestimator"
)

const (
	defaultBandwidthWindow  = 4 * time.Second
	defaultBandwidthSamples = 1024
	defaultFrameRateWindow  = 5 * time.Second
	defaultFrameRateSamples = 128
	defaultMaxImageSize     = 8 * 1024 * 1024
)

// ErrMorePacketsNeeded is returned when more packets are needed.
var ErrMorePacketsNeeded = errors.New("need more packets")

// GapPolicy is the behavior of the decoder when a datagram
// of the image being assembled is missing.
type GapPolicy int

// gap policies.
const (
	// GapPolicyDiscard abandons the image and waits for the next start of image.
	GapPolicyDiscard GapPolicy = iota

	// GapPolicyDeliver keeps assembling the image, that is delivered
	// without the missing payload.
	GapPolicyDeliver
)

// String implements fmt.Stringer.
func (p GapPolicy) String() string {
	switch p {
	case GapPolicyDiscard:
		return "discard"
	case GapPolicyDeliver:
		return "deliver"
	}
	return "unknown"
}

// ParseGapPolicy parses a GapPolicy.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch s {
	case "", "discard":
		return GapPolicyDiscard, nil
	case "deliver":
		return GapPolicyDeliver, nil
	}
	return 0, fmt.Errorf("invalid gap policy '%s'", s)
}

// Image is a completed image.
type Image struct {
	// Number of the image, as assigned by the peripheral.
	Number uint32

	// Resolution code of the datagram that completed the image.
	Mode uint8

	// Image bytes. They are not inspected.
	Payload []byte

	// Time of completion.
	CompletedAt time.Time
}

// Stats are the statistics of a decoder.
// Loss counters are estimates.
type Stats struct {
	PacketNumber       uint32
	ImageNumber        uint32
	DroppedPackets     uint64
	DroppedImages      uint64
	MalformedDatagrams uint64
	ImagesCompleted    uint64
	ResolutionCode     uint8
	FrameRate          float64
	Bandwidth          float64
	Epoch              time.Time
}

// Decoder reassembles images from datagrams.
// It is not safe for concurrent use.
type Decoder struct {
	// Behavior when a datagram is missing.
	// It defaults to GapPolicyDiscard.
	GapPolicy GapPolicy

	// Window of the bandwidth estimator.
	// It defaults to 4 seconds.
	BandwidthWindow time.Duration

	// Maximum number of samples inside the bandwidth window.
	// It defaults to 1024.
	BandwidthSamples int

	// Window of the frame rate estimator.
	// It defaults to 5 seconds.
	FrameRateWindow time.Duration

	// Maximum number of samples inside the frame rate window.
	// It defaults to 128.
	FrameRateSamples int

	// Maximum size of an image.
	// It defaults to 8 MiB.
	MaxImageSize int

	// time.Now function.
	TimeNow func() time.Time

	// Called when a rate estimator rejects a sample.
	OnRateOverflow func(error)

	clockBase    time.Time
	bandwidth    *rateestimator.Estimator
	frameRate    *rateestimator.Estimator
	lossDetector lossdetector.LossDetector

	buffer              []byte
	assembling          bool
	expectedImageNumber uint32
	stats               Stats
}

// Initialize initializes Decoder.
func (d *Decoder) Initialize() error {
	if d.BandwidthWindow == 0 {
		d.BandwidthWindow = defaultBandwidthWindow
	}
	if d.BandwidthSamples == 0 {
		d.BandwidthSamples = defaultBandwidthSamples
	}
	if d.FrameRateWindow == 0 {
		d.FrameRateWindow = defaultFrameRateWindow
	}
	if d.FrameRateSamples == 0 {
		d.FrameRateSamples = defaultFrameRateSamples
	}
	if d.MaxImageSize == 0 {
		d.MaxImageSize = defaultMaxImageSize
	}
	if d.TimeNow == nil {
		d.TimeNow = time.Now
	}
	if d.OnRateOverflow == nil {
		d.OnRateOverflow = func(error) {}
	}

	var err error
	d.bandwidth, err = rateestimator.New(d.BandwidthWindow, d.BandwidthSamples)
	if err != nil {
		return fmt.Errorf("bandwidth estimator: %w", err)
	}

	d.frameRate, err = rateestimator.New(d.FrameRateWindow, d.FrameRateSamples)
	if err != nil {
		return fmt.Errorf("frame rate estimator: %w", err)
	}

	d.clockBase = d.TimeNow()
	d.stats.Epoch = d.clockBase

	return nil
}

func (d *Decoder) milliseconds(t time.Time) int64 {
	return t.Sub(d.clockBase).Milliseconds()
}

func (d *Decoder) resetAssembly() {
	d.buffer = d.buffer[:0]
	d.assembling = false
}

// Reset discards the image being assembled and zeroes all counters and rates.
// The resolution code is kept.
func (d *Decoder) Reset() {
	d.reset(d.TimeNow())
}

func (d *Decoder) reset(now time.Time) {
	d.bandwidth.Reset()
	d.frameRate.Reset()
	d.lossDetector.Reset()
	d.resetAssembly()
	d.expectedImageNumber = 0

	d.stats = Stats{
		ResolutionCode: d.stats.ResolutionCode,
		Epoch:          now,
	}
}

// Stats returns the current statistics.
func (d *Decoder) Stats() Stats {
	s := d.stats
	s.FrameRate = d.frameRate.Rate()
	s.Bandwidth = d.bandwidth.Rate()
	return s
}

// Decode decodes a datagram.
// It returns a completed image, or ErrMorePacketsNeeded.
// Other errors concern the current datagram only and
// decoding can continue with the next one.
func (d *Decoder) Decode(buf []byte) (*Image, error) {
	var pkt packet.Packet
	err := pkt.Unmarshal(buf)
	if err != nil {
		d.stats.DroppedPackets++
		d.stats.MalformedDatagrams++
		return nil, err
	}

	now := d.TimeNow()

	d.stats.ResolutionCode = pkt.Flags.Mode()

	if pkt.Flags.FirstPacket() {
		d.reset(now)
	}

	var decodeErr error

	lostPackets, lostImages := d.lossDetector.Process(pkt.PacketNumber, pkt.ImageNumber)
	if lostPackets != 0 {
		d.stats.DroppedPackets += lostPackets
		d.stats.DroppedImages += lostImages

		if !pkt.Flags.StartOfImage() && d.GapPolicy == GapPolicyDiscard {
			if d.assembling {
				decodeErr = liberrors.ErrImageDiscarded{
					ImageNumber: d.expectedImageNumber,
					Lost:        lostPackets,
				}
			}
			d.resetAssembly()
			d.expectedImageNumber = pkt.ImageNumber + 1
		}
	}

	if pkt.Flags.StartOfImage() {
		d.resetAssembly()
		d.assembling = true
		d.expectedImageNumber = pkt.ImageNumber
	}

	var img *Image

	if d.assembling && pkt.ImageNumber == d.expectedImageNumber {
		if (len(d.buffer) + len(pkt.Payload)) > d.MaxImageSize {
			decodeErr = liberrors.ErrImageTooBig{
				Size:    len(d.buffer) + len(pkt.Payload),
				MaxSize: d.MaxImageSize,
			}
			d.resetAssembly()
		} else {
			d.buffer = append(d.buffer, pkt.Payload...)

			if pkt.Flags.EndOfImage() {
				img = &Image{
					Number:      pkt.ImageNumber,
					Mode:        pkt.Flags.Mode(),
					Payload:     append([]byte(nil), d.buffer...),
					CompletedAt: now,
				}
				d.resetAssembly()
				d.stats.ImagesCompleted++

				err = d.frameRate.AddSample(d.milliseconds(now), 1)
				if err != nil {
					d.OnRateOverflow(fmt.Errorf("frame rate: %w", err))
				}
			}
		}
	}

	err = d.bandwidth.AddSample(d.milliseconds(now), int64(len(buf)))
	if err != nil {
		d.OnRateOverflow(fmt.Errorf("bandwidth: %w", err))
	}

	d.stats.PacketNumber = pkt.PacketNumber
	d.stats.ImageNumber = pkt.ImageNumber

	if img != nil {
		return img, nil
	}

	if decodeErr != nil {
		return nil, decodeErr
	}

	return nil, ErrMorePacketsNeeded
}
