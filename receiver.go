/*
Package gocamstream is a library to receive the image stream of a camera peripheral.

Examples are available at https://github.com/bluenviron/gocamstream/tree/main/examples
*/
package gocamstream

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream/internal/dispatcher"
	"github.com/bluenviron/gocamstream/pkg/imagestream"
	"github.com/bluenviron/gocamstream/pkg/liberrors"
	"github.com/bluenviron/gocamstream/pkg/observable"
)

const (
	// DefaultPort is the UDP port on which peripherals send the stream.
	DefaultPort = 1235

	defaultMaxDatagramSize   = 2048
	defaultDispatchQueueSize = 256
)

// Counters are the counters of a receiver.
type Counters struct {
	DatagramsReceived uint64
	BytesReceived     uint64
	DecodeErrors      uint64
	SnapshotsDropped  uint64
	ImagesDropped     uint64
	RateOverflows     uint64
}

// Receiver receives the image stream of a camera peripheral.
type Receiver struct {
	//
	// UDP parameters (all optional)
	//
	// address to listen on, in host:port format.
	// If the host is a multicast address, the multicast group is joined.
	// It defaults to ":1235".
	Address string
	// name of the interface on which the multicast group is joined.
	// It defaults to all multicast-capable interfaces.
	MulticastInterface string
	// maximum size of a datagram. Bigger datagrams are discarded.
	// It defaults to 2048.
	MaxDatagramSize int
	// size of the UDP read buffer of the operating system.
	// It defaults to the operating system default.
	UDPReadBufferSize int
	// number of snapshots that can be queued for consumers.
	// It must be a power of two.
	// It defaults to 256.
	DispatchQueueSize int
	// pointer to a variable that stores received bytes.
	BytesReceived *uint64
	// pointer to a variable that stores received datagrams.
	DatagramsReceived *uint64

	//
	// decoder parameters (all optional)
	//
	// behavior when a datagram is missing.
	// It defaults to imagestream.GapPolicyDiscard.
	GapPolicy imagestream.GapPolicy
	// window of the bandwidth estimator.
	// It defaults to 4 seconds.
	BandwidthWindow time.Duration
	// maximum number of samples inside the bandwidth window.
	// It defaults to 1024.
	BandwidthSamples int
	// window of the frame rate estimator.
	// It defaults to 5 seconds.
	FrameRateWindow time.Duration
	// maximum number of samples inside the frame rate window.
	// It defaults to 128.
	FrameRateSamples int
	// maximum size of an image.
	// It defaults to 8 MiB.
	MaxImageSize int

	//
	// system functions (all optional)
	//
	// function used to initialize the UDP listener.
	// It defaults to net.ListenPacket.
	ListenPacket func(network, address string) (net.PacketConn, error)
	// time.Now function.
	TimeNow func() time.Time
	// logger.
	// It defaults to a no-op logger.
	Logger *zap.Logger

	//
	// callbacks (all optional)
	//
	// called when an image is completed.
	// It runs on the dispatcher routine.
	// When the dispatch queue is full, the image is not passed to OnImage
	// and is counted in Counters.ImagesDropped.
	OnImage func(*imagestream.Image)
	// called after every datagram and after every reset.
	// It runs on the dispatcher routine.
	OnSnapshot func(*Snapshot)
	// called when there's a non-fatal error concerning a single datagram.
	// It runs on the receive routine, outside of any lock, and must not block.
	// Reset() can be called from it.
	OnDecodeError func(error)

	//
	// private
	//

	listener   *receiverUDPListener
	decoder    *imagestream.Decoder
	dispatcher *dispatcher.Dispatcher

	// protects decoder, lastImage and dispatcher.Push
	mutex     sync.Mutex
	lastImage *imagestream.Image

	stop core.Fuse

	decodeErrors     atomic.Uint64
	snapshotsDropped atomic.Uint64
	imagesDropped    atomic.Uint64
	rateOverflows    atomic.Uint64

	snapshot       atomic.Pointer[Snapshot]
	packetNumber   observable.Value[uint32]
	imageNumber    observable.Value[uint32]
	droppedPackets observable.Value[uint64]
	droppedImages  observable.Value[uint64]
	resolutionCode observable.Value[uint8]
	completedImage observable.Value[*imagestream.Image]
	frameRate      observable.Value[float64]
	bandwidth      observable.Value[float64]

	closeError error

	// out
	done chan struct{}
}

// Start binds the UDP socket and starts receiving.
func (r *Receiver) Start() error {
	// UDP parameters
	if r.Address == "" {
		r.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if r.MaxDatagramSize == 0 {
		r.MaxDatagramSize = defaultMaxDatagramSize
	}
	if r.DispatchQueueSize == 0 {
		r.DispatchQueueSize = defaultDispatchQueueSize
	}
	if (r.DispatchQueueSize & (r.DispatchQueueSize - 1)) != 0 {
		return fmt.Errorf("DispatchQueueSize must be a power of two")
	}
	if r.BytesReceived == nil {
		r.BytesReceived = new(uint64)
	}
	if r.DatagramsReceived == nil {
		r.DatagramsReceived = new(uint64)
	}

	// system functions
	if r.ListenPacket == nil {
		r.ListenPacket = net.ListenPacket
	}
	if r.TimeNow == nil {
		r.TimeNow = time.Now
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}

	// callbacks
	if r.OnImage == nil {
		r.OnImage = func(*imagestream.Image) {}
	}
	if r.OnSnapshot == nil {
		r.OnSnapshot = func(*Snapshot) {}
	}
	if r.OnDecodeError == nil {
		r.OnDecodeError = func(err error) {
			r.Logger.Debug("decode error", zap.Error(err))
		}
	}

	r.decoder = &imagestream.Decoder{
		GapPolicy:        r.GapPolicy,
		BandwidthWindow:  r.BandwidthWindow,
		BandwidthSamples: r.BandwidthSamples,
		FrameRateWindow:  r.FrameRateWindow,
		FrameRateSamples: r.FrameRateSamples,
		MaxImageSize:     r.MaxImageSize,
		TimeNow:          r.TimeNow,
		OnRateOverflow: func(err error) {
			r.rateOverflows.Inc()
			r.Logger.Debug("rate estimator overflow", zap.Error(err))
		},
	}
	err := r.decoder.Initialize()
	if err != nil {
		return err
	}

	r.dispatcher = &dispatcher.Dispatcher{
		QueueSize: r.DispatchQueueSize,
	}
	err = r.dispatcher.Initialize()
	if err != nil {
		return err
	}

	r.listener = &receiverUDPListener{
		r: r,
	}
	err = r.listener.initialize()
	if err != nil {
		return liberrors.ErrSocketFailure{Err: err}
	}

	r.snapshot.Store(&Snapshot{Stats: r.decoder.Stats()})

	r.done = make(chan struct{})

	r.dispatcher.Start()
	go r.run()

	r.Logger.Info("receiving image stream",
		zap.Stringer("address", r.listener.pc.LocalAddr()),
		zap.Stringer("gapPolicy", r.GapPolicy))

	return nil
}

// Stop stops receiving and waits for all resources to be released.
func (r *Receiver) Stop() {
	r.stop.Break()
	r.listener.interrupt()
	<-r.done
}

// Wait waits until the receiver stops.
// This happens when the socket fails or when Stop() is called.
// It returns nil after Stop(), the socket error otherwise.
func (r *Receiver) Wait() error {
	<-r.done
	return r.closeError
}

func (r *Receiver) run() {
	defer close(r.done)

	err := r.listener.run()
	if err != nil && !r.stop.IsBroken() {
		r.closeError = liberrors.ErrSocketFailure{Err: err}
		r.Logger.Error("receive loop terminated", zap.Error(r.closeError))
	}

	r.listener.close()
	r.dispatcher.Close()
}

func (r *Receiver) processDatagram(buf []byte) {
	atomicAdd(r.BytesReceived, uint64(len(buf)))
	atomicAdd(r.DatagramsReceived, 1)

	if len(buf) > r.MaxDatagramSize {
		r.decodeError(liberrors.ErrDatagramTooBig{MaxSize: r.MaxDatagramSize})
		return
	}

	r.mutex.Lock()

	img, err := r.decoder.Decode(buf)
	if img != nil {
		r.lastImage = img
	}

	if err == imagestream.ErrMorePacketsNeeded {
		err = nil
	}
	if err != nil {
		// OnDecodeError is called after unlocking, since it may call Reset()
		r.decodeErrors.Inc()
	}

	ok := r.pushSnapshot(img)

	r.mutex.Unlock()

	if err != nil {
		r.OnDecodeError(err)
	}

	if !ok {
		r.snapshotsDropped.Inc()
		if img != nil {
			r.imagesDropped.Inc()
		}
		r.decodeError(liberrors.ErrDispatchQueueFull{})
	}
}

func (r *Receiver) decodeError(err error) {
	r.decodeErrors.Inc()
	r.OnDecodeError(err)
}

// pushSnapshot must be called with the mutex locked.
func (r *Receiver) pushSnapshot(img *imagestream.Image) bool {
	snap := &Snapshot{
		Stats: r.decoder.Stats(),
		Image: r.lastImage,
	}

	return r.dispatcher.Push(func() {
		r.publish(snap, img)
	})
}

func (r *Receiver) publish(snap *Snapshot, img *imagestream.Image) {
	r.snapshot.Store(snap)

	r.packetNumber.Set(snap.PacketNumber)
	r.imageNumber.Set(snap.ImageNumber)
	r.droppedPackets.Set(snap.DroppedPackets)
	r.droppedImages.Set(snap.DroppedImages)
	r.resolutionCode.Set(snap.ResolutionCode)
	r.completedImage.Set(snap.Image)
	r.frameRate.Set(snap.FrameRate)
	r.bandwidth.Set(snap.Bandwidth)

	if img != nil {
		r.OnImage(img)
	}

	r.OnSnapshot(snap)
}

// Reset discards the image being assembled and zeroes counters and rates,
// as if the peripheral had just been commanded.
// The last completed image is kept.
func (r *Receiver) Reset() {
	r.mutex.Lock()
	r.decoder.Reset()
	ok := r.pushSnapshot(nil)
	r.mutex.Unlock()

	if !ok {
		r.snapshotsDropped.Inc()
	}

	r.Logger.Info("stream state reset")
}

// LocalAddr returns the address of the UDP socket.
func (r *Receiver) LocalAddr() net.Addr {
	return r.listener.pc.LocalAddr()
}

// Snapshot returns the last published snapshot.
func (r *Receiver) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Counters returns the counters.
func (r *Receiver) Counters() Counters {
	return Counters{
		DatagramsReceived: atomicLoad(r.DatagramsReceived),
		BytesReceived:     atomicLoad(r.BytesReceived),
		DecodeErrors:      r.decodeErrors.Load(),
		SnapshotsDropped:  r.snapshotsDropped.Load(),
		ImagesDropped:     r.imagesDropped.Load(),
		RateOverflows:     r.rateOverflows.Load(),
	}
}

// PacketNumber returns the number of the last datagram.
func (r *Receiver) PacketNumber() observable.Reader[uint32] {
	return &r.packetNumber
}

// ImageNumber returns the image number of the last datagram.
func (r *Receiver) ImageNumber() observable.Reader[uint32] {
	return &r.imageNumber
}

// DroppedPackets returns the estimate of lost datagrams.
func (r *Receiver) DroppedPackets() observable.Reader[uint64] {
	return &r.droppedPackets
}

// DroppedImages returns the estimate of lost images.
func (r *Receiver) DroppedImages() observable.Reader[uint64] {
	return &r.droppedImages
}

// ResolutionCode returns the resolution code of the last datagram.
func (r *Receiver) ResolutionCode() observable.Reader[uint8] {
	return &r.resolutionCode
}

// CompletedImage returns the last completed image.
func (r *Receiver) CompletedImage() observable.Reader[*imagestream.Image] {
	return &r.completedImage
}

// FrameRate returns the frame rate, in images per second.
func (r *Receiver) FrameRate() observable.Reader[float64] {
	return &r.frameRate
}

// Bandwidth returns the bandwidth, in bytes per second.
func (r *Receiver) Bandwidth() observable.Reader[float64] {
	return &r.bandwidth
}
