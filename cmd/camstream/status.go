package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/frostbyte73/core"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream"
	"github.com/bluenviron/gocamstream/pkg/camera"
)

type statusLogger struct {
	receiver *gocamstream.Receiver
	camera   camera.Model
	period   time.Duration
	logger   *zap.Logger

	closed core.Fuse
	done   chan struct{}
}

func (s *statusLogger) start() {
	s.done = make(chan struct{})
	go s.run()
}

func (s *statusLogger) stop() {
	s.closed.Break()
	<-s.done
}

func (s *statusLogger) run() {
	defer close(s.done)

	if s.period <= 0 {
		return
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.log()

		case <-s.closed.Watch():
			return
		}
	}
}

func (s *statusLogger) log() {
	snap := s.receiver.Snapshot()
	counters := s.receiver.Counters()

	s.logger.Info("stream",
		zap.String("resolution", s.camera.LabelOrCode(snap.ResolutionCode)),
		zap.Uint32("image", snap.ImageNumber),
		zap.String("frameRate", fmt.Sprintf("%.1f fps", snap.FrameRate)),
		zap.String("bandwidth", humanize.Bytes(uint64(snap.Bandwidth))+"/s"),
		zap.String("droppedPackets", humanize.Comma(int64(snap.DroppedPackets))),
		zap.String("droppedImages", humanize.Comma(int64(snap.DroppedImages))),
		zap.String("received", humanize.Bytes(counters.BytesReceived)),
		zap.Uint64("decodeErrors", counters.DecodeErrors))
}
