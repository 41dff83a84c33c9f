package gocamstream

import (
	"github.com/bluenviron/gocamstream/pkg/imagestream"
)

// Snapshot is an immutable point-in-time view of the stream state.
type Snapshot struct {
	imagestream.Stats

	// last completed image, or nil.
	Image *imagestream.Image
}
