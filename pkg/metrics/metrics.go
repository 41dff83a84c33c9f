// Package metrics exposes the state of a receiver as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bluenviron/gocamstream"
)

const namespace = "camstream"

// Source is the receiver whose state is exposed.
type Source interface {
	Snapshot() *gocamstream.Snapshot
	Counters() gocamstream.Counters
}

func counterFunc(subsystem string, name string, help string, constLabels prometheus.Labels,
	f func() uint64,
) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: constLabels,
	}, func() float64 {
		return float64(f())
	})
}

func gaugeFunc(subsystem string, name string, help string, constLabels prometheus.Labels,
	f func() float64,
) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: constLabels,
	}, f)
}

// Register registers the metrics of src into reg.
// Values are read from src when metrics are collected.
func Register(reg prometheus.Registerer, src Source, constLabels prometheus.Labels) error {
	// loss counters and images counters are zeroed by resets, therefore they are gauges.
	collectors := []prometheus.Collector{
		counterFunc("datagram", "total", "Received datagrams.", constLabels, func() uint64 {
			return src.Counters().DatagramsReceived
		}),
		counterFunc("datagram", "bytes", "Received bytes.", constLabels, func() uint64 {
			return src.Counters().BytesReceived
		}),
		counterFunc("datagram", "errors_total", "Datagrams that could not be decoded.", constLabels, func() uint64 {
			return src.Counters().DecodeErrors
		}),
		counterFunc("snapshot", "dropped_total", "Snapshots discarded because consumers are slow.", constLabels,
			func() uint64 {
				return src.Counters().SnapshotsDropped
			}),
		counterFunc("snapshot", "images_dropped_total", "Completed images not delivered because consumers are slow.",
			constLabels, func() uint64 {
				return src.Counters().ImagesDropped
			}),
		counterFunc("estimator", "overflows_total", "Samples rejected by rate estimators.", constLabels, func() uint64 {
			return src.Counters().RateOverflows
		}),
		gaugeFunc("stream", "packet_number", "Number of the last datagram.", constLabels, func() float64 {
			return float64(src.Snapshot().PacketNumber)
		}),
		gaugeFunc("stream", "image_number", "Image number of the last datagram.", constLabels, func() float64 {
			return float64(src.Snapshot().ImageNumber)
		}),
		gaugeFunc("stream", "dropped_packets", "Estimate of lost datagrams since the last reset.", constLabels,
			func() float64 {
				return float64(src.Snapshot().DroppedPackets)
			}),
		gaugeFunc("stream", "dropped_images", "Estimate of lost images since the last reset.", constLabels,
			func() float64 {
				return float64(src.Snapshot().DroppedImages)
			}),
		gaugeFunc("stream", "malformed_datagrams", "Datagrams shorter than the header since the last reset.",
			constLabels, func() float64 {
				return float64(src.Snapshot().MalformedDatagrams)
			}),
		gaugeFunc("stream", "images_completed", "Images completed since the last reset.", constLabels,
			func() float64 {
				return float64(src.Snapshot().ImagesCompleted)
			}),
		gaugeFunc("stream", "resolution_code", "Resolution code of the last datagram.", constLabels,
			func() float64 {
				return float64(src.Snapshot().ResolutionCode)
			}),
		gaugeFunc("stream", "frame_rate", "Images per second.", constLabels, func() float64 {
			return src.Snapshot().FrameRate
		}),
		gaugeFunc("stream", "bandwidth_bytes", "Bytes per second.", constLabels, func() float64 {
			return src.Snapshot().Bandwidth
		}),
	}

	for _, c := range collectors {
		err := reg.Register(c)
		if err != nil {
			return err
		}
	}

	return nil
}
