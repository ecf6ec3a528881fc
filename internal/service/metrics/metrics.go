// Package metrics exposes run counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairgen_frames_processed_total",
		Help: "Frames read from the input source",
	})

	SamplesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairgen_samples_written_total",
		Help: "Input/target pairs written, by split",
	}, []string{"split"})

	FramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairgen_frames_skipped_total",
		Help: "Frames skipped for being smaller than the minimum dimension",
	})

	FramesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairgen_frames_failed_total",
		Help: "Frames that failed, by stage",
	}, []string{"stage"})

	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pairgen_frame_duration_seconds",
		Help:    "Time spent on one frame from decode to write",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)
