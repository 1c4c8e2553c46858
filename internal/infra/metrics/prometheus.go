package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScenesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_processor_scenes_processed_total",
		Help: "Total number of scenes processed, by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_processor_stage_duration_seconds",
		Help:    "Duration of each scene pipeline stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"stage"})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_processor_messages_total",
		Help: "Log messages read by the extraction dispatcher, by modality",
	}, []string{"modality"})

	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_processor_decode_errors_total",
		Help: "Messages skipped because they could not be decoded, by modality",
	}, []string{"modality"})

	FramesRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_processor_frames_recovered_total",
		Help: "Camera frames recovered from compressed image payloads",
	})

	FrameMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_processor_frame_misses_total",
		Help: "Compressed image payloads dropped because no decodable image was found",
	})

	EncoderAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_processor_encoder_attempts_total",
		Help: "Encoder attempts in the fallback chain, by strategy and result",
	}, []string{"strategy", "result"})

	ActiveScenes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_processor_active_scenes",
		Help: "Number of scenes currently being processed",
	})

	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_processor_reports_total",
		Help: "Workflow callbacks emitted, by kind",
	}, []string{"kind"})
)
