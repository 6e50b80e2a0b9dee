package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn metrics
	activeTurns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walkie_gateway_active_turns",
		Help: "Number of walkie-talkie turns currently in flight",
	})

	totalTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkie_gateway_turns_total",
		Help: "Total number of walkie-talkie turns processed",
	})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walkie_gateway_turn_duration_seconds",
		Help:    "Duration of a full turn (recording through playback) in seconds",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
	})

	turnTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_turn_timeouts_total",
		Help: "Turns aborted by a local timeout",
	}, []string{"kind"}) // kind: "recording" or "processing"

	// Signal metrics
	signalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_signals_total",
		Help: "Turn-coordination signals by type and direction",
	}, []string{"signal", "direction"}) // direction: "sent" or "received"

	signalDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walkie_gateway_signal_decode_errors_total",
		Help: "Inbound broadcast payloads dropped as undecodable",
	})

	// Track router metrics
	trackBindings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walkie_gateway_track_bindings",
		Help: "Remote synthesized-speech tracks currently bound for playback",
	})

	// STT metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_stt_requests_total",
		Help: "Total number of STT requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walkie_gateway_stt_latency_seconds",
		Help:    "STT processing latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Translation metrics
	translateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_translate_requests_total",
		Help: "Total number of translation requests",
	}, []string{"status"})

	translateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walkie_gateway_translate_latency_seconds",
		Help:    "Translation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_tts_requests_total",
		Help: "Total number of TTS requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "walkie_gateway_tts_latency_seconds",
		Help:    "TTS processing latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "walkie_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walkie_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// TurnMetrics tracks metrics for a single walkie-talkie turn
type TurnMetrics struct {
	speakerID          string
	startTime          time.Time
	sttStartTime       time.Time
	translateStartTime time.Time
	ttsStartTime       time.Time
	mu                 sync.Mutex
}

// NewTurnMetrics creates a metrics tracker for one turn
func NewTurnMetrics(speakerID string) *TurnMetrics {
	return &TurnMetrics{
		speakerID: speakerID,
		startTime: time.Now(),
	}
}

// RecordTurnStart records the start of a turn
func (m *TurnMetrics) RecordTurnStart() {
	activeTurns.Inc()
	totalTurns.Inc()
}

// RecordTurnEnd records the end of a turn
func (m *TurnMetrics) RecordTurnEnd() {
	activeTurns.Dec()
	turnDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordSTTStart records the start of STT processing
func (m *TurnMetrics) RecordSTTStart() {
	m.mu.Lock()
	m.sttStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSTTEnd records the end of STT processing
func (m *TurnMetrics) RecordSTTEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sttStartTime.IsZero() {
		sttLatency.Observe(time.Since(m.sttStartTime).Seconds())
	}

	sttRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTranslateStart records the start of a translation request
func (m *TurnMetrics) RecordTranslateStart() {
	m.mu.Lock()
	m.translateStartTime = time.Now()
	m.mu.Unlock()
}

// RecordTranslateEnd records the end of a translation request
func (m *TurnMetrics) RecordTranslateEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.translateStartTime.IsZero() {
		translateLatency.Observe(time.Since(m.translateStartTime).Seconds())
	}

	translateRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTTSStart records the start of TTS processing
func (m *TurnMetrics) RecordTTSStart() {
	m.mu.Lock()
	m.ttsStartTime = time.Now()
	m.mu.Unlock()
}

// RecordTTSEnd records the end of TTS processing
func (m *TurnMetrics) RecordTTSEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ttsStartTime.IsZero() {
		ttsLatency.Observe(time.Since(m.ttsStartTime).Seconds())
	}

	ttsRequests.WithLabelValues(statusLabel(success)).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordSignal records a turn-coordination signal being sent or received
func RecordSignal(signal, direction string) {
	signalsTotal.WithLabelValues(signal, direction).Inc()
}

// RecordSignalDecodeError records an inbound payload dropped as undecodable
func RecordSignalDecodeError() {
	signalDecodeErrors.Inc()
}

// RecordTurnTimeout records a turn aborted by a local timeout
func RecordTurnTimeout(kind string) {
	turnTimeouts.WithLabelValues(kind).Inc()
}

// SetTrackBindings updates the bound-track gauge
func SetTrackBindings(n int) {
	trackBindings.Set(float64(n))
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
