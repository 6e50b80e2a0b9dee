package walkie

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/room"
	"github.com/linguacall/walkie-gateway/internal/signal"
)

// Transport is the slice of the room connection the engine needs:
// broadcasting signals and toggling local microphone capture.
type Transport interface {
	PublishData(topic string, payload []byte) error
	EnableMicrophone(enabled bool) error
}

// Snapshot is the read-only view served to the presentation layer
type Snapshot struct {
	State           State
	ActiveSpeakerID string
	Transcripts     []TranscriptEntry
	Err             string
	IsMyTurn        bool
	CanSpeak        bool
}

// Options configures an Engine
type Options struct {
	Topic             string        // broadcast topic, DefaultTopic if empty
	RecordingTimeout  time.Duration // max recording turn duration
	ProcessingTimeout time.Duration // max processing/playback duration

	// OnUpdate, if set, is called after every state change with the new
	// snapshot. Invoked from the serialized apply step; keep it cheap.
	OnUpdate func(Snapshot)
}

// Engine drives one participant's turn state. All transitions, whether
// from a local toggle, a remote signal, or a timer expiry, run under one
// dispatch lock, so no two events are ever applied concurrently.
type Engine struct {
	identity          string
	topic             string
	recordingTimeout  time.Duration
	processingTimeout time.Duration

	transport Transport
	sup       *TimeoutSupervisor

	dispatchMu sync.Mutex   // serializes every transition
	mu         sync.RWMutex // guards store for snapshot reads
	store      Store

	onUpdate func(Snapshot)
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEngine creates an engine for the participant with the given identity
func NewEngine(identity string, transport Transport, opts Options) *Engine {
	if opts.Topic == "" {
		opts.Topic = signal.DefaultTopic
	}
	if opts.RecordingTimeout <= 0 {
		opts.RecordingTimeout = 30 * time.Second
	}
	if opts.ProcessingTimeout <= 0 {
		opts.ProcessingTimeout = 30 * time.Second
	}

	return &Engine{
		identity:          identity,
		topic:             opts.Topic,
		recordingTimeout:  opts.RecordingTimeout,
		processingTimeout: opts.ProcessingTimeout,
		transport:         transport,
		sup:               NewTimeoutSupervisor(),
		store:             initialStore(),
		onUpdate:          opts.OnUpdate,
		logger:            observability.GetLogger().With().Str("identity", identity).Logger(),
		now:               time.Now,
	}
}

// Snapshot returns the current state for display
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	transcripts := make([]TranscriptEntry, len(e.store.Transcripts))
	copy(transcripts, e.store.Transcripts)

	return Snapshot{
		State:           e.store.State,
		ActiveSpeakerID: e.store.ActiveSpeakerID,
		Transcripts:     transcripts,
		Err:             e.store.Err,
		IsMyTurn:        e.store.ActiveSpeakerID == e.identity,
		CanSpeak:        e.store.State == StateIdle,
	}
}

// ToggleTurn begins a turn when idle, or ends the local turn while
// recording. Any other state, or another participant's turn, is a no-op:
// a client can never stop a peer's recording or start a second one.
func (e *Engine) ToggleTurn() error {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	switch {
	case e.store.State == StateIdle:
		return e.startTurn()
	case e.store.State == StateRecording && e.store.ActiveSpeakerID == e.identity:
		return e.stopTurn()
	default:
		return nil
	}
}

func (e *Engine) startTurn() error {
	if err := e.transport.EnableMicrophone(true); err != nil {
		e.logger.Error().Err(err).Msg("Failed to enable microphone")
		observability.RecordError("mic_enable", "walkie")
		e.applyEvent(event{kind: evError, message: "Could not start recording"})
		return err
	}

	if err := e.broadcast(signal.RecordingStart(e.identity)); err != nil {
		// Best effort: release the microphone we just grabbed
		if micErr := e.transport.EnableMicrophone(false); micErr != nil {
			e.logger.Warn().Err(micErr).Msg("Failed to release microphone after send failure")
		}
		e.applyEvent(event{kind: evError, message: "Could not start recording"})
		return err
	}

	e.applyEvent(event{kind: evRecordingStart, userID: e.identity})
	e.sup.Arm(TimerRecording, e.recordingTimeout, func() { e.onTimeout(TimerRecording) })
	e.logger.Debug().Msg("Turn started")
	return nil
}

func (e *Engine) stopTurn() error {
	e.sup.Cancel(TimerRecording)

	if err := e.transport.EnableMicrophone(false); err != nil {
		e.logger.Error().Err(err).Msg("Failed to disable microphone")
		observability.RecordError("mic_disable", "walkie")
		e.applyEvent(event{kind: evError, message: "Could not stop recording"})
		return err
	}

	if err := e.broadcast(signal.RecordingStop(e.identity)); err != nil {
		e.applyEvent(event{kind: evError, message: "Could not stop recording"})
		return err
	}

	e.applyEvent(event{kind: evRecordingStop})
	e.sup.Arm(TimerProcessing, e.processingTimeout, func() { e.onTimeout(TimerProcessing) })
	e.logger.Debug().Msg("Turn released, awaiting translation")
	return nil
}

// ClearError dismisses the displayed error message. It never re-arms
// anything; the user must explicitly toggle to start a new turn.
func (e *Engine) ClearError() {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()
	e.applyEvent(event{kind: evClearError})
}

// HandleData feeds an inbound broadcast message to the machine. Messages on
// other topics and undecodable payloads are dropped without state effect.
// Wire it to the room client's OnData handler.
func (e *Engine) HandleData(msg room.DataMessage) {
	if msg.Topic != e.topic {
		return
	}

	sig, err := signal.Decode(msg.Payload)
	if err != nil {
		observability.RecordSignalDecodeError()
		e.logger.Debug().Err(err).Str("from", msg.From).Msg("Dropping undecodable signal")
		return
	}

	observability.RecordSignal(string(sig.Kind), "received")

	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	switch sig.Kind {
	case signal.KindRecordingStart:
		if sig.UserID == e.identity {
			return // our own broadcast echoed back
		}
		// No timer for a peer's recording: their own budget bounds the
		// turn, and the processing budget starts once PROCESSING arrives.
		e.applyEvent(event{kind: evRecordingStart, userID: sig.UserID})

	case signal.KindRecordingStop:
		// Consumed by the translation agent, not by listeners: the
		// speaker's own machine moved to processing when it sent this.

	case signal.KindProcessing:
		prev := e.store.State
		e.applyEvent(event{kind: evProcessing})
		if prev != e.store.State {
			e.sup.Cancel(TimerRecording)
			e.sup.Arm(TimerProcessing, e.processingTimeout, func() { e.onTimeout(TimerProcessing) })
		}

	case signal.KindTTSPlaying:
		prev := e.store.State
		e.applyEvent(event{
			kind:           evTTSPlaying,
			originalText:   sig.OriginalText,
			translatedText: sig.TranslatedText,
			now:            e.now(),
		})
		if prev != e.store.State {
			// The no-reply budget is superseded by a playback budget
			e.sup.Arm(TimerProcessing, e.processingTimeout, func() { e.onTimeout(TimerProcessing) })
		}

	case signal.KindTTSComplete:
		e.applyEvent(event{kind: evTTSComplete})
		e.sup.CancelAll()

	case signal.KindError:
		message := sig.Message
		if message == "" {
			message = "An error occurred"
		}
		e.resetWithError(message)
	}
}

// onTimeout runs when a turn budget expires without a corroborating
// signal. The supervisor guarantees a cancelled timer never reaches here.
func (e *Engine) onTimeout(kind TimerKind) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	switch kind {
	case TimerRecording:
		if e.store.State != StateRecording || e.store.ActiveSpeakerID != e.identity {
			return
		}
		e.logger.Warn().Msg("Recording timed out")
		observability.RecordTurnTimeout(string(TimerRecording))
		e.resetWithError("Recording timed out")

	case TimerProcessing:
		if e.store.State != StateProcessing && e.store.State != StatePlaying {
			return
		}
		e.logger.Warn().Msg("Translation timed out")
		observability.RecordTurnTimeout(string(TimerProcessing))
		e.resetWithError("Translation timed out")
	}
}

// resetWithError lands the machine in idle with a displayed message,
// releasing the microphone if this client held the turn. Every
// cancellation path (remote error, transport failure, timeout) goes
// through here so both timers and the turn owner are always cleared.
func (e *Engine) resetWithError(message string) {
	if e.store.State == StateRecording && e.store.ActiveSpeakerID == e.identity {
		if err := e.transport.EnableMicrophone(false); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to release microphone on reset")
		}
	}

	e.applyEvent(event{kind: evError, message: message})
	e.sup.CancelAll()
}

// Close cancels all timers. The engine can be discarded afterwards.
func (e *Engine) Close() {
	e.sup.CancelAll()
}

func (e *Engine) broadcast(sig signal.Signal) error {
	payload, err := signal.Encode(sig)
	if err != nil {
		return err
	}

	if err := e.transport.PublishData(e.topic, payload); err != nil {
		e.logger.Error().Err(err).Str("signal", string(sig.Kind)).Msg("Failed to broadcast signal")
		observability.RecordError("broadcast", "walkie")
		return err
	}

	observability.RecordSignal(string(sig.Kind), "sent")
	return nil
}

// applyEvent runs the pure transition and publishes the new snapshot.
// Callers must hold dispatchMu.
func (e *Engine) applyEvent(ev event) {
	e.mu.Lock()
	e.store = apply(e.store, ev)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if e.onUpdate != nil {
		e.onUpdate(snap)
	}
}
