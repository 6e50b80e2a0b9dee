// Package agent runs the translation side of the walkie-talkie protocol.
// It joins the room as a dedicated participant, captures the active
// speaker's audio during their turn, and after the turn ends publishes the
// translated speech on a per-speaker track together with the lifecycle
// signals the clients drive their state machines with.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linguacall/walkie-gateway/internal/audio"
	"github.com/linguacall/walkie-gateway/internal/config"
	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/room"
	"github.com/linguacall/walkie-gateway/internal/signal"
	"github.com/linguacall/walkie-gateway/internal/stt"
	"github.com/linguacall/walkie-gateway/internal/translate"
	"github.com/linguacall/walkie-gateway/internal/tts"
)

// transcriptFlushDelay gives the STT stream a moment to deliver trailing
// final results after the turn ends.
const transcriptFlushDelay = 500 * time.Millisecond

// TrackWriter is the handle for a published outbound track
type TrackWriter interface {
	WriteFrame(pcm []byte) error
	Unpublish() error
}

// Session is the slice of the room connection the agent needs
type Session interface {
	PublishData(topic string, payload []byte) error
	PublishTrack(name string, sampleRate int) (TrackWriter, error)
}

// STTFactory creates a transcription session for one speaker's language
type STTFactory func(language string) stt.STTClient

// capture is the in-flight recording of one speaker's turn
type capture struct {
	speakerID  string
	language   string
	sttClient  stt.STTClient
	vad        *audio.VADDetector
	buf        *audio.RingBuffer
	frameBytes int

	mu         sync.Mutex
	transcript []string
	done       chan struct{}
}

// Agent coordinates turn capture and the translation pipeline
type Agent struct {
	cfg        *config.Config
	session    Session
	translator translate.Translator
	ttsClient  tts.TTSClient
	newSTT     STTFactory

	mu      sync.Mutex
	members map[string]room.ParticipantInfo
	tracks  map[string]string // track SID -> participant identity
	active  *capture

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// New creates an agent bound to a room session
func New(cfg *config.Config, session Session, translator translate.Translator, ttsClient tts.TTSClient, newSTT STTFactory) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		cfg:        cfg,
		session:    session,
		translator: translator,
		ttsClient:  ttsClient,
		newSTT:     newSTT,
		members:    make(map[string]room.ParticipantInfo),
		tracks:     make(map[string]string),
		ctx:        ctx,
		cancel:     cancel,
		logger:     observability.GetLogger().With().Str("component", "agent").Logger(),
	}
}

// Handlers returns the room event handlers wired to this agent
func (a *Agent) Handlers() room.Handlers {
	return room.Handlers{
		OnData:              a.HandleData,
		OnTrackSubscribed:   a.HandleTrackSubscribed,
		OnTrackUnsubscribed: a.HandleTrackUnsubscribed,
		OnMedia:             a.HandleMedia,
		OnParticipantJoined: a.HandleParticipantJoined,
		OnParticipantLeft:   a.HandleParticipantLeft,
	}
}

// HandleParticipantJoined records a participant and their language
func (a *Agent) HandleParticipantJoined(p room.ParticipantInfo) {
	if p.Identity == a.cfg.AgentIdentity {
		return
	}

	a.mu.Lock()
	a.members[p.Identity] = p
	a.mu.Unlock()

	a.logger.Info().
		Str("identity", p.Identity).
		Str("language", p.Language).
		Msg("Participant joined")
}

// HandleParticipantLeft forgets a participant. A speaker leaving mid-turn
// aborts the turn so the other side is not left waiting.
func (a *Agent) HandleParticipantLeft(p room.ParticipantInfo) {
	a.mu.Lock()
	delete(a.members, p.Identity)
	aborted := a.active != nil && a.active.speakerID == p.Identity
	var c *capture
	if aborted {
		c = a.active
		a.active = nil
	}
	a.mu.Unlock()

	a.logger.Info().Str("identity", p.Identity).Msg("Participant left")

	if aborted {
		a.closeCapture(c)
		a.publishSignal(signal.Error("Speaker left the call"))
	}
}

// HandleTrackSubscribed remembers which participant owns each audio track
func (a *Agent) HandleTrackSubscribed(t room.TrackInfo) {
	if t.Kind != room.TrackKindAudio {
		return
	}
	if t.ParticipantIdentity == a.cfg.AgentIdentity {
		return
	}

	a.mu.Lock()
	a.tracks[t.SID] = t.ParticipantIdentity
	a.mu.Unlock()
}

// HandleTrackUnsubscribed forgets a track
func (a *Agent) HandleTrackUnsubscribed(t room.TrackInfo) {
	a.mu.Lock()
	delete(a.tracks, t.SID)
	a.mu.Unlock()
}

// HandleMedia feeds captured microphone audio to the active turn's STT
// stream. Frames from anyone but the active speaker are dropped.
func (a *Agent) HandleMedia(f room.MediaFrame) {
	a.mu.Lock()
	c := a.active
	identity := a.tracks[f.TrackSID]
	a.mu.Unlock()

	if c == nil || identity != c.speakerID || len(f.PCM) == 0 {
		return
	}

	pcm := f.PCM
	if f.SampleRate != 0 && f.SampleRate != a.cfg.CaptureSampleRate {
		resampled, err := audio.ResamplePCM(pcm, f.SampleRate, a.cfg.CaptureSampleRate)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to resample capture frame")
			return
		}
		pcm = resampled
	}

	// Buffer incoming PCM and drain it in fixed VAD-sized frames, so
	// fragmented or oversized transport frames reach STT in even chunks.
	c.buf.Write(pcm)
	a.drainFrames(c)
}

// drainFrames forwards buffered audio to STT one frame at a time
func (a *Agent) drainFrames(c *capture) {
	for c.buf.Available() >= c.frameBytes {
		frame := make([]byte, c.frameBytes)
		n := c.buf.Read(frame)
		if n == 0 {
			return
		}
		a.forwardFrame(c, frame[:n])
	}
}

func (a *Agent) forwardFrame(c *capture, frame []byte) {
	if samples, err := audio.BytesToSamples(frame); err == nil {
		c.vad.ProcessFrame(samples)
	}

	if err := c.sttClient.SendAudio(frame); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to forward audio to STT")
		observability.RecordError("stt_send", "agent")
		return
	}
	observability.RecordAudioBytes("capture", int64(len(frame)))
}

// HandleData reacts to turn signals from the clients
func (a *Agent) HandleData(msg room.DataMessage) {
	if msg.Topic != a.cfg.SignalTopic {
		return
	}

	sig, err := signal.Decode(msg.Payload)
	if err != nil {
		observability.RecordSignalDecodeError()
		return
	}

	observability.RecordSignal(string(sig.Kind), "received")

	switch sig.Kind {
	case signal.KindRecordingStart:
		a.startCapture(sig.UserID)
	case signal.KindRecordingStop:
		a.finishTurn()
	}
}

// startCapture opens an STT stream for the speaker's turn. A turn already
// in progress wins; a second start is dropped.
func (a *Agent) startCapture(speakerID string) {
	if speakerID == "" {
		return
	}

	a.mu.Lock()
	if a.active != nil {
		a.mu.Unlock()
		a.logger.Warn().
			Str("speaker", speakerID).
			Str("active", a.active.speakerID).
			Msg("Ignoring turn start while a turn is in progress")
		return
	}

	language := a.cfg.DeepgramLanguage
	if member, ok := a.members[speakerID]; ok && member.Language != "" {
		language = member.Language
	}

	frameSize := a.cfg.CaptureSampleRate / 50
	c := &capture{
		speakerID: speakerID,
		language:  language,
		sttClient: a.newSTT(language),
		vad: audio.NewVADDetector(&audio.VADConfig{
			EnergyThreshold: a.cfg.VADEnergyThreshold,
			SilenceFrames:   a.cfg.VADSilenceFrames,
			FrameSize:       frameSize,
		}),
		buf:        audio.NewRingBuffer(a.cfg.AudioBufferSize),
		frameBytes: frameSize * 2, // 16-bit samples
		done:       make(chan struct{}),
	}
	a.active = c
	a.mu.Unlock()

	if err := c.sttClient.Start(); err != nil {
		a.logger.Error().Err(err).Str("speaker", speakerID).Msg("Failed to start STT session")
		observability.RecordError("stt_start", "agent")

		a.mu.Lock()
		a.active = nil
		a.mu.Unlock()

		a.publishSignal(signal.Error("Could not start transcription"))
		return
	}

	go a.collectTranscripts(c)

	a.logger.Info().
		Str("speaker", speakerID).
		Str("language", language).
		Msg("Turn capture started")
}

// collectTranscripts accumulates final STT results until the stream closes
func (a *Agent) collectTranscripts(c *capture) {
	defer close(c.done)

	for result := range c.sttClient.GetTranscription() {
		if result == nil || !result.IsFinal {
			continue
		}
		c.mu.Lock()
		c.transcript = append(c.transcript, result.Text)
		c.mu.Unlock()
	}
}

// finishTurn closes the capture and runs the translation pipeline
func (a *Agent) finishTurn() {
	a.mu.Lock()
	c := a.active
	a.active = nil
	a.mu.Unlock()

	if c == nil {
		return
	}

	go a.runPipeline(c)
}

func (a *Agent) runPipeline(c *capture) {
	metrics := observability.NewTurnMetrics(c.speakerID)
	metrics.RecordTurnStart()
	defer metrics.RecordTurnEnd()

	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.ProcessingTimeout())
	defer cancel()

	metrics.RecordSTTStart()
	text := a.drainTranscript(ctx, c)
	metrics.RecordSTTEnd(text != "")

	// Nothing worth translating: release the turn without a playback phase
	if text == "" || c.vad.SpeechFrames() == 0 {
		a.logger.Info().Str("speaker", c.speakerID).Msg("Empty turn, releasing")
		a.publishSignal(signal.TTSComplete())
		return
	}

	targetLang := a.targetLanguage(c.speakerID)
	if targetLang == "" || targetLang == c.language {
		a.logger.Info().
			Str("speaker", c.speakerID).
			Str("language", c.language).
			Msg("No translation needed, releasing turn")
		a.publishSignal(signal.TTSComplete())
		return
	}

	a.publishSignal(signal.Processing())

	metrics.RecordTranslateStart()
	translated, err := a.translator.Translate(ctx, text, c.language, targetLang)
	metrics.RecordTranslateEnd(err == nil)
	if err != nil {
		a.logger.Error().Err(err).Str("speaker", c.speakerID).Msg("Translation failed")
		observability.RecordError("translate", "agent")
		a.publishSignal(signal.Error("Translation failed"))
		return
	}

	a.publishSignal(signal.TTSPlaying(text, translated))

	metrics.RecordTTSStart()
	err = a.playTranslation(ctx, c.speakerID, translated)
	metrics.RecordTTSEnd(err == nil)
	if err != nil {
		a.logger.Error().Err(err).Str("speaker", c.speakerID).Msg("Playback failed")
		observability.RecordError("tts", "agent")
		a.publishSignal(signal.Error("Could not play translation"))
		return
	}

	a.publishSignal(signal.TTSComplete())
	a.logger.Info().Str("speaker", c.speakerID).Msg("Turn completed")
}

// drainTranscript stops the STT stream and waits briefly for trailing
// results before assembling the turn's text.
func (a *Agent) drainTranscript(ctx context.Context, c *capture) string {
	// Flush any sub-frame remainder still sitting in the capture buffer
	if n := c.buf.Available(); n > 0 {
		tail := make([]byte, n)
		if got := c.buf.Read(tail); got > 0 {
			a.forwardFrame(c, tail[:got])
		}
	}

	if err := c.sttClient.Stop(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to stop STT session")
	}
	if err := c.sttClient.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close STT session")
	}

	select {
	case <-c.done:
	case <-time.After(transcriptFlushDelay):
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(strings.Join(c.transcript, " "))
}

// playTranslation synthesizes the translated text and streams it on a
// track named for the speaker, so listeners can suppress their own echo.
func (a *Agent) playTranslation(ctx context.Context, speakerID, translated string) error {
	track, err := a.session.PublishTrack(a.cfg.TrackPrefix+speakerID, a.cfg.PlaybackSampleRate)
	if err != nil {
		return fmt.Errorf("publish track: %w", err)
	}
	defer func() {
		if err := track.Unpublish(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to unpublish track")
		}
	}()

	chunks, err := a.ttsClient.Synthesize(ctx, translated)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	for chunk := range chunks {
		if err := track.WriteFrame(chunk.Data); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		observability.RecordAudioBytes("playback", int64(len(chunk.Data)))
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// targetLanguage picks the language of the other participant
func (a *Agent) targetLanguage(speakerID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	for identity, member := range a.members {
		if identity == speakerID {
			continue
		}
		if member.Language != "" {
			return member.Language
		}
	}
	return ""
}

func (a *Agent) publishSignal(sig signal.Signal) {
	payload, err := signal.Encode(sig)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to encode signal")
		return
	}

	if err := a.session.PublishData(a.cfg.SignalTopic, payload); err != nil {
		a.logger.Error().Err(err).Str("signal", string(sig.Kind)).Msg("Failed to publish signal")
		observability.RecordError("broadcast", "agent")
		return
	}
	observability.RecordSignal(string(sig.Kind), "sent")
}

func (a *Agent) closeCapture(c *capture) {
	if err := c.sttClient.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close STT session")
	}
}

// Close aborts any in-flight turn and releases resources
func (a *Agent) Close() {
	a.cancel()

	a.mu.Lock()
	c := a.active
	a.active = nil
	a.mu.Unlock()

	if c != nil {
		a.closeCapture(c)
	}
}
