// Package router binds translated audio tracks to playback sinks.
// Only tracks published by the translation agent are considered, and a
// participant never hears the translation of their own speech.
package router

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/linguacall/walkie-gateway/internal/observability"
	"github.com/linguacall/walkie-gateway/internal/room"
)

// Sink consumes decoded audio for one bound track
type Sink interface {
	WriteFrame(pcm []byte, sampleRate int) error
	Close() error
}

// SinkFactory creates a sink for a newly bound track. speakerID is the
// participant whose translated speech the track carries.
type SinkFactory func(track room.TrackInfo, speakerID string) (Sink, error)

type binding struct {
	track     room.TrackInfo
	speakerID string
	sink      Sink
}

// Router routes subscribed translated tracks to playback sinks, keyed by
// track SID. Bind and unbind are idempotent.
type Router struct {
	localIdentity string
	agentIdentity string
	trackPrefix   string
	newSink       SinkFactory

	mu       sync.Mutex
	bindings map[string]*binding
	closed   bool

	logger zerolog.Logger
}

// NewRouter creates a router for the local participant. Tracks from
// agentIdentity whose names start with trackPrefix are eligible.
func NewRouter(localIdentity, agentIdentity, trackPrefix string, newSink SinkFactory) *Router {
	return &Router{
		localIdentity: localIdentity,
		agentIdentity: agentIdentity,
		trackPrefix:   trackPrefix,
		newSink:       newSink,
		bindings:      make(map[string]*binding),
		logger:        observability.GetLogger().With().Str("component", "router").Logger(),
	}
}

// HandleTrackSubscribed binds a playback sink for the track if it is a
// translated audio track from another participant's turn. Everything else
// is ignored, including our own translated speech.
func (r *Router) HandleTrackSubscribed(track room.TrackInfo) error {
	if track.ParticipantIdentity != r.agentIdentity {
		return nil
	}
	if track.Kind != room.TrackKindAudio {
		return nil
	}
	if !strings.HasPrefix(track.Name, r.trackPrefix) {
		return nil
	}

	speakerID := strings.TrimPrefix(track.Name, r.trackPrefix)
	if speakerID == "" {
		r.logger.Debug().Str("track", track.Name).Msg("Ignoring track with empty speaker")
		return nil
	}
	if speakerID == r.localIdentity {
		r.logger.Debug().Str("track", track.Name).Msg("Skipping own translated track")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	if _, ok := r.bindings[track.SID]; ok {
		return nil // duplicate subscription event
	}

	sink, err := r.newSink(track, speakerID)
	if err != nil {
		r.logger.Error().Err(err).Str("track", track.Name).Msg("Failed to create playback sink")
		observability.RecordError("sink_create", "router")
		return err
	}

	r.bindings[track.SID] = &binding{track: track, speakerID: speakerID, sink: sink}
	observability.SetTrackBindings(len(r.bindings))
	r.logger.Info().
		Str("track", track.Name).
		Str("speaker", speakerID).
		Msg("Bound translated track")
	return nil
}

// HandleMedia forwards a decoded frame to the sink bound to its track.
// Frames for unbound tracks are dropped.
func (r *Router) HandleMedia(frame room.MediaFrame) {
	r.mu.Lock()
	b, ok := r.bindings[frame.TrackSID]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := b.sink.WriteFrame(frame.PCM, frame.SampleRate); err != nil {
		r.logger.Warn().Err(err).Str("track", b.track.Name).Msg("Playback sink write failed")
		observability.RecordError("sink_write", "router")
		return
	}
	observability.RecordAudioBytes("playback", int64(len(frame.PCM)))
}

// HandleTrackUnsubscribed releases the sink bound to the track, if any
func (r *Router) HandleTrackUnsubscribed(trackSID string) {
	r.mu.Lock()
	b, ok := r.bindings[trackSID]
	if ok {
		delete(r.bindings, trackSID)
		observability.SetTrackBindings(len(r.bindings))
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if err := b.sink.Close(); err != nil {
		r.logger.Warn().Err(err).Str("track", b.track.Name).Msg("Failed to close playback sink")
	}
	r.logger.Info().Str("track", b.track.Name).Msg("Released translated track")
}

// Bindings reports the number of currently bound tracks
func (r *Router) Bindings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// Close releases every bound sink. The router accepts no new bindings
// afterwards.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	bindings := r.bindings
	r.bindings = make(map[string]*binding)
	observability.SetTrackBindings(0)
	r.mu.Unlock()

	for _, b := range bindings {
		if err := b.sink.Close(); err != nil {
			r.logger.Warn().Err(err).Str("track", b.track.Name).Msg("Failed to close playback sink")
		}
	}
}
