package router

import (
	"errors"
	"sync"
	"testing"

	"github.com/linguacall/walkie-gateway/internal/room"
)

type fakeSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *fakeSink) WriteFrame(pcm []byte, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, pcm)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type sinkRecorder struct {
	mu    sync.Mutex
	sinks map[string]*fakeSink
	err   error
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{sinks: make(map[string]*fakeSink)}
}

func (r *sinkRecorder) factory(track room.TrackInfo, speakerID string) (Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeSink{}
	r.sinks[track.SID] = s
	return s, nil
}

func agentTrack(sid, speakerID string) room.TrackInfo {
	return room.TrackInfo{
		SID:                 sid,
		Name:                "translated-" + speakerID,
		Kind:                room.TrackKindAudio,
		ParticipantIdentity: "translation-agent",
		SampleRate:          24000,
	}
}

func newTestRouter(rec *sinkRecorder) *Router {
	return NewRouter("alice", "translation-agent", "translated-", rec.factory)
}

func TestBindsPeerTranslatedTrack(t *testing.T) {
	rec := newSinkRecorder()
	r := newTestRouter(rec)
	defer r.Close()

	if err := r.HandleTrackSubscribed(agentTrack("TR_1", "bob")); err != nil {
		t.Fatalf("Expected bind to succeed, got %v", err)
	}
	if r.Bindings() != 1 {
		t.Errorf("Expected 1 binding, got %d", r.Bindings())
	}

	r.HandleMedia(room.MediaFrame{TrackSID: "TR_1", PCM: []byte{1, 2, 3, 4}, SampleRate: 24000})
	if rec.sinks["TR_1"].frameCount() != 1 {
		t.Errorf("Expected 1 frame delivered, got %d", rec.sinks["TR_1"].frameCount())
	}
}

func TestSkipsOwnTranslatedTrack(t *testing.T) {
	rec := newSinkRecorder()
	r := newTestRouter(rec)
	defer r.Close()

	if err := r.HandleTrackSubscribed(agentTrack("TR_1", "alice")); err != nil {
		t.Fatalf("Expected skip, got %v", err)
	}
	if r.Bindings() != 0 {
		t.Errorf("Expected own translation not bound, got %d bindings", r.Bindings())
	}
}

func TestIgnoresIneligibleTracks(t *testing.T) {
	rec := newSinkRecorder()
	r := newTestRouter(rec)
	defer r.Close()

	cases := []room.TrackInfo{
		{SID: "TR_1", Name: "translated-bob", Kind: room.TrackKindAudio, ParticipantIdentity: "bob"},
		{SID: "TR_2", Name: "translated-bob", Kind: room.TrackKindVideo, ParticipantIdentity: "translation-agent"},
		{SID: "TR_3", Name: "microphone", Kind: room.TrackKindAudio, ParticipantIdentity: "translation-agent"},
		{SID: "TR_4", Name: "translated-", Kind: room.TrackKindAudio, ParticipantIdentity: "translation-agent"},
	}

	for _, track := range cases {
		if err := r.HandleTrackSubscribed(track); err != nil {
			t.Errorf("Expected track %q to be ignored without error, got %v", track.Name, err)
		}
	}
	if r.Bindings() != 0 {
		t.Errorf("Expected no bindings, got %d", r.Bindings())
	}
}

func TestDuplicateSubscribeIsNoOp(t *testing.T) {
	rec := newSinkRecorder()
	r := newTestRouter(rec)
	defer r.Close()

	track := agentTrack("TR_1", "bob")
	if err := r.HandleTrackSubscribed(track); err != nil {
		t.Fatal(err)
	}
	first := rec.sinks["TR_1"]

	if err := r.HandleTrackSubscribed(track); err != nil {
		t.Fatal(err)
	}
	if r.Bindings() != 1 {
		t.Errorf("Expected 1 binding after duplicate subscribe, got %d", r.Bindings())
	}
	if rec.sinks["TR_1"] != first {
		t.Error("Expected duplicate subscribe not to replace the sink")
	}
}

func TestUnsubscribeReleasesAndIsIdempotent(t *testing.T) {
	rec := newSinkRecorder()
	r := newTestRouter(rec)
	defer r.Close()

	if err := r.HandleTrackSubscribed(agentTrack("TR_1", "bob")); err != nil {
		t.Fatal(err)
	}

	r.HandleTrackUnsubscribed("TR_1")
	if r.Bindings() != 0 {
		t.Errorf("Expected 0 bindings after unsubscribe, got %d", r.Bindings())
	}
	if !rec.sinks["TR_1"].closed {
		t.Error("Expected sink closed on unsubscribe")
	}

	// Release of an unknown or already released track does nothing
	r.HandleTrackUnsubscribed("TR_1")
	r.HandleTrackUnsubscribed("TR_99")

	// Frames for the released track are dropped
	r.HandleMedia(room.MediaFrame{TrackSID: "TR_1", PCM: []byte{1, 2}})
	if rec.sinks["TR_1"].frameCount() != 0 {
		t.Errorf("Expected no frames after release, got %d", rec.sinks["TR_1"].frameCount())
	}
}

func TestSinkFactoryErrorPropagates(t *testing.T) {
	rec := newSinkRecorder()
	rec.err = errors.New("no audio device")
	r := newTestRouter(rec)
	defer r.Close()

	if err := r.HandleTrackSubscribed(agentTrack("TR_1", "bob")); err == nil {
		t.Fatal("Expected bind to fail when sink cannot be created")
	}
	if r.Bindings() != 0 {
		t.Errorf("Expected no binding after factory failure, got %d", r.Bindings())
	}
}

func TestCloseReleasesAllBindings(t *testing.T) {
	rec := newSinkRecorder()
	r := newTestRouter(rec)

	if err := r.HandleTrackSubscribed(agentTrack("TR_1", "bob")); err != nil {
		t.Fatal(err)
	}
	if err := r.HandleTrackSubscribed(agentTrack("TR_2", "carol")); err != nil {
		t.Fatal(err)
	}

	r.Close()

	if r.Bindings() != 0 {
		t.Errorf("Expected all bindings released, got %d", r.Bindings())
	}
	for sid, s := range rec.sinks {
		if !s.closed {
			t.Errorf("Expected sink %s closed", sid)
		}
	}

	// A closed router accepts no new bindings
	if err := r.HandleTrackSubscribed(agentTrack("TR_3", "bob")); err != nil {
		t.Fatal(err)
	}
	if r.Bindings() != 0 {
		t.Errorf("Expected closed router to reject bindings, got %d", r.Bindings())
	}
}
