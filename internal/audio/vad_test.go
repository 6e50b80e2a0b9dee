package audio

import (
	"testing"
)

func testVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
	}
}

func speechFrame() []int16 {
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = 5000
	}
	return samples
}

func silenceFrame() []int16 {
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = 10
	}
	return samples
}

func TestVADDetector_ProcessFrame_Speech(t *testing.T) {
	vad := NewVADDetector(testVADConfig())

	for i := 0; i < 5; i++ {
		isSpeaking, speechStarted, _ := vad.ProcessFrame(speechFrame())
		if !isSpeaking {
			t.Errorf("Expected speech detection on frame %d", i)
		}
		if i == 0 && !speechStarted {
			t.Error("Expected speech to start on first frame")
		}
		if i > 0 && speechStarted {
			t.Errorf("Expected speechStarted only on first frame, got it on frame %d", i)
		}
	}

	if vad.SpeechFrames() != 5 {
		t.Errorf("Expected 5 speech frames counted, got %d", vad.SpeechFrames())
	}
}

func TestVADDetector_ProcessFrame_Silence(t *testing.T) {
	vad := NewVADDetector(testVADConfig())

	for i := 0; i < 15; i++ {
		isSpeaking, _, _ := vad.ProcessFrame(silenceFrame())
		if isSpeaking {
			t.Errorf("Expected no speech detection on frame %d", i)
		}
	}

	if vad.SpeechFrames() != 0 {
		t.Errorf("Expected 0 speech frames counted, got %d", vad.SpeechFrames())
	}
}

func TestVADDetector_SpeechEnd(t *testing.T) {
	vad := NewVADDetector(testVADConfig())

	vad.ProcessFrame(speechFrame())

	var ended bool
	for i := 0; i < 10; i++ {
		_, _, speechEnded := vad.ProcessFrame(silenceFrame())
		if speechEnded {
			ended = true
			if i != 9 {
				t.Errorf("Expected speech to end on silence frame 10, ended on %d", i+1)
			}
		}
	}

	if !ended {
		t.Error("Expected speech to end after enough silence frames")
	}
	if vad.IsSpeaking() {
		t.Error("Expected speaking to be false after speech ended")
	}
}

func TestVADDetector_Reset(t *testing.T) {
	vad := NewVADDetector(testVADConfig())

	vad.ProcessFrame(speechFrame())
	vad.Reset()

	if vad.IsSpeaking() {
		t.Error("Expected speaking to be false after Reset")
	}
	if vad.SpeechFrames() != 0 {
		t.Errorf("Expected 0 speech frames after Reset, got %d", vad.SpeechFrames())
	}
}

func TestVADDetector_NilConfig(t *testing.T) {
	vad := NewVADDetector(nil)
	if vad == nil {
		t.Fatal("Expected detector with default config")
	}

	isSpeaking, _, _ := vad.ProcessFrame(speechFrame())
	if !isSpeaking {
		t.Error("Expected default config to detect speech")
	}
}
