package tts

import "context"

// AudioChunk represents a chunk of synthesized audio ready for streaming
type AudioChunk struct {
	Data       []byte // Raw 16-bit little-endian PCM
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1 for mono)
}

// TTSClient defines the interface for a Text-to-Speech client
type TTSClient interface {
	// Synthesize converts text to audio and streams it in chunks
	Synthesize(ctx context.Context, text string) (<-chan *AudioChunk, error)

	// Stop stops any ongoing synthesis
	Stop() error

	// Close closes the client and cleans up resources
	Close() error

	// IsActive returns whether the client is currently synthesizing
	IsActive() bool
}
