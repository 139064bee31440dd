// Package stt defines the Provider interface for Speech-to-Text backends.
//
// During a screening call the browser streams audio as discrete chunks and
// signals the end of each utterance explicitly, so transcription is a batch
// operation: all chunks of one utterance are submitted together and a single
// text comes back. Providers wrap a transcription service such as a local
// whisper-server instance.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Transcribe submits the audio chunks of one utterance and returns the
	// recognised text. chunks are the raw audio fragments in arrival order;
	// codec names the container/encoding (e.g., "webm-opus", "pcm16") and
	// sampleRateHz is the capture sample rate.
	//
	// An empty string with nil error means the utterance contained no
	// recognisable speech.
	Transcribe(ctx context.Context, chunks [][]byte, codec string, sampleRateHz int) (string, error)
}
