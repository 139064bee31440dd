// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed controlled transcripts without a live transcription
// backend and to verify what audio was submitted.
package mock

import (
	"context"
	"sync"

	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Chunks is a shallow copy of the chunk slice passed to Transcribe.
	Chunks [][]byte
	// Codec is the codec string passed to Transcribe.
	Codec string
	// SampleRateHz is the sample rate passed to Transcribe.
	SampleRateHz int
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return "", nil.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe.
	Result string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFunc, if set, overrides Result/Err entirely.
	TranscribeFunc func(ctx context.Context, chunks [][]byte, codec string, sampleRateHz int) (string, error)

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, chunks [][]byte, codec string, sampleRateHz int) (string, error) {
	p.mu.Lock()
	cp := make([][]byte, len(chunks))
	copy(cp, chunks)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Chunks: cp, Codec: codec, SampleRateHz: sampleRateHz})
	fn := p.TranscribeFunc
	result, err := p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, chunks, codec, sampleRateHz)
	}
	return result, err
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
