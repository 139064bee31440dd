// Package stub provides a deterministic, offline embeddings provider.
//
// It derives a small vector from a SHA-256 hash of the input text, so equal
// texts always map to equal vectors and no external service is needed. It is
// the fallback the screening pipeline uses when the real embeddings backend
// is unavailable, and it keeps tests hermetic.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/cmcp0/torreai-new-screening-process-approach/pkg/provider/embeddings"
)

// dimensions is the fixed vector length produced by the stub.
const dimensions = 32

// Ensure Provider implements the embeddings.Provider interface.
var _ embeddings.Provider = Provider{}

// Provider is the stateless stub embeddings provider.
type Provider struct{}

// Embed implements embeddings.Provider. Empty input maps to the vector for
// the literal text "empty" so callers always receive a usable vector.
func (Provider) Embed(_ context.Context, text string) ([]float32, error) {
	return Vector(text), nil
}

// Vector derives the deterministic stub vector for text. Component i is
// ((h >> 2i) mod 1000) / 1000 where h is the first 8 bytes of the SHA-256
// digest interpreted as a big-endian integer.
func Vector(text string) []float32 {
	if text == "" {
		text = "empty"
	}
	sum := sha256.Sum256([]byte(text))
	h := binary.BigEndian.Uint64(sum[:8])

	vec := make([]float32, dimensions)
	for i := range vec {
		vec[i] = float32((h>>(2*i))%1000) / 1000.0
	}
	return vec
}
