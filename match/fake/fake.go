// Package fake provides a deterministic hash-based embedder for tests. It
// never touches the network and always returns the same vector for the same
// input text.
package fake

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// Embedder produces fixed-size vectors derived from SHA-256 of the input.
type Embedder struct {
	dim int
}

// New returns a fake embedder with the given dimension (minimum 4).
func New(dim int) *Embedder {
	if dim < 4 {
		dim = 4
	}
	return &Embedder{dim: dim}
}

// Embed implements match.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := sha256.Sum256([]byte(text))
	vec := make([]float32, e.dim)
	for i := 0; i < e.dim; i++ {
		off := (i * 4) % len(h)
		u := binary.LittleEndian.Uint32(h[off : off+4])
		// Scale to [0,1) then shift to [-0.5, 0.5).
		vec[i] = (float32(u&0x7FFFFFFF) / float32(1<<31)) - 0.5
	}
	return vec, nil
}
