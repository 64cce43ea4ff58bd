package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"
)

// EmbeddingDim matches the documents table schema.
const EmbeddingDim = 768

// HashEmbedder produces deterministic unit vectors derived from the input
// text, so similarity tests behave the same on every run without a live
// embedding model. Identical texts embed identically; different texts land
// far apart with overwhelming probability.
type HashEmbedder struct{}

// Embed implements provider.Embedder over hashed content.
func (HashEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			if part != nil && part.IsText() {
				text += part.Text
			}
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: hashVector(text)})
	}
	return resp, nil
}

func hashVector(text string) []float32 {
	vec := make([]float32, EmbeddingDim)
	seed := sha256.Sum256([]byte(text))

	var norm float64
	for i := 0; i < EmbeddingDim; i++ {
		// Stretch the 32-byte digest across the vector by re-hashing
		// with the dimension index.
		var buf [36]byte
		copy(buf[:32], seed[:])
		binary.LittleEndian.PutUint32(buf[32:], uint32(i))
		h := sha256.Sum256(buf[:])
		v := float32(int32(binary.LittleEndian.Uint32(h[:4]))) / float32(math.MaxInt32)
		vec[i] = v
		norm += float64(v) * float64(v)
	}

	// Normalize so cosine distance behaves.
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
