// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// The segmentation core compares adjacent transcript units by cosine
// similarity of their embedding vectors, and the case archive indexes stored
// cases by the same vectors. A Provider wraps whatever service produces those
// vectors (OpenAI text-embedding-3, a local Ollama model, a self-hosted
// sentence transformer) behind a uniform contract: text in, fixed-length
// float32 vector out, identical text giving identical vectors within a run.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the dimensionality
// reported by Dimensions. Vectors from different Provider instances must not
// be mixed in one similarity computation unless both use the same model.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns
	// a float32 slice of length Dimensions() or an error if the request
	// fails or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts. The
	// returned slice has the same length as texts and element i corresponds
	// to texts[i].
	//
	// Implementations may split large inputs into multiple backend requests
	// (see the provider-specific batch-size options); such internal batching
	// must never change the order or values of the result. Partial results
	// are not returned — on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier
	// (e.g., "text-embedding-3-small", "nomic-embed-text").
	ModelID() string
}
