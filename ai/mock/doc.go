// Package mock provides a test double for ai.Embedder.
//
// The mock lets tests run without an embedding server and gives controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	vectors, err := embedder.EmbedTexts(ctx, []string{"a", "b"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("embedding service down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// By default every text maps to a unit vector of core.VectorDim elements
// derived from an FNV hash of the text, so equal texts embed identically.
package mock
