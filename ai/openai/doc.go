// Package openai provides an ai.Embedder backed by OpenAI-compatible APIs.
//
// The langchaingo client talks to OpenAI or any compatible server (Ollama,
// LocalAI, vLLM). The configured model must emit 384-dimension vectors;
// responses of any other size are rejected.
//
// # Usage
//
//	embedder, err := openai.NewEmbedder(ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("all-minilm"),
//	))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "Will the Fed cut rates in March?")
package openai
