// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides the embedding abstraction used by predindex.
//
// Market and event text is turned into fixed-length vectors by an Embedder.
// Every vector written to the vector store must have core.VectorDim elements.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embedding APIs (Ollama, vLLM, OpenAI) via langchaingo
//   - ai/mock: deterministic test double
//
// Public constructors in ai/openai return the ai.Embedder interface. The mock
// returns its concrete type so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434"))
//	embedder, err := openai.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{"Title: Fed cuts rates"})
package ai
