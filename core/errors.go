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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidEmbeddingRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidEmbeddingRecord = errors.New("invalid embedding record")

	// ErrEmptyTicker indicates the Ticker field is empty.
	ErrEmptyTicker = errors.New("ticker cannot be empty")

	// ErrUnknownSource indicates a source name or value is not supported.
	ErrUnknownSource = errors.New("unknown source")

	// ErrInvalidKind indicates an invalid RecordKind value.
	ErrInvalidKind = errors.New("invalid record kind")

	// ErrDimensionMismatch indicates a vector does not have VectorDim elements.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
