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

import (
	"fmt"
)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - Ticker must not be empty
//   - Source must be a known source
//   - Kind must be market or event
//
// Titles, dates and metrics are optional; sources omit them routinely.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.Ticker == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTicker)
	}

	if err := ValidateSource(record.Source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if err := ValidateKind(record.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return nil
}

// ValidateEmbeddingRecord checks identity and that the vector has exactly dim elements.
func ValidateEmbeddingRecord(record *EmbeddingRecord, dim int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddingRecord)
	}

	if record.ID == "" || record.Ticker == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrEmptyTicker)
	}

	if err := ValidateKind(record.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, err)
	}

	if len(record.Vector) != dim {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrDimensionMismatch, record.ID, len(record.Vector), dim)
	}

	return nil
}

// ValidateSource validates that a Source has a supported value.
func ValidateSource(source Source) error {
	if source != SourceKalshi && source != SourcePolymarket {
		return fmt.Errorf("%w: value %d", ErrUnknownSource, source)
	}
	return nil
}

// ValidateKind validates that a RecordKind has a valid value.
func ValidateKind(kind RecordKind) error {
	if kind != KindMarket && kind != KindEvent {
		return fmt.Errorf("%w: value %d", ErrInvalidKind, kind)
	}
	return nil
}
