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


// Package storage provides the storage abstraction layer for predindex.
//
// Ingestion writes every page to two stores that do not share a transaction:
//
//   - TableStore: one structured row per (ticker, source), upserted in bulk
//   - VectorStore: one embedding row per (source, ticker) plus an ANN index
//   - CheckpointStore: last committed cursor per ingestion task
//
// Implementations live in storage/badger (all three, local disk) and
// storage/milvus (VectorStore only, remote server).
//
// # Serialization
//
// Rows stored in BadgerDB are encoded with mus-go. Times are stored as Unix
// microseconds with 0 reserved for the zero time.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/var/lib/predindex", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	tables := badger.NewTableStore(backend)
//	vectors, err := badger.NewVectorStore(backend)
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines.
package storage
