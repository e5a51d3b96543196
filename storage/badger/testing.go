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


package badger

// MemoryStores bundles in-memory stores sharing one backend.
type MemoryStores struct {
	Backend     *Backend
	Tables      *TableStore
	Vectors     *VectorStore
	Checkpoints *CheckpointStore
}

// Close closes the shared backend.
func (m *MemoryStores) Close() error {
	return m.Backend.Close()
}

// NewMemoryStores creates in-memory table, vector and checkpoint stores for testing.
// Caller must Close the result when done.
func NewMemoryStores(opts ...VectorOption) (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	vectors, err := NewVectorStore(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		Backend:     backend,
		Tables:      NewTableStore(backend),
		Vectors:     vectors,
		Checkpoints: NewCheckpointStore(backend),
	}, nil
}
