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

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// TableStore implements storage.TableStore for BadgerDB.
type TableStore struct {
	backend *Backend
}

var _ storage.TableStore = (*TableStore)(nil)

// NewTableStore creates a new TableStore.
func NewTableStore(backend *Backend) *TableStore {
	return &TableStore{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (s *TableStore) Close() error {
	return nil
}

// Upsert inserts or replaces records in a single transaction.
func (s *TableStore) Upsert(ctx context.Context, kind core.RecordKind, records ...*core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateKind(kind); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, record := range records {
		record.Kind = kind
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			record.IngestedAt = now
			key := makeTableRecordKey(kind, record.Source, record.Ticker)
			if err := tx.Set(key, storage.MarshalRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// UpsertMarkets inserts or replaces market rows.
func (s *TableStore) UpsertMarkets(ctx context.Context, records ...*core.Record) error {
	return s.Upsert(ctx, core.KindMarket, records...)
}

// UpsertEvents inserts or replaces event rows.
func (s *TableStore) UpsertEvents(ctx context.Context, records ...*core.Record) error {
	return s.Upsert(ctx, core.KindEvent, records...)
}

// Get retrieves a single row by identity.
func (s *TableStore) Get(ctx context.Context, kind core.RecordKind, source core.Source, ticker string) (*core.Record, error) {
	var record *core.Record
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTableRecordKey(kind, source, ticker))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalRecord(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ForEach streams rows of kind to fn in batches.
// Rows are loaded before fn runs so fn may write to the store.
func (s *TableStore) ForEach(ctx context.Context, kind core.RecordKind, batchSize int, fn func(batch []*core.Record) error) error {
	if batchSize < 1 {
		return storage.ErrInvalidQuery
	}

	var records []*core.Record
	err := s.backend.scanPrefix(makeTableRecordPrefix(kind), func(_, val []byte) error {
		record, err := storage.UnmarshalRecord(val)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(records))
		if err := fn(records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of rows of kind.
func (s *TableStore) Count(ctx context.Context, kind core.RecordKind) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTableRecordPrefix(kind)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
