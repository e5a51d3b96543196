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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/predindex/core"
)

var (
	stringsMUS  = ord.NewSliceSer[string](ord.String)
	floatPtrMUS = ord.NewPtrSer[float64](raw.Float64)
	vectorMUS   = ord.NewSliceSer[float32](raw.Float32)
	vectorsMUS  = ord.NewSliceSer[[]float32](vectorMUS)
)

// VectorSchema describes the fixed layout of a vector table.
type VectorSchema struct {
	Dim    int
	Fields []string
}

// DefaultVectorSchema is the schema every vector table is created with.
func DefaultVectorSchema() VectorSchema {
	return VectorSchema{
		Dim:    core.VectorDim,
		Fields: []string{"id", "vector", "ticker", "source", "title", "description", "outcomes", "url"},
	}
}

// appendField grows buf by the encoded size of v and marshals v into it.
func appendField[T any](buf []byte, ser mus.Serializer[T], v T) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, ser.Size(v))...)
	ser.Marshal(v, buf[start:])
	return buf
}

// decoder reads consecutive fields and remembers the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func readField[T any](d *decoder, ser mus.Serializer[T]) (v T) {
	if d.err != nil {
		return v
	}
	v, n, err := ser.Unmarshal(d.bs[d.n:])
	d.n += n
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return v
}

func (d *decoder) time() time.Time {
	return timeFromMicros(readField[int64](d, varint.Int64))
}

func (d *decoder) strings() []string {
	v := readField[[]string](d, stringsMUS)
	if len(v) == 0 {
		return nil
	}
	return v
}

func timeMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func timeFromMicros(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(r *core.Record) []byte {
	buf := make([]byte, 0, 256)
	buf = appendField[int](buf, varint.Int, int(r.Kind))
	buf = appendField[string](buf, ord.String, r.Ticker)
	buf = appendField[int](buf, varint.Int, int(r.Source))
	buf = appendField[string](buf, ord.String, r.Title)
	buf = appendField[string](buf, ord.String, r.Description)
	buf = appendField[string](buf, ord.String, r.Status)
	buf = appendField[[]string](buf, stringsMUS, r.Outcomes)
	buf = appendField[int64](buf, varint.Int64, timeMicros(r.StartDate))
	buf = appendField[int64](buf, varint.Int64, timeMicros(r.EndDate))
	buf = appendField[*float64](buf, floatPtrMUS, r.Volume)
	buf = appendField[*float64](buf, floatPtrMUS, r.Liquidity)
	buf = appendField[string](buf, ord.String, r.URL)
	buf = appendField[int64](buf, varint.Int64, timeMicros(r.IngestedAt))
	return buf
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	d := &decoder{bs: data}
	r := &core.Record{}
	r.Kind = core.RecordKind(readField[int](d, varint.Int))
	r.Ticker = readField[string](d, ord.String)
	r.Source = core.Source(readField[int](d, varint.Int))
	r.Title = readField[string](d, ord.String)
	r.Description = readField[string](d, ord.String)
	r.Status = readField[string](d, ord.String)
	r.Outcomes = d.strings()
	r.StartDate = d.time()
	r.EndDate = d.time()
	r.Volume = readField[*float64](d, floatPtrMUS)
	r.Liquidity = readField[*float64](d, floatPtrMUS)
	r.URL = readField[string](d, ord.String)
	r.IngestedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(r *core.EmbeddingRecord) []byte {
	buf := make([]byte, 0, 4*len(r.Vector)+256)
	buf = appendField[string](buf, ord.String, r.ID)
	buf = appendField[int](buf, varint.Int, int(r.Kind))
	buf = appendField[[]float32](buf, vectorMUS, r.Vector)
	buf = appendField[string](buf, ord.String, r.Ticker)
	buf = appendField[int](buf, varint.Int, int(r.Source))
	buf = appendField[string](buf, ord.String, r.Title)
	buf = appendField[string](buf, ord.String, r.Description)
	buf = appendField[string](buf, ord.String, r.Outcomes)
	buf = appendField[string](buf, ord.String, r.URL)
	return buf
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	d := &decoder{bs: data}
	r := &core.EmbeddingRecord{}
	r.ID = readField[string](d, ord.String)
	r.Kind = core.RecordKind(readField[int](d, varint.Int))
	r.Vector = readField[[]float32](d, vectorMUS)
	r.Ticker = readField[string](d, ord.String)
	r.Source = core.Source(readField[int](d, varint.Int))
	r.Title = readField[string](d, ord.String)
	r.Description = readField[string](d, ord.String)
	r.Outcomes = readField[string](d, ord.String)
	r.URL = readField[string](d, ord.String)
	if d.err != nil {
		return nil, d.err
	}
	return r, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(c *core.Checkpoint) []byte {
	buf := make([]byte, 0, 64)
	buf = appendField[string](buf, ord.String, c.Task)
	buf = appendField[string](buf, ord.String, c.Cursor)
	buf = appendField[int](buf, varint.Int, c.Pages)
	buf = appendField[int64](buf, varint.Int64, timeMicros(c.UpdatedAt))
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	d := &decoder{bs: data}
	c := &core.Checkpoint{}
	c.Task = readField[string](d, ord.String)
	c.Cursor = readField[string](d, ord.String)
	c.Pages = readField[int](d, varint.Int)
	c.UpdatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return c, nil
}

// MarshalVectorSchema serializes a VectorSchema to bytes.
func MarshalVectorSchema(s VectorSchema) []byte {
	buf := appendField[int](nil, varint.Int, s.Dim)
	return appendField[[]string](buf, stringsMUS, s.Fields)
}

// UnmarshalVectorSchema deserializes a VectorSchema from bytes.
func UnmarshalVectorSchema(data []byte) (VectorSchema, error) {
	d := &decoder{bs: data}
	s := VectorSchema{
		Dim:    readField[int](d, varint.Int),
		Fields: d.strings(),
	}
	return s, d.err
}

// MarshalVectors serializes a list of vectors, such as index centroids.
func MarshalVectors(vectors [][]float32) []byte {
	return appendField[[][]float32](nil, vectorsMUS, vectors)
}

// UnmarshalVectors deserializes a list of vectors.
func UnmarshalVectors(data []byte) ([][]float32, error) {
	d := &decoder{bs: data}
	v := readField[[][]float32](d, vectorsMUS)
	return v, d.err
}
