package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/predindex/core"
)

// Key prefixes for different data types
const (
	tableRecordPrefix = "tblrec"
	vectorMetaPrefix  = "vecmeta"
	vectorRowPrefix   = "vecrow"
	vectorCentroidKey = "veccent"
	vectorListPrefix  = "veclist"
	checkpointPrefix  = "chkpt"
)

// makeTableRecordPrefix generates the prefix shared by all rows of a kind.
// Format: prefix:kind:
func makeTableRecordPrefix(kind core.RecordKind) []byte {
	return []byte(fmt.Sprintf("%s:%d:", tableRecordPrefix, kind))
}

// makeTableRecordKey generates a key for a table row.
// Format: prefix:kind:source:ticker
func makeTableRecordKey(kind core.RecordKind, source core.Source, ticker string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d:%s", tableRecordPrefix, kind, source, ticker))
}

// makeVectorMetaKey generates the schema key of a vector table.
func makeVectorMetaKey(kind core.RecordKind) []byte {
	return []byte(fmt.Sprintf("%s:%d", vectorMetaPrefix, kind))
}

// makeVectorRowPrefix generates the prefix shared by all vector rows of a kind.
func makeVectorRowPrefix(kind core.RecordKind) []byte {
	return []byte(fmt.Sprintf("%s:%d:", vectorRowPrefix, kind))
}

// makeVectorRowKey generates a fixed-width key for a vector row.
// Format: prefix:kind:rowID
func makeVectorRowKey(kind core.RecordKind, rowID core.ID) []byte {
	prefix := makeVectorRowPrefix(kind)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(rowID))
	return buf
}

// rowIDFromKey extracts the row ID from a vector row or list key.
func rowIDFromKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeVectorCentroidKey generates the key holding the index centroids.
func makeVectorCentroidKey(kind core.RecordKind) []byte {
	return []byte(fmt.Sprintf("%s:%d", vectorCentroidKey, kind))
}

// makeVectorListPrefix generates the prefix of all inverted lists of a kind.
func makeVectorListPrefix(kind core.RecordKind) []byte {
	return []byte(fmt.Sprintf("%s:%d:", vectorListPrefix, kind))
}

// makePartialVectorListKey generates the prefix of one inverted list.
// Format: prefix:kind:centroid
func makePartialVectorListKey(kind core.RecordKind, centroid int) []byte {
	prefix := makeVectorListPrefix(kind)
	buf := make([]byte, len(prefix)+4)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint32(buf[offset:], uint32(centroid))
	return buf
}

// makeVectorListKey generates an inverted list entry.
// Format: prefix:kind:centroid:rowID
func makeVectorListKey(kind core.RecordKind, centroid int, rowID core.ID) []byte {
	partial := makePartialVectorListKey(kind, centroid)
	buf := make([]byte, len(partial)+8)
	offset := copy(buf, partial)
	binary.BigEndian.PutUint64(buf[offset:], uint64(rowID))
	return buf
}

// makeCheckpointKey generates a key for an ingestion task checkpoint.
func makeCheckpointKey(task string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, task))
}
