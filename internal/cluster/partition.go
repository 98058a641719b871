// Package cluster holds the small pieces of partition plumbing shared by
// the record-store packages, the demo binary, and tests: key-to-partition
// routing and the wire shape of a map entry.
//
// Partition ownership, membership, and migration are the surrounding
// cluster's concern and deliberately absent here.
package cluster

import (
	"encoding/json"
	"hash/fnv"
)

// DefaultPartitionCount is the partition count used when a map's
// configuration does not set one. Fixed for the lifetime of a map.
const DefaultPartitionCount = 271

// PartitionForKey routes a key to its owning partition by FNV-1a hash.
// partitionCount must be positive and identical on every member.
func PartitionForKey(key string, partitionCount int) int {
	if partitionCount <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(partitionCount))
}

// OwnsKey reports whether partitionID owns key under the given count.
func OwnsKey(key string, partitionID, partitionCount int) bool {
	return PartitionForKey(key, partitionCount) == partitionID
}

// WireEntry is the JSON shape of one map entry crossing a process boundary,
// used by the demo binary's output and by merge-operation payloads.
type WireEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`

	// Merge metadata, zero for plain entries.
	CreationTime   int64 `json:"creationTime,omitempty"`   // Unix millis
	LastAccessTime int64 `json:"lastAccessTime,omitempty"` // Unix millis
	LastUpdateTime int64 `json:"lastUpdateTime,omitempty"` // Unix millis
	TTLMillis      int64 `json:"ttlMillis,omitempty"`
	Hits           int64 `json:"hits,omitempty"`
	Version        int64 `json:"version,omitempty"`
}
