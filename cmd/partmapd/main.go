// Package main implements the partmapd service, which hosts the partitioned
// record stores of a single distributed-map member and exposes them over a
// small HTTP API.
//
// The daemon owns every partition of one named map:
//   - Routes each key to its partition and record store
//   - Executes map operations (GET, PUT, DELETE, flush)
//   - Optionally persists through a file-backed store adapter
//   - Optionally pre-populates partitions from the backing store
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│               partmapd                   │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /health       - Health check         │
//	│    /map/{key}    - Entry operations     │
//	│    /map          - Key listing          │
//	│    /flush        - Drain write-behind   │
//	│    /stats        - Member statistics    │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    Member        - Partition table      │
//	│    RecordStore   - One per partition    │
//	│    Backend       - Optional file store  │
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - PARTMAP_CONFIG: Path to a YAML map configuration (optional)
//   - PARTMAP_MAP: Map name when no config file is given (default: "default")
//   - PARTMAP_LISTEN: Listen address (default: ":8080")
//
// Example usage:
//
//	# Start with a write-behind file store
//	PARTMAP_CONFIG=map.yaml ./partmapd
//
//	# Store an entry
//	curl -X PUT localhost:8080/map/user:123 \
//	  -d '{"name":"Alice","age":30}'
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/partmap/internal/cluster"
	"github.com/dreamware/partmap/internal/config"
	"github.com/dreamware/partmap/internal/eviction"
	"github.com/dreamware/partmap/internal/interceptor"
	"github.com/dreamware/partmap/internal/loader"
	"github.com/dreamware/partmap/internal/locks"
	"github.com/dreamware/partmap/internal/mapstore"
	"github.com/dreamware/partmap/internal/recordstore"
)

// logFatal is a variable to allow mocking log.Fatalf in tests.
var logFatal = log.Fatalf

// Member owns every partition of one map on this process. Each partition is
// a single-writer record store; the member serializes access per partition
// by handling each request on the partition it routes to.
//
// Concurrency note: the HTTP server calls into partitions from arbitrary
// goroutines. A production member would pin each partition to one worker;
// this demo keeps a coarse per-member serialization instead, which preserves
// the single-writer contract at the cost of parallelism.
type Member struct {
	// ID uniquely identifies this member, used as the lock caller ID.
	ID string

	cfg        config.MapConfig
	partitions []*recordstore.RecordStore
	stores     []*mapstore.WriteBehindStore

	// sem serializes record-store access (see type comment).
	sem chan struct{}
}

// NewMember builds the partition table for cfg, wiring one record store per
// partition on top of a shared backend when the store mode requires one.
func NewMember(cfg config.MapConfig) (*Member, error) {
	m := &Member{
		ID:         uuid.NewString(),
		cfg:        cfg,
		partitions: make([]*recordstore.RecordStore, cfg.PartitionCount),
		sem:        make(chan struct{}, 1),
	}

	var backend mapstore.Backend
	if cfg.Store.Mode != config.StoreModeNone {
		backend = mapstore.NewFileBackend(cfg.Store.Path)
	}

	var putInterceptors []interceptor.PutFunc
	if cfg.SchemaPath != "" {
		schema, err := os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}
		validate, err := interceptor.NewSchemaValidator(schema)
		if err != nil {
			return nil, err
		}
		putInterceptors = append(putInterceptors, validate)
	}

	for pid := 0; pid < cfg.PartitionCount; pid++ {
		var dataStore mapstore.MapDataStore
		var keyLoader loader.KeyLoader

		switch cfg.Store.Mode {
		case config.StoreModeWriteThrough:
			dataStore = mapstore.NewWriteThrough(backend)
		case config.StoreModeWriteBehind:
			wb := mapstore.NewWriteBehind(backend, cfg.Store.WriteDelay, cfg.Store.WriteBatchSize)
			m.stores = append(m.stores, wb)
			dataStore = wb
		default:
			dataStore = mapstore.NewNoStore()
		}

		chain := interceptor.NewChain()
		for _, put := range putInterceptors {
			chain.AddPut(put)
		}

		var evictor eviction.Evictor = eviction.NeverEvict{}
		if cfg.MaxSizePerPartition > 0 {
			evictor = eviction.MaxSizeEvictor{MaxSize: cfg.MaxSizePerPartition}
		}

		rs := recordstore.New(recordstore.Config{
			Name:         cfg.Name,
			PartitionID:  pid,
			DataStore:    dataStore,
			LockStore:    locks.NewInMemoryLockStore(),
			Interceptors: chain,
			Evictor:      evictor,
			DefaultTTL:   cfg.DefaultTTL,
			MaxIdle:      cfg.MaxIdle,
		})
		if backend != nil {
			keyLoader = loader.NewBackendKeyLoader(backend, rs, 0, 0)
			rs.SetKeyLoader(keyLoader)
		}
		m.partitions[pid] = rs
	}
	return m, nil
}

// Partition returns the record store owning key.
func (m *Member) Partition(key string) *recordstore.RecordStore {
	return m.partitions[cluster.PartitionForKey(key, m.cfg.PartitionCount)]
}

// do runs fn with the member-wide writer slot held.
func (m *Member) do(fn func()) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()
	fn()
}

// Stop shuts down the background flushers of all write-behind partitions.
func (m *Member) Stop() {
	for _, wb := range m.stores {
		wb.Stop()
	}
}

// main initializes and runs the member service, serving map operations until
// a shutdown signal arrives.
//
// Exit codes:
//   - 0: Normal shutdown via signal
//   - 1: Invalid configuration or failed server start
func main() {
	listen := getenv("PARTMAP_LISTEN", ":8080")

	cfg := config.Default(getenv("PARTMAP_MAP", "default"))
	if path := os.Getenv("PARTMAP_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			logFatal("config: %v", err)
		}
		cfg = loaded
	}

	member, err := NewMember(cfg)
	if err != nil {
		logFatal("member: %v", err)
	}
	defer member.Stop()

	log.Printf("member[%s] hosting map %q across %d partitions (store mode %s)",
		member.ID, cfg.Name, cfg.PartitionCount, cfg.Store.Mode)

	// Kick off the initial load on every partition that has a backing store.
	// Reads arriving before completion are answered with a retryable error.
	member.do(func() {
		for _, rs := range member.partitions {
			rs.MaybeDoInitialLoad()
		}
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/map/", func(w http.ResponseWriter, r *http.Request) {
		handleEntry(member, w, r)
	})

	mux.HandleFunc("/map", func(w http.ResponseWriter, r *http.Request) {
		handleKeys(member, w, r)
	})

	mux.HandleFunc("/flush", func(w http.ResponseWriter, r *http.Request) {
		handleFlush(member, w, r)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(member, w, r)
	})

	s := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second, // Prevent slowloris attacks
	}

	go func() {
		log.Printf("member[%s] listening on %s", member.ID, listen)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Drain buffered writes so a write-behind member loses nothing on exit.
	member.do(func() {
		for _, rs := range member.partitions {
			if err := rs.Flush(); err != nil {
				log.Printf("flush on shutdown: %v", err)
			}
		}
	})
	log.Println("member stopped")
}

// handleEntry routes single-entry operations.
//
// Endpoint: /map/{key}
//   - GET: Retrieve value by key
//   - PUT: Store key-value pair (body is the value)
//   - DELETE: Remove key
//
// Error handling:
//   - 404 Not Found: Key doesn't exist (GET only)
//   - 503 Service Unavailable: Partition still loading (Retry-After set)
//   - 500 Internal Server Error: Store or interceptor failure
func handleEntry(member *Member, w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/map/")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	rs := member.Partition(key)

	switch r.Method {
	case http.MethodGet:
		var value []byte
		var err error
		member.do(func() { value, err = rs.Get(key, false) })
		if err != nil {
			writeOpError(w, err)
			return
		}
		if value == nil {
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write(value); err != nil {
			log.Printf("Error writing response: %v", err)
		}

	case http.MethodPut:
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		var err error
		member.do(func() { _, err = rs.Put(key, buf.Bytes(), 0) })
		if err != nil {
			writeOpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		var err error
		member.do(func() { _, err = rs.Remove(key) })
		if err != nil {
			writeOpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleKeys lists every key across all partitions.
//
// Endpoint: GET /map
//
// Response body:
//
//	{
//	  "keys": ["user:1", "user:2"],
//	  "count": 2
//	}
func handleKeys(member *Member, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var keys []string
	var err error
	member.do(func() {
		for _, rs := range member.partitions {
			var partKeys []string
			partKeys, err = rs.KeySet()
			if err != nil {
				return
			}
			keys = append(keys, partKeys...)
		}
	})
	if err != nil {
		writeOpError(w, err)
		return
	}

	response := struct {
		Keys  []string `json:"keys"`
		Count int      `json:"count"`
	}{
		Keys:  keys,
		Count: len(keys),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// handleFlush drains buffered write-behind entries on every partition.
//
// Endpoint: POST /flush
//
// Response:
//   - 204 No Content: All partitions flushed
//   - 500 Internal Server Error: Backend rejected a batch
func handleFlush(member *Member, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var err error
	member.do(func() {
		for _, rs := range member.partitions {
			if err = rs.Flush(); err != nil {
				return
			}
		}
	})
	if err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats reports per-member occupancy for monitoring.
//
// Endpoint: GET /stats
//
// Response body:
//
//	{
//	  "member_id": "5f0c...",
//	  "map": "default",
//	  "partitions": 271,
//	  "entries": 42,
//	  "pending_writes": 3
//	}
func handleStats(member *Member, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var entries, pending int
	member.do(func() {
		for _, rs := range member.partitions {
			entries += rs.Size()
		}
		for _, wb := range member.stores {
			pending += wb.Pending()
		}
	})

	response := struct {
		MemberID   string `json:"member_id"`
		Map        string `json:"map"`
		Partitions int    `json:"partitions"`
		Entries    int    `json:"entries"`
		Pending    int    `json:"pending_writes"`
	}{
		MemberID:   member.ID,
		Map:        member.cfg.Name,
		Partitions: member.cfg.PartitionCount,
		Entries:    entries,
		Pending:    pending,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// writeOpError maps record-store errors onto HTTP statuses. A retryable
// loading error becomes 503 with a Retry-After hint so clients back off
// instead of failing hard.
func writeOpError(w http.ResponseWriter, err error) {
	if recordstore.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
