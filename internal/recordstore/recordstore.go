package recordstore

import (
	"log"
	"time"

	"github.com/dreamware/partmap/internal/eviction"
	"github.com/dreamware/partmap/internal/index"
	"github.com/dreamware/partmap/internal/interceptor"
	"github.com/dreamware/partmap/internal/loader"
	"github.com/dreamware/partmap/internal/locks"
	"github.com/dreamware/partmap/internal/mapstore"
	"github.com/dreamware/partmap/internal/record"
	"github.com/dreamware/partmap/internal/serialization"
	"github.com/dreamware/partmap/internal/storage"
)

// Entry is one key/value pair returned by read operations.
type Entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Config assembles a RecordStore from its collaborators. Zero-value fields
// fall back to safe defaults: no backing store, no lock manager, an empty
// index registry, an empty interceptor chain, never-evict, the JSON codec,
// and the standard logger.
type Config struct {
	Name         string                // Map name, used in logs and merge policies
	PartitionID  int                   // Partition this store owns
	DataStore    mapstore.MapDataStore // Persistence strategy
	LockStore    locks.LockStore       // Per-key lock manager, nil = unlocked
	Indexes      *index.Registry       // Secondary-index engine
	Interceptors *interceptor.Chain    // Get/put/remove hooks
	Evictor      eviction.Evictor      // Eviction pressure gate
	Codec        serialization.Codec   // Object boundary codec
	KeyLoader    loader.KeyLoader      // Bulk-load subsystem, nil = none
	Logger       *log.Logger           // Destination for load failures
	DefaultTTL   time.Duration         // TTL applied when an op passes none
	MaxIdle      time.Duration         // Idle timeout applied to new records
	Clock        func() time.Time      // Time source, defaults to time.Now
}

// RecordStore is the record store for one partition. Not safe for
// concurrent mutation; see the package documentation.
type RecordStore struct {
	name        string
	partitionID int

	storage      *storage.Storage
	dataStore    mapstore.MapDataStore
	lockStore    locks.LockStore
	indexes      *index.Registry
	interceptors *interceptor.Chain
	evictor      eviction.Evictor
	codec        serialization.Codec
	keyLoader    loader.KeyLoader
	tracker      *loader.Tracker
	logger       *log.Logger

	defaultTTL time.Duration
	maxIdle    time.Duration
	now        func() time.Time

	expirable         bool  // Any stored record can expire
	readsSinceCleanup int   // Reads since the last expired-entry purge
	accessSequence    int64 // Access-order bookkeeping for eviction selection
}

// cleanupReadThreshold is how many reads may pass between two purge sweeps
// of expired records.
const cleanupReadThreshold = 64

// New creates a RecordStore from cfg.
func New(cfg Config) *RecordStore {
	if cfg.DataStore == nil {
		cfg.DataStore = mapstore.NewNoStore()
	}
	if cfg.Indexes == nil {
		cfg.Indexes = index.NewRegistry()
	}
	if cfg.Interceptors == nil {
		cfg.Interceptors = interceptor.NewChain()
	}
	if cfg.Evictor == nil {
		cfg.Evictor = eviction.NeverEvict{}
	}
	if cfg.Codec == nil {
		cfg.Codec = serialization.JSONCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &RecordStore{
		name:         cfg.Name,
		partitionID:  cfg.PartitionID,
		storage:      storage.New(),
		dataStore:    cfg.DataStore,
		lockStore:    cfg.LockStore,
		indexes:      cfg.Indexes,
		interceptors: cfg.Interceptors,
		evictor:      cfg.Evictor,
		codec:        cfg.Codec,
		keyLoader:    cfg.KeyLoader,
		tracker:      loader.NewTracker(),
		logger:       cfg.Logger,
		defaultTTL:   cfg.DefaultTTL,
		maxIdle:      cfg.MaxIdle,
		now:          cfg.Clock,
	}
}

// SetKeyLoader installs the bulk-load subsystem after construction. The
// loader needs the record store as its sink, so the two are wired in two
// steps.
func (rs *RecordStore) SetKeyLoader(kl loader.KeyLoader) {
	rs.keyLoader = kl
}

// Name returns the map name this partition belongs to.
func (rs *RecordStore) Name() string { return rs.name }

// PartitionID returns the partition this store owns.
func (rs *RecordStore) PartitionID() int { return rs.partitionID }

// DataStore exposes the persistence adapter to the surrounding service
// layer.
func (rs *RecordStore) DataStore() mapstore.MapDataStore { return rs.dataStore }

// Evictor exposes the eviction pressure gate.
func (rs *RecordStore) Evictor() eviction.Evictor { return rs.evictor }

// ShouldEvict reports whether the partition is under eviction pressure
// right now.
func (rs *RecordStore) ShouldEvict() bool {
	return rs.evictor.ShouldEvict(rs.storage.Size(), rs.now())
}

// Size returns the record count. Expired-but-unpurged entries are included
// until a read or cleanup pass observes them.
//
// Size deliberately skips the load gate: it is used internally while the
// partition is still loading.
func (rs *RecordStore) Size() int {
	return rs.storage.Size()
}

// IsEmpty reports whether the partition holds no records.
func (rs *RecordStore) IsEmpty() (bool, error) {
	if err := rs.CheckIfLoaded(); err != nil {
		return false, err
	}
	return rs.storage.IsEmpty(), nil
}

// GetRecord returns the live record for key without expiry checks, or nil.
// Reserved for the surrounding service layer; regular reads go through Get.
func (rs *RecordStore) GetRecord(key string) *record.Record {
	return rs.storage.Get(key)
}

// PutRecord installs a prebuilt record, used by operations that replicate
// records wholesale.
func (rs *RecordStore) PutRecord(key string, r *record.Record) {
	rs.markExpirable(r.TTL())
	rs.storage.Put(key, r)
}

// createRecord builds a record for key at now. A non-positive ttl falls
// back to the map's configured default.
func (rs *RecordStore) createRecord(key string, value []byte, ttl time.Duration, now time.Time) *record.Record {
	if ttl <= 0 {
		ttl = rs.defaultTTL
	}
	r := record.New(key, value, ttl, now)
	if rs.maxIdle > 0 {
		r.SetMaxIdle(rs.maxIdle)
	}
	rs.markExpirable(ttl)
	return r
}

// markExpirable records that at least one stored record can expire, which
// arms the lazy-expiry checks on the read path.
func (rs *RecordStore) markExpirable(ttl time.Duration) {
	if ttl > 0 || rs.maxIdle > 0 {
		rs.expirable = true
	}
}

// updateExpiry refreshes a record's TTL on update. A non-positive ttl keeps
// the record's current TTL.
func (rs *RecordStore) updateExpiry(r *record.Record, ttl time.Duration) {
	if ttl > 0 {
		r.SetTTL(ttl)
		rs.markExpirable(ttl)
	}
}

// accessRecord notes a read of r at now for expiry and eviction bookkeeping.
func (rs *RecordStore) accessRecord(r *record.Record, now time.Time) {
	r.OnAccess(now)
	rs.accessSequence++
}

// resetAccessSequence resets the access-order bookkeeping, done whenever the
// partition's records are wiped or swept.
func (rs *RecordStore) resetAccessSequence() {
	rs.accessSequence = 0
}

// saveIndex publishes a mutation to the secondary indexes. oldValue nil
// means the key is new.
func (rs *RecordStore) saveIndex(r *record.Record, oldValue []byte) error {
	if !rs.indexes.HasIndex() {
		return nil
	}
	return rs.indexes.SaveEntryIndex(r.Key(), r.Value(), oldValue)
}

// removeIndex withdraws a record from the secondary indexes.
func (rs *RecordStore) removeIndex(r *record.Record) {
	if !rs.indexes.HasIndex() {
		return
	}
	rs.indexes.RemoveEntryIndex(r.Key(), r.Value())
}

// afterStoreWrite reconciles a record's dirty flag with the persistence
// strategy after its value went through MapDataStore.Add: a write-through
// add already reached the backend, a write-behind add is still buffered.
func (rs *RecordStore) afterStoreWrite(r *record.Record) {
	if r == nil {
		return
	}
	switch rs.dataStore.Mode() {
	case mapstore.ModeWriteBehind:
		r.MarkDirty()
	case mapstore.ModeWriteThrough:
		r.OnStore()
	}
}

// getRecordOrNull returns the live, unexpired record for key, purging it on
// the spot when expired.
func (rs *RecordStore) getRecordOrNull(key string, now time.Time, backup bool) *record.Record {
	r := rs.storage.Get(key)
	if r == nil {
		return nil
	}
	return rs.getOrNullIfExpired(r, now, backup)
}

// getOrNullIfExpired applies lazy expiry to a record read from storage.
func (rs *RecordStore) getOrNullIfExpired(r *record.Record, now time.Time, backup bool) *record.Record {
	if !rs.expirable {
		return r
	}
	if !r.ExpiredAt(now, backup) {
		return r
	}
	rs.removeIndex(r)
	rs.storage.RemoveRecord(r)
	return nil
}

// loadRecordOrNull materializes a record from the backing store on a miss.
func (rs *RecordStore) loadRecordOrNull(key string, backup bool) (*record.Record, error) {
	value, err := rs.dataStore.Load(key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	now := rs.now()
	r := rs.createRecord(key, value, 0, now)
	rs.storage.Put(key, r)
	if !backup {
		if err := rs.saveIndex(r, nil); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// postReadCleanup amortizes expired-record purging across reads: every
// cleanupReadThreshold reads it sweeps the partition once.
func (rs *RecordStore) postReadCleanup(now time.Time) {
	if !rs.expirable {
		return
	}
	rs.readsSinceCleanup++
	if rs.readsSinceCleanup < cleanupReadThreshold {
		return
	}
	rs.readsSinceCleanup = 0
	rs.purgeExpired(now)
}

// purgeExpired removes every expired record and its index entries, and
// returns the number purged.
func (rs *RecordStore) purgeExpired(now time.Time) int {
	purged := 0
	for _, r := range rs.storage.Values() {
		if !r.ExpiredAt(now, false) {
			continue
		}
		rs.removeIndex(r)
		rs.storage.RemoveRecord(r)
		purged++
	}
	return purged
}
