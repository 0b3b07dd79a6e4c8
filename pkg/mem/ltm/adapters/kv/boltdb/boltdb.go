package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

var (
	memoriesBucket = []byte("memories")
	usersBucket    = []byte("users")
	metaBucket     = []byte("meta")
	dimsKey        = []byte("dims")
)

// ErrInvalidRecord is returned when a record has no id or no embedding.
var ErrInvalidRecord = errors.New("record needs an id and an embedding")

// BoltStore implements ltm.VectorStore on a BoltDB file. Records are kept as
// JSON under their id; a per-user index bucket narrows user-scoped queries.
// Similarity search is an exact cosine scan.
type BoltStore struct {
	db     *bolt.DB
	ownsDB bool
}

// NewBoltStore creates a new BoltStore with the given database connection.
// The caller keeps ownership of db.
func NewBoltStore(db *bolt.DB) *BoltStore {
	log.Debug("Initialized BoltDB memory store",
		"db_path", db.Path(),
		"read_only", db.IsReadOnly(),
	)
	return &BoltStore{db: db}
}

// Open opens (or creates) the database at path and initializes its buckets.
// Close on the returned store closes the database.
func Open(ctx context.Context, path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}
	store := NewBoltStore(db)
	store.ownsDB = true
	if err := store.Initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Initialize creates the required buckets if they don't exist.
func (b *BoltStore) Initialize(ctx context.Context) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{memoriesBucket, usersBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize BoltDB buckets", "error", err)
		return err
	}
	return nil
}

// Add stores a record. An existing record with the same id is replaced.
func (b *BoltStore) Add(ctx context.Context, record ltm.Record) error {
	if record.ID == "" || len(record.Embedding) == 0 {
		return ErrInvalidRecord
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := checkDims(tx, len(record.Embedding)); err != nil {
			return err
		}
		if old := get(tx, record.ID); old != nil {
			if err := unindex(tx, old.Metadata.UserID, old.ID); err != nil {
				return err
			}
		}
		return put(tx, record)
	})
}

// Update replaces an existing record.
func (b *BoltStore) Update(ctx context.Context, record ltm.Record) error {
	if record.ID == "" || len(record.Embedding) == 0 {
		return ErrInvalidRecord
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		old := get(tx, record.ID)
		if old == nil {
			return ltm.ErrRecordNotFound
		}
		if err := checkDims(tx, len(record.Embedding)); err != nil {
			return err
		}
		if err := unindex(tx, old.Metadata.UserID, old.ID); err != nil {
			return err
		}
		return put(tx, record)
	})
}

// Get fetches records by id in the order given. Unknown ids are skipped.
func (b *BoltStore) Get(ctx context.Context, ids ...string) ([]ltm.Record, error) {
	var out []ltm.Record
	err := b.db.View(func(tx *bolt.Tx) error {
		for _, id := range ids {
			if r := get(tx, id); r != nil {
				out = append(out, *r)
			}
		}
		return nil
	})
	return out, err
}

// Delete removes records by id. Unknown ids are ignored.
func (b *BoltStore) Delete(ctx context.Context, ids ...string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, id := range ids {
			old := get(tx, id)
			if old == nil {
				continue
			}
			if err := unindex(tx, old.Metadata.UserID, id); err != nil {
				return err
			}
			if err := tx.Bucket(memoriesBucket).Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns the k records nearest to embedding among those matching filter.
func (b *BoltStore) Query(ctx context.Context, embedding []float32, k int, filter ltm.Filter) ([]ltm.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	records, err := b.collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	return ltm.NearestByCosine(records, embedding, k), nil
}

// Scan lists up to limit matching records, newest first. A limit <= 0 means all.
func (b *BoltStore) Scan(ctx context.Context, filter ltm.Filter, limit int) ([]ltm.Record, error) {
	records, err := b.collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	ltm.SortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Count returns the number of stored records.
func (b *BoltStore) Count(ctx context.Context) (int, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(memoriesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database when the store opened it.
func (b *BoltStore) Close() error {
	if !b.ownsDB {
		return nil
	}
	return b.db.Close()
}

// collect reads every record matching filter. A user_id key in the filter
// walks that user's index instead of the whole bucket.
func (b *BoltStore) collect(ctx context.Context, filter ltm.Filter) ([]ltm.Record, error) {
	var out []ltm.Record
	err := b.db.View(func(tx *bolt.Tx) error {
		keep := func(r *ltm.Record) {
			if r != nil && filter.Matches(r.Metadata.Flatten()) {
				out = append(out, *r)
			}
		}

		if userID, ok := filter[ltm.KeyUserID]; ok && userID != "" {
			idx := tx.Bucket(usersBucket).Bucket([]byte(userID))
			if idx == nil {
				return nil
			}
			return idx.ForEach(func(k, _ []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				keep(get(tx, string(k)))
				return nil
			})
		}

		return tx.Bucket(memoriesBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r ltm.Record
			if err := json.Unmarshal(v, &r); err != nil {
				log.WarnContext(ctx, "Skipping unreadable memory record", "id", string(k), "error", err)
				return nil
			}
			keep(&r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read memory records: %w", err)
	}
	return out, nil
}

func get(tx *bolt.Tx, id string) *ltm.Record {
	data := tx.Bucket(memoriesBucket).Get([]byte(id))
	if data == nil {
		return nil
	}
	var r ltm.Record
	if err := json.Unmarshal(data, &r); err != nil {
		log.Warn("Skipping unreadable memory record", "id", id, "error", err)
		return nil
	}
	return &r
}

func put(tx *bolt.Tx, record ltm.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := tx.Bucket(memoriesBucket).Put([]byte(record.ID), data); err != nil {
		return err
	}
	if record.Metadata.UserID == "" {
		return nil
	}
	idx, err := tx.Bucket(usersBucket).CreateBucketIfNotExists([]byte(record.Metadata.UserID))
	if err != nil {
		return fmt.Errorf("failed to create user index for %q: %w", record.Metadata.UserID, err)
	}
	return idx.Put([]byte(record.ID), []byte{})
}

func unindex(tx *bolt.Tx, userID, id string) error {
	if userID == "" {
		return nil
	}
	idx := tx.Bucket(usersBucket).Bucket([]byte(userID))
	if idx == nil {
		return nil
	}
	return idx.Delete([]byte(id))
}

// checkDims pins the store dimensionality on first write.
func checkDims(tx *bolt.Tx, n int) error {
	meta := tx.Bucket(metaBucket)
	if v := meta.Get(dimsKey); v != nil {
		if want := int(binary.BigEndian.Uint32(v)); want != n {
			return fmt.Errorf("%w: store has %d, got %d", ltm.ErrDimensionMismatch, want, n)
		}
		return nil
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	return meta.Put(dimsKey, buf)
}
