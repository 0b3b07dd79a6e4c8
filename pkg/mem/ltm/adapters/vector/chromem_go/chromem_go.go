package chromem_go

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm/adapters/kv/boltdb"
)

// DefaultCollection is the collection memories are indexed in.
const DefaultCollection = "memories"

var errNoEmbedder = errors.New("chromem collection has no embedder; records must carry embeddings")

// ChromemGoAdapter implements ltm.VectorStore with a chromem-go collection for
// similarity search. chromem has no listing API, so a bolt catalog holds the
// canonical records for Get, Scan and Count.
type ChromemGoAdapter struct {
	db         *chromem.DB
	collection *chromem.Collection
	catalog    *boltdb.BoltStore
}

// NewChromemGoAdapter wraps an existing chromem database and catalog.
func NewChromemGoAdapter(db *chromem.DB, catalog *boltdb.BoltStore, collectionName string) (*ChromemGoAdapter, error) {
	if collectionName == "" {
		collectionName = DefaultCollection
	}
	coll, err := db.GetOrCreateCollection(collectionName, nil, func(ctx context.Context, text string) ([]float32, error) {
		return nil, errNoEmbedder
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem collection %s: %w", collectionName, err)
	}

	log.Debug("Initialized chromem-go memory store", "collection", collectionName, "documents", coll.Count())
	return &ChromemGoAdapter{db: db, collection: coll, catalog: catalog}, nil
}

// Open creates a persistent adapter under dir: a chromem database in
// dir/chromem and the catalog in dir/catalog.db. An empty collection uses
// DefaultCollection.
func Open(ctx context.Context, dir, collection string, compress bool) (*ChromemGoAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chromem directory: %w", err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "chromem"), compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}
	catalog, err := boltdb.Open(ctx, filepath.Join(dir, "catalog.db"))
	if err != nil {
		return nil, err
	}
	adapter, err := NewChromemGoAdapter(db, catalog, collection)
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}
	return adapter, nil
}

// Add implements ltm.VectorStore.
func (a *ChromemGoAdapter) Add(ctx context.Context, record ltm.Record) error {
	if err := a.catalog.Add(ctx, record); err != nil {
		return err
	}
	if err := a.index(ctx, record); err != nil {
		if rbErr := a.catalog.Delete(ctx, record.ID); rbErr != nil {
			log.ErrorContext(ctx, "Failed to roll back catalog entry", "id", record.ID, "error", rbErr)
		}
		return err
	}
	return nil
}

// Update implements ltm.VectorStore. chromem replaces documents on id.
func (a *ChromemGoAdapter) Update(ctx context.Context, record ltm.Record) error {
	if err := a.catalog.Update(ctx, record); err != nil {
		return err
	}
	return a.index(ctx, record)
}

func (a *ChromemGoAdapter) index(ctx context.Context, record ltm.Record) error {
	err := a.collection.AddDocument(ctx, chromem.Document{
		ID:        record.ID,
		Content:   record.Text,
		Embedding: append([]float32(nil), record.Embedding...),
		Metadata:  record.Metadata.Flatten(),
	})
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", record.ID, err)
	}
	return nil
}

// Query implements ltm.VectorStore. Distance is 1 - cosine similarity.
func (a *ChromemGoAdapter) Query(ctx context.Context, embedding []float32, k int, filter ltm.Filter) ([]ltm.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	// chromem rejects nResults above the number of matching documents
	matching, err := a.catalog.Scan(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	if len(matching) == 0 {
		return nil, nil
	}
	if k > len(matching) {
		k = len(matching)
	}

	var where map[string]string
	if len(filter) > 0 {
		where = map[string]string(filter)
	}
	results, err := a.collection.QueryEmbedding(ctx, embedding, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromem collection: %w", err)
	}

	byID := make(map[string]ltm.Record, len(matching))
	for _, r := range matching {
		byID[r.ID] = r
	}

	cands := make([]ltm.Candidate, 0, len(results))
	for _, res := range results {
		rec, ok := byID[res.ID]
		if !ok {
			rec = ltm.Record{ID: res.ID, Text: res.Content, Metadata: ltm.MetadataFromMap(res.Metadata)}
		}
		dist := 1 - float64(res.Similarity)
		if dist < 0 {
			dist = 0
		}
		cands = append(cands, ltm.Candidate{
			ID:        rec.ID,
			Text:      rec.Text,
			Metadata:  rec.Metadata,
			Distance:  dist,
			Embedding: rec.Embedding,
		})
	}
	return cands, nil
}

// Get implements ltm.VectorStore.
func (a *ChromemGoAdapter) Get(ctx context.Context, ids ...string) ([]ltm.Record, error) {
	return a.catalog.Get(ctx, ids...)
}

// Delete implements ltm.VectorStore.
func (a *ChromemGoAdapter) Delete(ctx context.Context, ids ...string) error {
	known, err := a.catalog.Get(ctx, ids...)
	if err != nil {
		return err
	}
	if len(known) == 0 {
		return nil
	}
	knownIDs := make([]string, len(known))
	for i, r := range known {
		knownIDs[i] = r.ID
	}
	if err := a.collection.Delete(ctx, nil, nil, knownIDs...); err != nil {
		return fmt.Errorf("failed to delete chromem documents: %w", err)
	}
	return a.catalog.Delete(ctx, knownIDs...)
}

// Scan implements ltm.VectorStore.
func (a *ChromemGoAdapter) Scan(ctx context.Context, filter ltm.Filter, limit int) ([]ltm.Record, error) {
	return a.catalog.Scan(ctx, filter, limit)
}

// Count implements ltm.VectorStore.
func (a *ChromemGoAdapter) Count(ctx context.Context) (int, error) {
	return a.collection.Count(), nil
}

// Close closes the catalog. The chromem database persists on every write.
func (a *ChromemGoAdapter) Close() error {
	return a.catalog.Close()
}
