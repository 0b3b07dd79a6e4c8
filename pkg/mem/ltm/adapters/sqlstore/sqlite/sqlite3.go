package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

// ErrInvalidFilterKey is returned for filter keys that cannot be used as a
// quoted JSON path label.
var ErrInvalidFilterKey = errors.New("invalid filter key")

// SQLiteStore implements ltm.VectorStore on the memories table created by
// the sqldb migrations. Embeddings are little-endian float32 blobs and
// similarity search is an exact cosine scan over the filtered rows.
type SQLiteStore struct {
	db *sqlx.DB
}

type memoryRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Text      string `db:"text"`
	Metadata  string `db:"metadata"`
	Embedding []byte `db:"embedding"`
	CreatedAt int64  `db:"created_at"`
}

// NewSQLiteStore creates a new SQLiteStore with the given database connection.
// The schema must already be migrated.
func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func toRow(r ltm.Record) (memoryRow, error) {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return memoryRow{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	row := memoryRow{
		ID:        r.ID,
		UserID:    r.Metadata.UserID,
		Text:      r.Text,
		Metadata:  string(meta),
		Embedding: encodeEmbedding(r.Embedding),
	}
	if !r.Metadata.CreatedAt.IsZero() {
		row.CreatedAt = r.Metadata.CreatedAt.Unix()
	}
	return row, nil
}

func (row memoryRow) record() (ltm.Record, error) {
	r := ltm.Record{ID: row.ID, Text: row.Text, Embedding: decodeEmbedding(row.Embedding)}
	if err := json.Unmarshal([]byte(row.Metadata), &r.Metadata); err != nil {
		return ltm.Record{}, fmt.Errorf("failed to unmarshal metadata for %s: %w", row.ID, err)
	}
	return r, nil
}

func (s *SQLiteStore) checkDims(ctx context.Context, n int) error {
	var size int
	err := s.db.GetContext(ctx, &size, "SELECT length(embedding) FROM memories LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read embedding size: %w", err)
	}
	if want := size / 4; want != n {
		return fmt.Errorf("%w: store has %d, got %d", ltm.ErrDimensionMismatch, want, n)
	}
	return nil
}

// Add implements ltm.VectorStore. An existing id is replaced.
func (s *SQLiteStore) Add(ctx context.Context, record ltm.Record) error {
	if err := s.checkDims(ctx, len(record.Embedding)); err != nil {
		return err
	}
	row, err := toRow(record)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO memories (id, user_id, text, metadata, embedding, created_at)
		VALUES (:id, :user_id, :text, :metadata, :embedding, :created_at)`, row)
	if err != nil {
		log.ErrorContext(ctx, "Failed to insert memory record", "id", record.ID, "error", err)
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// Update implements ltm.VectorStore.
func (s *SQLiteStore) Update(ctx context.Context, record ltm.Record) error {
	if err := s.checkDims(ctx, len(record.Embedding)); err != nil {
		return err
	}
	row, err := toRow(record)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE memories SET user_id = :user_id, text = :text, metadata = :metadata,
			embedding = :embedding, created_at = :created_at
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ltm.ErrRecordNotFound, record.ID)
	}
	return nil
}

// Get implements ltm.VectorStore.
func (s *SQLiteStore) Get(ctx context.Context, ids ...string) ([]ltm.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM memories WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var rows []memoryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}

	byID := make(map[string]memoryRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]ltm.Record, 0, len(rows))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete implements ltm.VectorStore.
func (s *SQLiteStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM memories WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Query implements ltm.VectorStore.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int, filter ltm.Filter) ([]ltm.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	records, err := s.selectRecords(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	return ltm.NearestByCosine(records, embedding, k), nil
}

// Scan implements ltm.VectorStore. A limit <= 0 means all.
func (s *SQLiteStore) Scan(ctx context.Context, filter ltm.Filter, limit int) ([]ltm.Record, error) {
	return s.selectRecords(ctx, filter, limit)
}

// Count implements ltm.VectorStore.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM memories"); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Close is a no-op; the database handle is shared with other stores.
func (s *SQLiteStore) Close() error {
	return nil
}

// selectRecords returns matching records newest first.
func (s *SQLiteStore) selectRecords(ctx context.Context, filter ltm.Filter, limit int) ([]ltm.Record, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		conds []string
		args  []any
	)
	for _, k := range keys {
		if k == ltm.KeyUserID {
			conds = append(conds, "user_id = ?")
			args = append(args, filter[k])
			continue
		}
		if k == "" || strings.ContainsAny(k, `"\\`) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilterKey, k)
		}
		conds = append(conds, "json_extract(metadata, ?) = ?")
		args = append(args, `$."`+k+`"`, filter[k])
	}

	query := "SELECT * FROM memories"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []memoryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	out := make([]ltm.Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			log.WarnContext(ctx, "Skipping unreadable memory record", "id", row.ID, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
