package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

// Index types
const (
	IndexHNSW = "hnsw"
	IndexNone = "none"
)

var (
	// ErrEmptyConnectionString is returned when no connection string is configured
	ErrEmptyConnectionString = errors.New("connection string cannot be empty")

	validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// PgvectorConfig contains the configuration for a Pgvector adapter
type PgvectorConfig struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// TableName is the name of the table to use
	TableName string

	// DimensionSize is the size of vector embeddings
	DimensionSize int

	// IndexType selects the vector index: hnsw (default) or none
	IndexType string
}

// PgvectorAdapter implements ltm.VectorStore using PostgreSQL with the
// pgvector extension. Distances are pgvector cosine distances (<=>).
type PgvectorAdapter struct {
	db            *pgxpool.Pool
	tableName     string
	dimensionSize int
	indexType     string
}

// NewPgvectorAdapter connects, creates the table if needed and returns the adapter.
func NewPgvectorAdapter(ctx context.Context, config PgvectorConfig) (*PgvectorAdapter, error) {
	if config.ConnectionString == "" {
		return nil, ErrEmptyConnectionString
	}
	if config.TableName == "" {
		config.TableName = "memories"
	}
	if !validTableName.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}
	if config.DimensionSize <= 0 {
		config.DimensionSize = 1536
	}
	switch strings.ToLower(config.IndexType) {
	case "", IndexHNSW:
		config.IndexType = IndexHNSW
	case IndexNone:
		config.IndexType = IndexNone
	default:
		return nil, fmt.Errorf("unsupported index type: %s (must be hnsw or none)", config.IndexType)
	}

	db, err := pgxpool.New(ctx, config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	adapter := &PgvectorAdapter{
		db:            db,
		tableName:     config.TableName,
		dimensionSize: config.DimensionSize,
		indexType:     config.IndexType,
	}
	if err := adapter.initializeTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize pgvector table: %w", err)
	}

	log.Debug("Initialized pgvector memory store", "table", config.TableName, "dimensions", config.DimensionSize)
	return adapter, nil
}

// DB returns the underlying connection pool.
func (a *PgvectorAdapter) DB() *pgxpool.Pool {
	return a.db
}

func (a *PgvectorAdapter) initializeTable(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding VECTOR(%d) NOT NULL,
			created_at BIGINT NOT NULL DEFAULT 0
		)`, a.tableName, a.dimensionSize),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id)", a.tableName, a.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at DESC)", a.tableName, a.tableName),
	}
	if a.indexType == IndexHNSW {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)",
			a.tableName, a.tableName))
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool.
func (a *PgvectorAdapter) Close() error {
	a.db.Close()
	return nil
}

func (a *PgvectorAdapter) checkDims(embedding []float32) error {
	if len(embedding) != a.dimensionSize {
		return fmt.Errorf("%w: table has %d, got %d", ltm.ErrDimensionMismatch, a.dimensionSize, len(embedding))
	}
	return nil
}

// Add implements ltm.VectorStore. An existing id is overwritten.
func (a *PgvectorAdapter) Add(ctx context.Context, record ltm.Record) error {
	if err := a.checkDims(record.Embedding); err != nil {
		return err
	}
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = a.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, user_id, text, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5::vector, $6)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, text = EXCLUDED.text, metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding, created_at = EXCLUDED.created_at`, a.tableName),
		record.ID, record.Metadata.UserID, record.Text, meta, embedToString(record.Embedding), createdUnix(record))
	if err != nil {
		log.ErrorContext(ctx, "Failed to insert memory record", "id", record.ID, "error", err)
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Update implements ltm.VectorStore.
func (a *PgvectorAdapter) Update(ctx context.Context, record ltm.Record) error {
	if err := a.checkDims(record.Embedding); err != nil {
		return err
	}
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	tag, err := a.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET user_id = $2, text = $3, metadata = $4, embedding = $5::vector, created_at = $6
		WHERE id = $1`, a.tableName),
		record.ID, record.Metadata.UserID, record.Text, meta, embedToString(record.Embedding), createdUnix(record))
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ltm.ErrRecordNotFound, record.ID)
	}
	return nil
}

// Query implements ltm.VectorStore.
func (a *PgvectorAdapter) Query(ctx context.Context, embedding []float32, k int, filter ltm.Filter) ([]ltm.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := a.checkDims(embedding); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(filter, 2)
	args = append([]any{embedToString(embedding)}, args...)
	args = append(args, k)

	sql := fmt.Sprintf(`
		SELECT id, text, metadata, embedding::text, embedding <=> $1::vector AS distance
		FROM %s %s
		ORDER BY distance ASC, id ASC
		LIMIT $%d`, a.tableName, where, len(args))

	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []ltm.Candidate
	for rows.Next() {
		var (
			c        ltm.Candidate
			meta     []byte
			embStr   string
			distance float64
		)
		if err := rows.Scan(&c.ID, &c.Text, &meta, &embStr, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		c.Embedding = stringToEmbed(embStr)
		if distance < 0 {
			distance = 0
		}
		c.Distance = distance
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get implements ltm.VectorStore.
func (a *PgvectorAdapter) Get(ctx context.Context, ids ...string) ([]ltm.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := a.db.Query(ctx, fmt.Sprintf(
		"SELECT id, text, metadata, embedding::text FROM %s WHERE id = ANY($1)", a.tableName), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	found, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ltm.Record, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	out := make([]ltm.Record, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
			delete(byID, id)
		}
	}
	return out, nil
}

// Delete implements ltm.VectorStore.
func (a *PgvectorAdapter) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := a.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", a.tableName), ids); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Scan implements ltm.VectorStore. A limit <= 0 means all.
func (a *PgvectorAdapter) Scan(ctx context.Context, filter ltm.Filter, limit int) ([]ltm.Record, error) {
	where, args := buildWhereClause(filter, 1)
	sql := fmt.Sprintf("SELECT id, text, metadata, embedding::text FROM %s %s ORDER BY created_at DESC, id ASC",
		a.tableName, where)
	if limit > 0 {
		args = append(args, limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return scanRecords(rows)
}

// Count implements ltm.VectorStore.
func (a *PgvectorAdapter) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", a.tableName)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// buildWhereClause turns an exact-match filter into a WHERE clause over the
// flat JSONB metadata. Placeholders start at $first. Keys are sorted so the
// statement text is stable.
func buildWhereClause(filter ltm.Filter, first int) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		conds []string
		args  []any
	)
	n := first
	for _, k := range keys {
		if k == ltm.KeyUserID {
			conds = append(conds, fmt.Sprintf("user_id = $%d", n))
			args = append(args, filter[k])
			n++
			continue
		}
		conds = append(conds, fmt.Sprintf("metadata->>$%d = $%d", n, n+1))
		args = append(args, k, filter[k])
		n += 2
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanRecords(rows pgx.Rows) ([]ltm.Record, error) {
	defer rows.Close()
	var out []ltm.Record
	for rows.Next() {
		var (
			r      ltm.Record
			meta   []byte
			embStr string
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &embStr); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		r.Embedding = stringToEmbed(embStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

func createdUnix(r ltm.Record) int64 {
	if r.Metadata.CreatedAt.IsZero() {
		return 0
	}
	return r.Metadata.CreatedAt.Unix()
}

// embedToString renders an embedding in pgvector's text form.
func embedToString(embedding []float32) string {
	elements := make([]string, len(embedding))
	for i, v := range embedding {
		elements[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(elements, ",") + "]"
}

// stringToEmbed parses pgvector's text form.
func stringToEmbed(embeddingStr string) []float32 {
	embeddingStr = strings.TrimSpace(embeddingStr)
	embeddingStr = strings.TrimPrefix(embeddingStr, "[")
	embeddingStr = strings.TrimSuffix(embeddingStr, "]")
	if embeddingStr == "" {
		return nil
	}

	elements := strings.Split(embeddingStr, ",")
	embedding := make([]float32, len(elements))
	for i, element := range elements {
		val, err := strconv.ParseFloat(strings.TrimSpace(element), 32)
		if err != nil {
			log.Error("Failed to parse embedding element", "error", err, "element", element)
			val = 0
		}
		embedding[i] = float32(val)
	}
	return embedding
}
