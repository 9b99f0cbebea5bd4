package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type CacheConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// Cache is a Postgres+pgvector-backed embedding cache. Entries are keyed
// by a digest of (model, text), so a model change never serves stale
// vectors. The cache is an optimization: callers must tolerate it being
// absent or failing and fall back to direct embedding.
type Cache struct {
	config CacheConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config CacheConfig) (*Cache, error) {
	if config.TableName == "" {
		config.TableName = "embedding_cache"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	cache := &Cache{
		config: config,
		pool:   pool,
	}

	if err := cache.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return cache, nil
}

func (c *Cache) initialize() error {
	ctx := context.Background()

	_, err := c.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, c.config.TableName, c.config.VectorDim)

	_, err = c.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_model_idx
		ON %s (model)`,
		c.config.TableName, c.config.TableName)

	_, err = c.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// CacheKey is the digest identifying one (model, text) embedding.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Fetch looks up cached embeddings for the batch. The returned slice is
// parallel to texts, nil where the cache has no entry; missing holds the
// indexes of those gaps.
func (c *Cache) Fetch(ctx context.Context, model string, texts []string) ([][]float32, []int, error) {
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = CacheKey(model, text)
	}

	query := fmt.Sprintf("SELECT id, embedding FROM %s WHERE id = ANY($1)", c.config.TableName)
	rows, err := c.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query embedding cache: %v", err)
	}
	defer rows.Close()

	found := make(map[string][]float32)
	for rows.Next() {
		var id string
		var embedding pgvector.Vector
		if err := rows.Scan(&id, &embedding); err != nil {
			return nil, nil, fmt.Errorf("failed to scan cached embedding: %v", err)
		}
		found[id] = embedding.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read embedding cache: %v", err)
	}

	vectors := make([][]float32, len(texts))
	var missing []int
	for i, key := range keys {
		if vector, ok := found[key]; ok {
			vectors[i] = vector
		} else {
			missing = append(missing, i)
		}
	}

	return vectors, missing, nil
}

// Store writes a batch of freshly computed embeddings.
func (c *Cache) Store(ctx context.Context, model string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("mismatched batch: %d texts, %d vectors", len(texts), len(vectors))
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, model, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		c.config.TableName)

	for i, text := range texts {
		_, err := tx.Exec(ctx, stmt, CacheKey(model, text), model, text, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("failed to store embedding: %v", err)
		}
	}

	return tx.Commit(ctx)
}

func (c *Cache) Close() {
	c.pool.Close()
}
