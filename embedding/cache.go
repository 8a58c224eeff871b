package embedding

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

var ErrDimensionDrift = errors.New("embedding dimension changed for model")

const cacheSchema = `CREATE TABLE IF NOT EXISTS embeddings (
	model     TEXT    NOT NULL,
	text_hash TEXT    NOT NULL,
	dimension INTEGER NOT NULL,
	vector    BLOB    NOT NULL,
	PRIMARY KEY (model, text_hash)
)`

// Cache wraps an Embedder with a sqlite table keyed by model and text hash,
// so rebuilding the index over an unchanged catalog does not re-embed.
type Cache struct {
	next Embedder
	db   *sql.DB

	mu        sync.Mutex
	dimension int
}

func NewCache(path string, next Embedder) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embedding cache table: %w", err)
	}

	c := &Cache{next: next, db: db}

	var dimension sql.NullInt64
	err = db.QueryRow(`SELECT dimension FROM embeddings WHERE model = ? LIMIT 1`, next.Model()).Scan(&dimension)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		db.Close()
		return nil, fmt.Errorf("failed to read cached dimension: %w", err)
	}
	c.dimension = int(dimension.Int64)

	return c, nil
}

func (c *Cache) Model() string {
	return c.next.Model()
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := TextHash(text)

	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT vector FROM embeddings WHERE model = ? AND text_hash = ?`,
		c.next.Model(), key,
	).Scan(&blob)
	switch {
	case err == nil:
		return decodeVector(blob), nil
	case !errors.Is(err, sql.ErrNoRows):
		slog.Warn("embedding cache lookup failed", "err", err)
	}

	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.checkDimension(len(vector)); err != nil {
		return nil, err
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (model, text_hash, dimension, vector) VALUES (?, ?, ?, ?)`,
		c.next.Model(), key, len(vector), encodeVector(vector),
	)
	if err != nil {
		slog.Warn("failed to store embedding in cache", "err", err)
	}

	return vector, nil
}

func (c *Cache) checkDimension(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dimension == 0 {
		c.dimension = n
		return nil
	}
	if c.dimension != n {
		return fmt.Errorf("%w: model %s cached %d, got %d", ErrDimensionDrift, c.next.Model(), c.dimension, n)
	}

	return nil
}

// TextHash is the hex sha256 of a chunk text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}

	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}

	return v
}
