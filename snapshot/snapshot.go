package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/embedding"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ErrStale means the saved vectors no longer line up with the chunks
// built from the current catalog.
var ErrStale = errors.New("index snapshot is stale")

const batchSize = 200

// Row is one chunk vector, keyed by the chunk ordinal.
type Row struct {
	Ordinal    int    `gorm:"primaryKey;autoIncrement:false"`
	Restaurant string `gorm:"index"`
	Item       string
	Text       string
	TextHash   string
	Model      string
	Dimension  int
	Embedding  pgvector.Vector `gorm:"type:vector" json:"-"`
	CreatedAt  time.Time
}

func (r *Row) TableName() string {
	return "chunk_embeddings"
}

// Store persists the vector index next to the catalog so services can start
// without embedding every chunk again.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}

	return db.AutoMigrate(&Row{})
}

// Save replaces the stored snapshot with the vectors of index.
func (s *Store) Save(ctx context.Context, chunks *chunker.Store, index *vectorindex.Index) error {
	rows, err := Rows(chunks, index)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Row{}).Error; err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("index snapshot saved", "chunks", len(rows), "model", index.Model())

	return nil
}

func (s *Store) Load(ctx context.Context) ([]Row, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).Order("ordinal").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return rows, nil
}

// Restore rebuilds the index from the stored vectors. It returns ErrStale
// when the snapshot was taken from a different catalog or model.
func (s *Store) Restore(ctx context.Context, chunks *chunker.Store, embedder embedding.Embedder) (*vectorindex.Index, error) {
	rows, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	vectors, dimension, err := Vectors(rows, chunks.Texts(), embedder.Model())
	if err != nil {
		return nil, err
	}

	return vectorindex.FromVectors(embedder, vectors, dimension)
}

// Rows pairs every chunk with its vector.
func Rows(chunks *chunker.Store, index *vectorindex.Index) ([]Row, error) {
	if chunks.Len() != index.Len() {
		return nil, fmt.Errorf("index has %d vectors for %d chunks", index.Len(), chunks.Len())
	}

	vectors := index.Vectors()
	rows := make([]Row, chunks.Len())
	for i := range rows {
		c := chunks.Chunk(i)
		rows[i] = Row{
			Ordinal:    c.Ordinal,
			Restaurant: c.Metadata.Restaurant,
			Item:       c.Metadata.Item,
			Text:       c.Text,
			TextHash:   embedding.TextHash(c.Text),
			Model:      index.Model(),
			Dimension:  index.Dimension(),
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}

	return rows, nil
}

// Vectors checks that rows cover exactly texts, in order, embedded with
// model at one dimension, and returns their vectors.
func Vectors(rows []Row, texts []string, model string) ([][]float32, int, error) {
	if len(rows) != len(texts) {
		return nil, 0, fmt.Errorf("%w: %d vectors for %d chunks", ErrStale, len(rows), len(texts))
	}

	vectors := make([][]float32, len(rows))
	dimension := 0
	for i, row := range rows {
		switch {
		case row.Ordinal != i:
			return nil, 0, fmt.Errorf("%w: missing chunk %d", ErrStale, i)
		case row.Model != model:
			return nil, 0, fmt.Errorf("%w: chunk %d embedded with %q, want %q", ErrStale, i, row.Model, model)
		case row.TextHash != embedding.TextHash(texts[i]):
			return nil, 0, fmt.Errorf("%w: chunk %d text changed", ErrStale, i)
		}

		v := row.Embedding.Slice()
		if i == 0 {
			dimension = len(v)
		}
		if len(v) != dimension || row.Dimension != dimension {
			return nil, 0, fmt.Errorf("%w: chunk %d has dimension %d, want %d", vectorindex.ErrDimensionMismatch, i, len(v), dimension)
		}
		vectors[i] = v
	}

	return vectors, dimension, nil
}
