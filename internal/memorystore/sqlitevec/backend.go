// Package sqlitevec is the memorystore.Backend implementation backed by
// SQLite. It does not depend on a native vector-search extension being
// loadable at runtime (those ship as separate shared libraries that aren't
// guaranteed to be present on a given host); instead it stores each entry's
// embedding as a packed float32 blob in an ordinary table and computes L2
// distance in Go at search time. At choir's expected per-run memory volume
// (thousands of entries, not millions) a linear scan is fast enough, and it
// keeps the on-disk format fully portable between the mattn/go-sqlite3 (cgo)
// and modernc.org/sqlite (pure Go) drivers.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_entries (
	item_id    TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	source_ref TEXT NOT NULL,
	content    TEXT NOT NULL,
	chunk_hash TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS memory_entries_collection_idx ON memory_entries (collection);
CREATE INDEX IF NOT EXISTS memory_entries_hash_idx ON memory_entries (collection, chunk_hash);
`

// Backend is a SQLite-backed memorystore.Backend.
type Backend struct {
	db *sql.DB
}

// Driver selects which registered database/sql driver to open the file
// with. "sqlite3" (mattn, cgo) is the default for parity with the rest of
// the teacher's storage stack; "sqlite" (modernc, pure Go) is the fallback
// for environments where cgo isn't available.
type Driver string

const (
	DriverMattn   Driver = "sqlite3"
	DriverModernc Driver = "sqlite"
)

// Open opens (creating if absent) a SQLite database at path using driver,
// enables WAL mode for concurrent readers during a writer's transaction, and
// ensures the schema exists.
func Open(path string, driver Driver) (*Backend, error) {
	if driver == "" {
		driver = DriverMattn
	}
	db, err := sql.Open(string(driver), path)
	if err != nil {
		return nil, errs.ErrStorage
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, errs.ErrStorage
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.ErrStorage
	}

	return &Backend{db: db}, nil
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func (b *Backend) Index(ctx context.Context, entry *models.MemoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO memory_entries (item_id, collection, source_ref, content, chunk_hash, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET content=excluded.content, embedding=excluded.embedding`,
		entry.ItemID, string(entry.Collection), entry.SourceRef, entry.Content, entry.ChunkHash,
		encodeEmbedding(entry.Embedding), entry.CreatedAt,
	)
	if err != nil {
		return errs.ErrStorage
	}
	return nil
}

func (b *Backend) FindByHash(ctx context.Context, collection models.Collection, chunkHash string) (*models.MemoryEntry, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT item_id, collection, source_ref, content, chunk_hash, embedding, created_at
		 FROM memory_entries WHERE collection = ? AND chunk_hash = ? LIMIT 1`,
		string(collection), chunkHash,
	)

	var entry models.MemoryEntry
	var coll string
	var embBytes []byte
	err := row.Scan(&entry.ItemID, &coll, &entry.SourceRef, &entry.Content, &entry.ChunkHash, &embBytes, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStorage
	}

	entry.Collection = models.Collection(coll)
	entry.Embedding = decodeEmbedding(embBytes)
	return &entry, nil
}

func (b *Backend) Search(ctx context.Context, collection models.Collection, query []float32, k int) ([]models.SearchHit, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT item_id, source_ref, content, embedding FROM memory_entries WHERE collection = ?`,
		string(collection),
	)
	if err != nil {
		return nil, errs.ErrStorage
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var itemID, sourceRef, content string
		var embBytes []byte
		if err := rows.Scan(&itemID, &sourceRef, &content, &embBytes); err != nil {
			return nil, errs.ErrStorage
		}
		vec := decodeEmbedding(embBytes)
		hits = append(hits, models.SearchHit{
			ItemID:     itemID,
			Collection: collection,
			SourceRef:  sourceRef,
			Content:    content,
			Distance:   l2Distance(query, vec),
		})
	}
	if rows.Err() != nil {
		return nil, errs.ErrStorage
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (b *Backend) Count(ctx context.Context, collection models.Collection) (int, error) {
	var n int
	row := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries WHERE collection = ?`, string(collection))
	if err := row.Scan(&n); err != nil {
		return 0, errs.ErrStorage
	}
	return n, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}
