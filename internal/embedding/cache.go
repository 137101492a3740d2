package embedding

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS embedding_meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	row_count   INTEGER NOT NULL,
	dim         INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS embedding_rows (
	idx         INTEGER PRIMARY KEY,
	vector      BLOB NOT NULL
);
`

// #endregion schema

// #region cache-struct
// Cache persists one embedding matrix in SQLite.
type Cache struct {
	db *sql.DB
}

// #endregion cache-struct

// #region constructor
// OpenCache opens a SQLite cache file and runs migrations.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// #endregion constructor

// #region load
// Load returns the cached matrix, or nil when the cache is empty.
// A cached matrix of a different width is ErrDimMismatch and one with a
// different number of rows is ErrRowMismatch.
func (c *Cache) Load(wantRows, dim int) (*mat.Dense, error) {
	var rows, cachedDim int
	err := c.db.QueryRow(`SELECT row_count, dim FROM embedding_meta WHERE id = 1`).Scan(&rows, &cachedDim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	if cachedDim != dim {
		return nil, fmt.Errorf("cached dim %d, want %d: %w", cachedDim, dim, ErrDimMismatch)
	}
	if rows != wantRows {
		return nil, fmt.Errorf("cached rows %d, want %d: %w", rows, wantRows, ErrRowMismatch)
	}

	m := mat.NewDense(rows, dim, nil)
	rs, err := c.db.Query(`SELECT idx, vector FROM embedding_rows ORDER BY idx`)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	defer rs.Close()
	for rs.Next() {
		var idx int
		var blob []byte
		if err := rs.Scan(&idx, &blob); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if idx < 0 || idx >= rows {
			return nil, fmt.Errorf("cached row %d outside %d rows", idx, rows)
		}
		m.SetRow(idx, decodeVector(blob, dim))
	}
	return m, rs.Err()
}

// #endregion load

// #region save
// Save replaces the cached matrix. Zero rows are not stored.
func (c *Cache) Save(m *mat.Dense) error {
	rows, dim := m.Dims()
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM embedding_rows`); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO embedding_meta (id, row_count, dim, created_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET row_count = excluded.row_count, dim = excluded.dim, created_at = excluded.created_at`,
		rows, dim, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO embedding_rows (idx, vector) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		if isZero(row) {
			continue
		}
		if _, err := stmt.Exec(i, encodeVector(row)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// #endregion save

// #region vector-encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(f)))
	}
	return buf
}

func decodeVector(b []byte, dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		if i*4+4 <= len(b) {
			v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
		}
	}
	return v
}

func isZero(v []float64) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

// #endregion vector-encoding
