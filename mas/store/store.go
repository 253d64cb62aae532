// Package store keeps the dataset name to grid file index served by the
// metadata API. Queries are written with '?' placeholders and rebound for
// postgres.
package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	extr "github.com/nci/gfocal/crawl/extractor"
)

var ErrNotFound = errors.New("dataset not found")

// GridRecord is one indexed grid.
type GridRecord struct {
	Name      string    `json:"name"`
	NameSpace string    `json:"namespace"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	DType     string    `json:"dtype"`
	FileID    string    `json:"file_id"`
	MTime     time.Time `json:"mtime"`
}

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects with database/sql. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind turns '?' placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

const schema = `create table if not exists grids (
	name text primary key,
	namespace text not null,
	path text not null,
	nrows integer not null,
	ncols integer not null,
	dtype text not null,
	file_id text not null,
	mtime text not null
)`

func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Ingest inserts or replaces records by name and returns how many were written.
func (s *Store) Ingest(ctx context.Context, recs []GridRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(`insert into grids (name, namespace, path, nrows, ncols, dtype, file_id, mtime)
		values (?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (name) do update set
			namespace = excluded.namespace, path = excluded.path, nrows = excluded.nrows,
			ncols = excluded.ncols, dtype = excluded.dtype, file_id = excluded.file_id, mtime = excluded.mtime`))
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	for i, rec := range recs {
		if rec.Name == "" || rec.Path == "" {
			tx.Rollback()
			return 0, fmt.Errorf("record %d: name and path are required", i)
		}
		_, err := stmt.ExecContext(ctx, rec.Name, rec.NameSpace, rec.Path, rec.Rows, rec.Cols,
			rec.DType, rec.FileID, rec.MTime.UTC().Format(time.RFC3339Nano))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("record %d (%s): %v", i, rec.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(recs), nil
}

const selectColumns = `select name, namespace, path, nrows, ncols, dtype, file_id, mtime from grids`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*GridRecord, error) {
	rec := &GridRecord{}
	var mtime string
	if err := row.Scan(&rec.Name, &rec.NameSpace, &rec.Path, &rec.Rows, &rec.Cols, &rec.DType, &rec.FileID, &mtime); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, mtime)
	if err != nil {
		return nil, fmt.Errorf("%s: bad mtime %q: %v", rec.Name, mtime, err)
	}
	rec.MTime = t
	return rec, nil
}

func (s *Store) Lookup(ctx context.Context, name string) (*GridRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` where name = ?`), name)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return rec, err
}

// List returns records whose name starts with prefix, ordered by name.
func (s *Store) List(ctx context.Context, prefix string) ([]*GridRecord, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := s.db.QueryContext(ctx, s.rebind(selectColumns+` where name like ? escape '\' order by name`), escaped+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []*GridRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RecordsFromCrawl reads crawler tsv output. Files without grid metadata
// are skipped. Records are named after the file's base name without
// extension, with ":band" appended for multi band files.
func RecordsFromCrawl(r io.Reader) ([]GridRecord, error) {
	var recs []GridRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		parts := strings.SplitN(text, "\t", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("line %d: expected path, type and json columns", line)
		}

		var info extr.PosixInfo
		if err := json.Unmarshal([]byte(parts[2]), &info); err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		stem := strings.TrimSuffix(filepath.Base(info.FilePath), filepath.Ext(info.FilePath))
		for _, g := range info.Grids {
			name := stem
			if g.RasterCount > 1 {
				name = fmt.Sprintf("%s:%d", stem, g.Band)
			}
			recs = append(recs, GridRecord{
				Name:      name,
				NameSpace: g.NameSpace,
				Path:      info.FilePath,
				Rows:      g.YSize,
				Cols:      g.XSize,
				DType:     g.Type,
				FileID:    info.ID,
				MTime:     info.MTime,
			})
		}
	}
	return recs, sc.Err()
}
