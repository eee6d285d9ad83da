package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres is a ledger backed by a single Postgres table.
type Postgres struct {
	db    *sql.DB
	table string
}

// NewPostgres connects to dsn and ensures the table exists.
func NewPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres ledger: dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	p, err := NewPostgresWithDB(ctx, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithDB reuses an existing *sql.DB.
func NewPostgresWithDB(ctx context.Context, db *sql.DB, table string) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("postgres ledger: db is required")
	}
	if table == "" {
		table = "query_records"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("postgres ledger: invalid table name %q", table)
	}
	p := &Postgres{db: db, table: table}
	if err := p.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("creating ledger table: %w", err)
	}
	return p, nil
}

func (p *Postgres) ensureTable(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS ` + p.table + ` (
  query text PRIMARY KEY,
  raw text NOT NULL DEFAULT '',
  hit_count bigint NOT NULL DEFAULT 0,
  response text NOT NULL DEFAULT '',
  language text NOT NULL DEFAULT '',
  updated_at timestamptz NOT NULL DEFAULT now()
);
`
	_, err := p.db.ExecContext(ctx, ddl)
	return err
}

const recordColumns = `query, raw, hit_count, response, language, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.Key, &rec.Raw, &rec.HitCount, &rec.Answer, &rec.Language, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get implements Ledger.
func (p *Postgres) Get(ctx context.Context, key string) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM `+p.table+` WHERE query=$1`, key)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger get %q: %w", key, err)
	}
	return rec, nil
}

// Increment implements Ledger in a single upsert, so concurrent writers
// never lose a count.
func (p *Postgres) Increment(ctx context.Context, key, raw, answer, lang string) (*Record, error) {
	row := p.db.QueryRowContext(ctx, `
INSERT INTO `+p.table+` (query, raw, hit_count, response, language, updated_at)
VALUES ($1, $2, 1, $3, $4, now())
ON CONFLICT (query) DO UPDATE SET
  raw = EXCLUDED.raw,
  hit_count = `+p.table+`.hit_count + 1,
  response = EXCLUDED.response,
  language = EXCLUDED.language,
  updated_at = now()
RETURNING `+recordColumns, key, raw, answer, lang)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("ledger increment %q: %w", key, err)
	}
	return rec, nil
}

// Put implements Ledger.
func (p *Postgres) Put(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
INSERT INTO `+p.table+` (query, raw, hit_count, response, language, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (query) DO UPDATE SET
  raw = EXCLUDED.raw,
  hit_count = EXCLUDED.hit_count,
  response = EXCLUDED.response,
  language = EXCLUDED.language,
  updated_at = EXCLUDED.updated_at`,
		rec.Key, rec.Raw, rec.HitCount, rec.Answer, rec.Language, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ledger put %q: %w", rec.Key, err)
	}
	return nil
}

// List implements Ledger.
func (p *Postgres) List(ctx context.Context, prefix string) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM `+p.table+` WHERE query LIKE $1 ESCAPE '\' ORDER BY query`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger list: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close implements Ledger.
func (p *Postgres) Close() error { return p.db.Close() }

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
