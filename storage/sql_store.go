package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"yacht-platform/models"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const listingColumns = `
	id, title, price, COALESCE(currency, 'EUR') AS currency, year,
	COALESCE(brand, '') AS brand, COALESCE(model, '') AS model, length,
	COALESCE(location, '') AS location, COALESCE(condition, '') AS condition,
	COALESCE(description, '') AS description, COALESCE(seller_name, '') AS seller_name,
	COALESCE(seller_type, '') AS seller_type, source_url, source_platform,
	COALESCE(images, '') AS images, COALESCE(hin, '') AS hin, COALESCE(mmsi, '') AS mmsi,
	created_at, updated_at, is_duplicate, score`

var schemas = map[string][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS yacht_listings (
			id              BIGSERIAL PRIMARY KEY,
			title           VARCHAR(500)     NOT NULL,
			price           DOUBLE PRECISION,
			currency        VARCHAR(10)      DEFAULT 'EUR',
			year            INTEGER,
			brand           VARCHAR(100),
			model           VARCHAR(100),
			length          DOUBLE PRECISION,
			location        VARCHAR(200),
			condition       VARCHAR(50),
			description     TEXT,
			seller_name     VARCHAR(200),
			seller_type     VARCHAR(50),
			source_url      VARCHAR(1000)    NOT NULL,
			source_platform VARCHAR(100)     NOT NULL,
			images          TEXT,
			hin             VARCHAR(50),
			mmsi            VARCHAR(20),
			created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			is_duplicate    BOOLEAN          NOT NULL DEFAULT FALSE,
			score           DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_yacht_listings_active ON yacht_listings(is_duplicate, id)`,
		`CREATE INDEX IF NOT EXISTS idx_yacht_listings_score  ON yacht_listings(score)`,
		`CREATE INDEX IF NOT EXISTS idx_yacht_listings_hin    ON yacht_listings(hin)`,
	},
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS yacht_listings (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			title           TEXT      NOT NULL,
			price           REAL,
			currency        TEXT      DEFAULT 'EUR',
			year            INTEGER,
			brand           TEXT,
			model           TEXT,
			length          REAL,
			location        TEXT,
			condition       TEXT,
			description     TEXT,
			seller_name     TEXT,
			seller_type     TEXT,
			source_url      TEXT      NOT NULL,
			source_platform TEXT      NOT NULL,
			images          TEXT,
			hin             TEXT,
			mmsi            TEXT,
			created_at      TIMESTAMP NOT NULL,
			updated_at      TIMESTAMP NOT NULL,
			is_duplicate    BOOLEAN   NOT NULL DEFAULT 0,
			score           REAL      NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_yacht_listings_active ON yacht_listings(is_duplicate, id)`,
		`CREATE INDEX IF NOT EXISTS idx_yacht_listings_score  ON yacht_listings(score)`,
		`CREATE INDEX IF NOT EXISTS idx_yacht_listings_hin    ON yacht_listings(hin)`,
	},
}

// SQLStore persists listings in PostgreSQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database, runs schema migrations, and returns a
// ready-to-use SQLStore.
func Open(driver, dsn string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps in-memory databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(schema []string) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn in a transaction. fn's error is returned as is after the
// rollback; a panic in fn rolls back and is re-raised.
func (s *SQLStore) WithTx(ctx context.Context, fn func(ListingTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Insert stores new listings and sets their IDs. Missing timestamps and
// currency are filled in.
func (s *SQLStore) Insert(ctx context.Context, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}

	query := tx.Rebind(`
		INSERT INTO yacht_listings (
			title, price, currency, year, brand, model, length, location, condition,
			description, seller_name, seller_type, source_url, source_platform,
			images, hin, mmsi, created_at, updated_at, is_duplicate, score
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		RETURNING id`)

	now := time.Now().UTC()
	for _, l := range listings {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		if l.UpdatedAt.IsZero() {
			l.UpdatedAt = l.CreatedAt
		}
		if l.Currency == "" {
			l.Currency = "EUR"
		}

		err := tx.QueryRowxContext(ctx, query,
			l.Title, l.Price, l.Currency, l.Year, l.Brand, l.Model, l.Length,
			l.Location, l.Condition, l.Description, l.SellerName, l.SellerType,
			l.SourceURL, l.SourcePlatform, l.Images, l.HIN, l.MMSI,
			l.CreatedAt, l.UpdatedAt, l.IsDuplicate, l.Score,
		).Scan(&l.ID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: insert %q: %w", l.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Get returns the listing with the given id, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id int64) (*models.Listing, error) {
	l := &models.Listing{}
	query := s.db.Rebind(`SELECT ` + listingColumns + ` FROM yacht_listings WHERE id = ?`)
	if err := s.db.GetContext(ctx, l, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get %d: %w", id, err)
	}
	return l, nil
}

// Query returns one page of non-duplicate listings matching f, best score
// first, along with the total number of matches.
func (s *SQLStore) Query(ctx context.Context, f ListingFilter) ([]*models.Listing, int, error) {
	conds := []string{"NOT is_duplicate"}
	var args []interface{}

	if f.Brand != "" {
		conds = append(conds, "LOWER(brand) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Brand)+"%")
	}
	if f.Location != "" {
		conds = append(conds, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}
	if f.MinPrice > 0 {
		conds = append(conds, "price >= ?")
		args = append(args, f.MinPrice)
	}
	if f.MaxPrice > 0 {
		conds = append(conds, "price <= ?")
		args = append(args, f.MaxPrice)
	}
	if f.MinYear > 0 {
		conds = append(conds, "year >= ?")
		args = append(args, f.MinYear)
	}
	if f.MaxYear > 0 {
		conds = append(conds, "year <= ?")
		args = append(args, f.MaxYear)
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	countQuery := s.db.Rebind(`SELECT COUNT(*) FROM yacht_listings` + where)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("store: count listings: %w", err)
	}

	skip := f.Skip
	if skip < 0 {
		skip = 0
	}
	pageQuery := s.db.Rebind(`SELECT ` + listingColumns + ` FROM yacht_listings` + where +
		` ORDER BY score DESC, id ASC LIMIT ? OFFSET ?`)
	listings := []*models.Listing{}
	if err := s.db.SelectContext(ctx, &listings, pageQuery, append(args, f.limit(), skip)...); err != nil {
		return nil, 0, fmt.Errorf("store: query listings: %w", err)
	}
	return listings, total, nil
}

// ActiveListings returns every non-duplicate listing in insertion order.
func (s *SQLStore) ActiveListings(ctx context.Context) ([]*models.Listing, error) {
	return selectActive(ctx, s.db)
}

// Stats returns listing counts.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			COUNT(*) AS total_listings,
			COALESCE(SUM(CASE WHEN is_duplicate THEN 0 ELSE 1 END), 0) AS active_listings,
			COALESCE(SUM(CASE WHEN is_duplicate THEN 1 ELSE 0 END), 0) AS duplicate_listings
		FROM yacht_listings`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) FetchActiveListings(ctx context.Context) ([]*models.Listing, error) {
	return selectActive(ctx, t.tx)
}

func (t *sqlTx) SaveMutations(ctx context.Context, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	stmt, err := t.tx.PreparexContext(ctx, t.tx.Rebind(
		`UPDATE yacht_listings SET is_duplicate = (is_duplicate OR ?), score = ?, updated_at = ? WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("store: prepare update: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, l := range listings {
		res, err := stmt.ExecContext(ctx, l.IsDuplicate, l.Score, now, l.ID)
		if err != nil {
			return fmt.Errorf("store: update listing %d: %w", l.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: update listing %d: %w", l.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("store: update listing %d: %w", l.ID, ErrNotFound)
		}
		l.UpdatedAt = now
	}
	return nil
}

func selectActive(ctx context.Context, q sqlx.QueryerContext) ([]*models.Listing, error) {
	listings := []*models.Listing{}
	err := sqlx.SelectContext(ctx, q, &listings,
		`SELECT `+listingColumns+` FROM yacht_listings WHERE NOT is_duplicate ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: fetch active listings: %w", err)
	}
	return listings, nil
}
