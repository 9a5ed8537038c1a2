package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/leo-route-optimizer/model"
)

// Dialect selects placeholder style and column types for a SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore is a database/sql backed cache for catalogs and places. It works
// against SQLite (modernc.org/sqlite) and Postgres (pgx stdlib driver).
type SQLStore struct {
	DB      *sql.DB
	Dialect Dialect
}

// Open connects to the given driver ("sqlite" or "pgx") and verifies the
// connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	var dialect Dialect
	switch driver {
	case "sqlite":
		dialect = DialectSQLite
	case "pgx", "postgres":
		driver = "pgx"
		dialect = DialectPostgres
	default:
		return nil, "", fmt.Errorf("open cache db: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open cache db: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("open cache db: verify connection: %w", err)
	}
	return db, dialect, nil
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{DB: db, Dialect: dialect}
}

// InitSchema creates the cache tables when missing.
func (s *SQLStore) InitSchema(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("init schema: db is nil")
	}

	blob := "BLOB"
	if s.Dialect == DialectPostgres {
		blob = "BYTEA"
	}

	statements := []string{
		fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS tle_catalog (
		source TEXT PRIMARY KEY,
		body %s NOT NULL,
		fetched_at BIGINT NOT NULL
	);`, blob),
		`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		query TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL
	);`,
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadCatalog(ctx context.Context, source string) (model.Catalog, bool, error) {
	if s.DB == nil {
		return model.Catalog{}, false, errors.New("catalog cache: db is nil")
	}

	var body []byte
	var fetchedAt int64
	err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT body, fetched_at FROM tle_catalog WHERE source = ?`), source).
		Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Catalog{}, false, nil
	}
	if err != nil {
		return model.Catalog{}, false, fmt.Errorf("catalog cache: query: %w", err)
	}
	return model.Catalog{Source: source, Data: body, FetchedAt: time.Unix(0, fetchedAt).UTC()}, true, nil
}

func (s *SQLStore) StoreCatalog(ctx context.Context, c model.Catalog) error {
	if s.DB == nil {
		return errors.New("catalog cache: db is nil")
	}
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("catalog cache: empty source key")
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
	INSERT INTO tle_catalog (source, body, fetched_at)
	VALUES (?, ?, ?)
	ON CONFLICT (source) DO UPDATE
	SET body = EXCLUDED.body,
		fetched_at = EXCLUDED.fetched_at;
	`), c.Source, c.Data, c.FetchedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("catalog cache: upsert source=%q: %w", c.Source, err)
	}
	return nil
}

func (s *SQLStore) GetPlace(ctx context.Context, key string) (model.Place, bool, error) {
	if s.DB == nil {
		return model.Place{}, false, errors.New("geocode cache: db is nil")
	}

	var p model.Place
	err := s.DB.QueryRowContext(ctx, s.rebind(`SELECT name, lat, lon FROM geocode_cache WHERE query = ?`), NormalizeKey(key)).
		Scan(&p.Name, &p.Point.Lat, &p.Point.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Place{}, false, nil
	}
	if err != nil {
		return model.Place{}, false, fmt.Errorf("geocode cache: query: %w", err)
	}
	p.Resolved = true
	return p, true, nil
}

func (s *SQLStore) PutPlace(ctx context.Context, key string, p model.Place) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	norm := NormalizeKey(key)
	if norm == "" {
		return errors.New("geocode cache: empty query key")
	}

	_, err := s.DB.ExecContext(ctx, s.rebind(`
	INSERT INTO geocode_cache (query, name, lat, lon)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (query) DO UPDATE
	SET name = EXCLUDED.name,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon;
	`), norm, p.Name, p.Point.Lat, p.Point.Lon)
	if err != nil {
		return fmt.Errorf("geocode cache: upsert query=%q: %w", norm, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// rebind rewrites ? placeholders into $n for Postgres. Queries here never
// contain literal question marks.
func (s *SQLStore) rebind(q string) string {
	if s.Dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
