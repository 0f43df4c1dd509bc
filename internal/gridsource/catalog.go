package gridsource

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/seaward-systems/marinecast/internal/grid"
)

// Artifact is one cataloged GRIB file on disk.
type Artifact struct {
	ID           int64
	Product      grid.Product
	Path         string
	Date         string // "20240322"
	Cycle        string // "t12z"
	Resolution   string
	ForecastHour int
	DownloadTime time.Time
}

// Catalog records downloaded artifacts in SQLite so the service can warm
// restart from the newest file without re-downloading.
type Catalog struct {
	db *sql.DB
}

// NewCatalog opens (or creates) the catalog database and configures WAL
// mode.
func NewCatalog(dsn string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "catalog: exec %s", pragma)
		}
	}
	return &Catalog{db: db}, nil
}

const catalogMigration = `
CREATE TABLE IF NOT EXISTS grib_artifacts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	product       TEXT NOT NULL,
	path          TEXT NOT NULL,
	date          TEXT NOT NULL,
	cycle         TEXT NOT NULL,
	resolution    TEXT NOT NULL,
	forecast_hour INTEGER NOT NULL,
	download_time DATETIME NOT NULL,
	UNIQUE(product, date, cycle, forecast_hour)
);

CREATE INDEX IF NOT EXISTS idx_grib_artifacts_product ON grib_artifacts(product, date, cycle);
`

// Migrate creates the schema.
func (c *Catalog) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, catalogMigration)
	return eris.Wrap(err, "catalog: migrate")
}

// Close releases the database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// Insert records an artifact, replacing any previous record of the same
// product/cycle/hour (a re-download supersedes the old file).
func (c *Catalog) Insert(ctx context.Context, a Artifact) (int64, error) {
	// RETURNING yields the row id on both the insert and the update path;
	// LastInsertId is only reliable for plain inserts.
	var id int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO grib_artifacts (product, path, date, cycle, resolution, forecast_hour, download_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product, date, cycle, forecast_hour) DO UPDATE SET
			path = excluded.path,
			download_time = excluded.download_time
		RETURNING id`,
		string(a.Product), a.Path, a.Date, a.Cycle, a.Resolution, a.ForecastHour, a.DownloadTime.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: insert artifact")
	}
	return id, nil
}

// Latest returns the newest artifact for a product by run date and cycle,
// or nil when the catalog has none.
func (c *Catalog) Latest(ctx context.Context, product grid.Product) (*Artifact, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, product, path, date, cycle, resolution, forecast_hour, download_time
		FROM grib_artifacts
		WHERE product = ?
		ORDER BY date DESC, cycle DESC, forecast_hour ASC, download_time DESC
		LIMIT 1`,
		string(product),
	)

	var a Artifact
	var prod string
	err := row.Scan(&a.ID, &prod, &a.Path, &a.Date, &a.Cycle, &a.Resolution, &a.ForecastHour, &a.DownloadTime)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "catalog: query latest")
	}
	a.Product = grid.Product(prod)
	return &a, nil
}
