// Package store persists the permanent geocode cache in SQLite.
//
// One row per unique normalized address key. Rows are created on the first
// geocode attempt (success or failure), mutated in place forever after, and
// never deleted by this service.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/parishstaq/geocoding-service/internal/domain"
)

// Store wraps SQLite access to the geocode_cache table.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if necessary) the cache database at path and runs
// migrations. The connection pool is bounded and idle connections are
// recycled so batch jobs cannot starve concurrent callers.
func Open(path string) (*Store, error) {
	// WAL plus a busy timeout lets concurrent geocode operations queue on the
	// write lock instead of failing with SQLITE_BUSY.
	dsn := "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache db: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(time.Hour)

	s := &Store{db: db, clock: clockwork.NewRealClock()}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock swaps the time source. Pass nil to reset to real time.
// Tests use a fake clock for deterministic timestamps.
func (s *Store) SetClock(c clockwork.Clock) {
	if c == nil {
		s.clock = clockwork.NewRealClock()
		return
	}
	s.clock = c
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the geocode_cache table and its secondary indexes.
// Safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			address_key TEXT NOT NULL UNIQUE,
			street TEXT,
			city TEXT,
			state TEXT,
			zip TEXT,
			latitude REAL,
			longitude REAL,
			formatted_address TEXT,
			place_id TEXT,
			accuracy TEXT,
			confidence TEXT,
			provider TEXT,
			geocoded_at TIMESTAMP,
			raw_response TEXT,
			error_message TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error_at TIMESTAMP,
			usage_count INTEGER NOT NULL DEFAULT 1,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_cache_city_state ON geocode_cache(city, state);`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_cache_zip ON geocode_cache(zip);`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_cache_coords ON geocode_cache(latitude, longitude);`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_cache_accuracy ON geocode_cache(accuracy);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate geocode cache: %w", err)
		}
	}
	return nil
}

// Entry is one row of the geocode cache. The JSON shape is the export/audit
// format; the raw provider payload is deliberately excluded from it.
type Entry struct {
	ID               int64      `json:"id"`
	AddressKey       string     `json:"address_key"`
	Street           string     `json:"street"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Zip              string     `json:"zip"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	FormattedAddress *string    `json:"formatted_address"`
	PlaceID          *string    `json:"place_id"`
	Accuracy         *string    `json:"accuracy"`
	Confidence       *string    `json:"confidence"`
	Provider         *string    `json:"provider"`
	GeocodedAt       *time.Time `json:"geocoded_at"`
	RawResponse      *string    `json:"-"`
	ErrorMessage     *string    `json:"error_message"`
	RetryCount       int64      `json:"retry_count"`
	LastErrorAt      *time.Time `json:"last_error_at"`
	UsageCount       int64      `json:"usage_count"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Valid reports whether the entry holds usable coordinates.
func (e *Entry) Valid() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// Success carries the provider-derived fields written on a successful geocode.
type Success struct {
	Lat              float64
	Lng              float64
	Accuracy         domain.Accuracy
	Confidence       domain.Confidence
	FormattedAddress string
	PlaceID          string
	Provider         string
	Raw              []byte
}

const entryColumns = `id, address_key, street, city, state, zip,
	latitude, longitude, formatted_address, place_id,
	accuracy, confidence, provider, geocoded_at, raw_response,
	error_message, retry_count, last_error_at,
	usage_count, last_used_at, created_at, updated_at`

// Get returns the entry for key, or nil if none exists.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM geocode_cache WHERE address_key = ?`, key)
	e, err := scanEntry(row)
	switch err {
	case nil:
		return e, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("get geocode entry: %w", err)
	}
}

// UpsertSuccess creates or overwrites the entry for key with a successful
// geocode in a single atomic statement. It clears any prior error message,
// counts the lookup, and stamps geocoded_at. Prior retry bookkeeping is kept
// for the audit trail.
func (s *Store) UpsertSuccess(ctx context.Context, key string, in domain.AddressInput, res Success) (*Entry, error) {
	now := s.clock.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx, `INSERT INTO geocode_cache (
			address_key, street, city, state, zip,
			latitude, longitude, formatted_address, place_id,
			accuracy, confidence, provider, geocoded_at, raw_response,
			usage_count, last_used_at, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?,?)
		ON CONFLICT(address_key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			formatted_address = excluded.formatted_address,
			place_id = excluded.place_id,
			accuracy = excluded.accuracy,
			confidence = excluded.confidence,
			provider = excluded.provider,
			geocoded_at = excluded.geocoded_at,
			raw_response = excluded.raw_response,
			error_message = NULL,
			usage_count = usage_count + 1,
			last_used_at = excluded.last_used_at,
			updated_at = excluded.updated_at
		RETURNING id`,
		key, in.Street, in.City, in.State, in.Zip,
		res.Lat, res.Lng, res.FormattedAddress, res.PlaceID,
		string(res.Accuracy), string(res.Confidence), res.Provider, now, string(res.Raw),
		now, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("upsert geocode success: %w", err)
	}
	return s.Get(ctx, key)
}

// RecordError stores a failed geocode attempt for key. Existing entries keep
// their coordinates untouched (last-known-good fix survives a failed refresh);
// only the error fields and retry count move. Usage statistics are never
// counted here.
func (s *Store) RecordError(ctx context.Context, key string, in domain.AddressInput, message string) error {
	now := s.clock.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO geocode_cache (
			address_key, street, city, state, zip,
			error_message, retry_count, last_error_at, created_at, updated_at
		) VALUES (?,?,?,?,?,?,1,?,?,?)
		ON CONFLICT(address_key) DO UPDATE SET
			error_message = excluded.error_message,
			retry_count = retry_count + 1,
			last_error_at = excluded.last_error_at,
			updated_at = excluded.updated_at`,
		key, in.Street, in.City, in.State, in.Zip,
		message, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("record geocode error: %w", err)
	}
	return nil
}

// TouchUsage counts a cache hit for key.
func (s *Store) TouchUsage(ctx context.Context, key string) error {
	now := s.clock.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE geocode_cache SET usage_count = usage_count + 1, last_used_at = ?, updated_at = ? WHERE address_key = ?`,
		now, now, key)
	if err != nil {
		return fmt.Errorf("touch geocode usage: %w", err)
	}
	return nil
}

// Stats are aggregate cache counters, read without mutation.
type Stats struct {
	TotalCached       int64
	ValidCount        int64
	FailedCount       int64
	TotalUsageCount   int64
	AccuracyBreakdown map[string]int64
}

// Stats aggregates cache-wide counters.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{AccuracyBreakdown: map[string]int64{}}

	row := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN latitude IS NOT NULL AND longitude IS NOT NULL THEN 1 ELSE 0 END), 0),
			COUNT(error_message),
			COALESCE(SUM(usage_count), 0)
		FROM geocode_cache`)
	if err := row.Scan(&st.TotalCached, &st.ValidCount, &st.FailedCount, &st.TotalUsageCount); err != nil {
		return nil, fmt.Errorf("geocode cache stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT accuracy, COUNT(*) FROM geocode_cache WHERE accuracy IS NOT NULL GROUP BY accuracy`)
	if err != nil {
		return nil, fmt.Errorf("geocode cache accuracy breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var accuracy string
		var count int64
		if err := rows.Scan(&accuracy, &count); err != nil {
			return nil, fmt.Errorf("geocode cache accuracy breakdown: %w", err)
		}
		st.AccuracyBreakdown[accuracy] = count
	}
	return st, rows.Err()
}

// ExportAll returns every cache entry in insertion order, for audit export.
func (s *Store) ExportAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM geocode_cache ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("export geocode cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("export geocode cache: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Health returns an error if the database is not reachable.
func (s *Store) Health(ctx context.Context) error {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&v); err != nil {
		return fmt.Errorf("geocode cache health: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                        Entry
		street, city, state, zip sql.NullString
		lat, lng                 sql.NullFloat64
		formatted, placeID       sql.NullString
		accuracy, confidence     sql.NullString
		provider, raw, errMsg    sql.NullString
		geocodedAt, lastErrorAt  sql.NullTime
		lastUsedAt               sql.NullTime
	)
	err := row.Scan(&e.ID, &e.AddressKey, &street, &city, &state, &zip,
		&lat, &lng, &formatted, &placeID,
		&accuracy, &confidence, &provider, &geocodedAt, &raw,
		&errMsg, &e.RetryCount, &lastErrorAt,
		&e.UsageCount, &lastUsedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Street = street.String
	e.City = city.String
	e.State = state.String
	e.Zip = zip.String
	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lng.Valid {
		e.Longitude = &lng.Float64
	}
	if formatted.Valid {
		e.FormattedAddress = &formatted.String
	}
	if placeID.Valid {
		e.PlaceID = &placeID.String
	}
	if accuracy.Valid {
		e.Accuracy = &accuracy.String
	}
	if confidence.Valid {
		e.Confidence = &confidence.String
	}
	if provider.Valid {
		e.Provider = &provider.String
	}
	if geocodedAt.Valid {
		e.GeocodedAt = &geocodedAt.Time
	}
	if raw.Valid {
		e.RawResponse = &raw.String
	}
	if errMsg.Valid {
		e.ErrorMessage = &errMsg.String
	}
	if lastErrorAt.Valid {
		e.LastErrorAt = &lastErrorAt.Time
	}
	if lastUsedAt.Valid {
		e.LastUsedAt = &lastUsedAt.Time
	}
	return &e, nil
}
