package cache

import (
	"context"
	"database/sql"
	"detour-route-service/internal/domain"
	"detour-route-service/internal/platform/obs"
	"detour-route-service/internal/platform/textnorm"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SQLGeocodeCache is a durable Postgres store mapping normalized place text
// to coordinates. Entries never expire; place coordinates are stable.
type SQLGeocodeCache struct {
	DB  *sql.DB
	log *zap.Logger
}

func NewSQLGeocodeCache(db *sql.DB, log *zap.Logger) *SQLGeocodeCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLGeocodeCache{DB: db, log: log.Named("geocode_store")}
}

// InitSchema creates the geocode_cache table when missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address    TEXT PRIMARY KEY,
		lon        DOUBLE PRECISION NOT NULL,
		lat        DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`)
	if err != nil {
		return fmt.Errorf("init schema: create geocode_cache: %w", err)
	}
	return nil
}

// Fetch cached coordinates for the given addresses, keyed by normalized text.
func (s *SQLGeocodeCache) GetMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, s.log, "geocode.store.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("geocode store: db is nil")
	}

	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = textnorm.Address(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		uniq = append(uniq, a)
	}

	if len(uniq) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT address, lon, lat
	FROM geocode_cache
	WHERE address = ANY($1::text[]);
	`, uniq)
	if err != nil {
		return nil, fmt.Errorf("get geocode store: query geocode_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Coordinates, len(uniq))
	for rows.Next() {
		var addr string
		var lon, lat float64
		if err := rows.Scan(&addr, &lon, &lat); err != nil {
			return nil, fmt.Errorf("get geocode store: scan rows: %w", err)
		}
		out[addr] = domain.Coordinates{Lon: lon, Lat: lat}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get geocode store: row iteration: %w", err)
	}

	return out, nil
}

// Store address -> coordinate mappings, replacing existing rows.
func (s *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, s.log, "geocode.store.PutMany")(&err)

	if s.DB == nil {
		return errors.New("geocode store: db is nil")
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert geocode store: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO geocode_cache (address, lon, lat)
	VALUES ($1, $2, $3)
	ON CONFLICT (address) DO UPDATE
	SET lon = EXCLUDED.lon,
		lat = EXCLUDED.lat;
	`)
	if err != nil {
		return fmt.Errorf("insert geocode store: db prepare: %w", err)
	}
	defer stmt.Close()

	for addr, c := range results {
		key := textnorm.Address(addr)
		if key == "" {
			return fmt.Errorf("insert geocode store: empty address key")
		}
		if _, err := stmt.ExecContext(ctx, key, c.Lon, c.Lat); err != nil {
			return fmt.Errorf("insert geocode store address=%q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert geocode store commit: %w", err)
	}

	return nil
}

type geocodeStore interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

type resolver interface {
	Resolve(ctx context.Context, address string) (domain.Coordinates, error)
}

// PersistentGeocoder consults the durable store before the wrapped geocoder
// and writes fresh results back. Store failures are logged, never returned.
type PersistentGeocoder struct {
	next  resolver
	store geocodeStore
	log   *zap.Logger
}

func NewPersistentGeocoder(next resolver, store geocodeStore, log *zap.Logger) *PersistentGeocoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersistentGeocoder{next: next, store: store, log: log.Named("geocoder")}
}

func (g *PersistentGeocoder) Resolve(ctx context.Context, address string) (domain.Coordinates, error) {
	key := textnorm.Address(address)
	if key == "" {
		return domain.Coordinates{}, fmt.Errorf("resolve: empty address: %w", domain.ErrInvalidInput)
	}

	hits, err := g.store.GetMany(ctx, []string{key})
	if err != nil {
		g.log.Warn("geocode store read failed", zap.Error(err))
	} else if c, ok := hits[key]; ok {
		return c, nil
	}

	c, err := g.next.Resolve(ctx, strings.TrimSpace(address))
	if err != nil {
		return domain.Coordinates{}, err
	}

	if err := g.store.PutMany(ctx, map[string]domain.Coordinates{key: c}); err != nil {
		g.log.Warn("geocode store write failed", zap.Error(err))
	}
	return c, nil
}
