// Package storage is the durable market data store: the latest-record reads
// and observation upserts the freshness service depends on, over SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/marketdata/internal/database"
	"github.com/aristath/marketdata/internal/domain"
	"github.com/rs/zerolog"
)

// Repository provides durable reads and writes of observations
type Repository struct {
	db         *sql.DB
	namespaces Namespaces
	now        func() time.Time
	log        zerolog.Logger
}

// NewRepository creates a new market data repository
func NewRepository(db *sql.DB, namespaces Namespaces, log zerolog.Logger) *Repository {
	if namespaces == nil {
		namespaces = DefaultNamespaces()
	}
	return &Repository{
		db:         db,
		namespaces: namespaces,
		now:        time.Now,
		log:        log.With().Str("repo", "market_data").Logger(),
	}
}

// SetClock overrides the clock used to stamp writes (tests)
func (r *Repository) SetClock(now func() time.Time) {
	r.now = now
}

// ReadLatest returns the most recent record for a symbol across the category's
// namespaces. Returns nil, nil if none exists.
func (r *Repository) ReadLatest(ctx context.Context, category domain.AssetCategory, symbol string) (*domain.PersistedRecord, error) {
	records, err := r.ReadLatestMany(ctx, category, []string{symbol})
	if err != nil {
		return nil, err
	}
	return records[symbol], nil
}

// ReadLatestMany returns the most recent record per symbol in a single query.
// The map is keyed by the symbols as passed; symbols without data are absent.
func (r *Repository) ReadLatestMany(ctx context.Context, category domain.AssetCategory, symbols []string) (map[string]*domain.PersistedRecord, error) {
	namespaces, err := r.namespaces.Resolve(category)
	if err != nil {
		return nil, err
	}

	records := make(map[string]*domain.PersistedRecord, len(symbols))
	if len(symbols) == 0 {
		return records, nil
	}

	// Stored symbols are upper-case; remember every caller spelling
	requested := make(map[string][]string, len(symbols))
	for _, symbol := range symbols {
		normalized := normalizeSymbol(symbol)
		requested[normalized] = append(requested[normalized], symbol)
	}
	upper := make([]string, 0, len(requested))
	for normalized := range requested {
		upper = append(upper, normalized)
	}

	query := fmt.Sprintf(`
		SELECT m.namespace, m.symbol, m.as_of, m.payload, m.updated_at
		FROM market_data m
		WHERE m.namespace IN (%s) AND m.symbol IN (%s)
		  AND m.as_of = (
			SELECT MAX(x.as_of) FROM market_data x
			WHERE x.namespace = m.namespace AND x.symbol = m.symbol
		  )`, placeholders(len(namespaces)), placeholders(len(upper)))

	args := make([]interface{}, 0, len(namespaces)+len(upper))
	for _, ns := range namespaces {
		args = append(args, ns)
	}
	for _, symbol := range upper {
		args = append(args, symbol)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest %s records: %w", category, err)
	}
	defer rows.Close()

	best := make(map[string]*domain.PersistedRecord, len(upper))
	for rows.Next() {
		record, err := scanRecord(rows, category)
		if err != nil {
			return nil, err
		}
		if current, ok := best[record.Symbol]; !ok || newer(record, current, namespaces) {
			best[record.Symbol] = record
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate latest %s records: %w", category, err)
	}

	for normalized, record := range best {
		for _, symbol := range requested[normalized] {
			records[symbol] = record
		}
	}
	return records, nil
}

// newer reports whether candidate beats current: later AsOf, then later
// UpdatedAt, then earlier namespace in the category's list.
func newer(candidate, current *domain.PersistedRecord, namespaces []string) bool {
	if !candidate.AsOf.Equal(current.AsOf) {
		return candidate.AsOf.After(current.AsOf)
	}
	if !candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedAt.After(current.UpdatedAt)
	}
	return namespaceIndex(namespaces, candidate.Namespace) < namespaceIndex(namespaces, current.Namespace)
}

// Upsert writes observations into the category's primary namespace, replacing
// existing rows for the same date
func (r *Repository) Upsert(ctx context.Context, category domain.AssetCategory, symbol string, observations []domain.Observation) error {
	namespaces, err := r.namespaces.Resolve(category)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		return nil
	}

	namespace := namespaces[0]
	normalized := normalizeSymbol(symbol)
	updatedAt := r.now().Unix()

	err = database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO market_data (namespace, symbol, as_of, payload, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(namespace, symbol, as_of) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, o := range observations {
			if _, err := time.Parse(domain.DateLayout, o.Date); err != nil {
				return fmt.Errorf("invalid observation date %q: %w", o.Date, err)
			}
			payload, err := encodeValues(o.Values)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, namespace, normalized, o.Date, payload, updatedAt); err != nil {
				return fmt.Errorf("failed to upsert %s %s: %w", normalized, o.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", namespace, err)
	}

	r.log.Debug().
		Str("namespace", namespace).
		Str("symbol", normalized).
		Int("observations", len(observations)).
		Msg("Upserted observations")
	return nil
}

// SeriesQuery bounds a series read. Empty dates and a zero limit mean unbounded.
type SeriesQuery struct {
	Start string // inclusive, YYYY-MM-DD
	End   string // inclusive, YYYY-MM-DD
	Limit int    // most recent N observations
}

// ReadSeries returns stored observations for a symbol, oldest first. For
// multi-namespace categories a date present in several namespaces is taken
// from the first namespace.
func (r *Repository) ReadSeries(ctx context.Context, category domain.AssetCategory, symbol string, q SeriesQuery) ([]domain.Observation, error) {
	namespaces, err := r.namespaces.Resolve(category)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT namespace, as_of, payload FROM market_data WHERE namespace IN (%s) AND symbol = ?`,
		placeholders(len(namespaces)))
	args := make([]interface{}, 0, len(namespaces)+3)
	for _, ns := range namespaces {
		args = append(args, ns)
	}
	args = append(args, normalizeSymbol(symbol))

	if q.Start != "" {
		query += " AND as_of >= ?"
		args = append(args, q.Start)
	}
	if q.End != "" {
		query += " AND as_of <= ?"
		args = append(args, q.End)
	}
	query += " ORDER BY as_of DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s series for %s: %w", category, symbol, err)
	}
	defer rows.Close()

	byDate := make(map[string]int)
	series := make([]domain.Observation, 0)
	rank := make([]int, 0)
	for rows.Next() {
		var namespace, asOf string
		var payload []byte
		if err := rows.Scan(&namespace, &asOf, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		values, err := decodeValues(payload)
		if err != nil {
			return nil, err
		}

		idx := namespaceIndex(namespaces, namespace)
		if i, seen := byDate[asOf]; seen {
			if idx < rank[i] {
				series[i].Values = values
				rank[i] = idx
			}
			continue
		}
		if q.Limit > 0 && len(series) >= q.Limit {
			continue
		}
		byDate[asOf] = len(series)
		series = append(series, domain.Observation{Date: asOf, Values: values})
		rank = append(rank, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series rows: %w", err)
	}

	domain.SortObservations(series)
	return series, nil
}

// PruneOlderThan deletes observations dated before cutoff and returns the number removed
func (r *Repository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM market_data WHERE as_of < ?", cutoff.Format(domain.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune market_data: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for market_data: %w", err)
	}
	return deleted, nil
}

// CountByNamespace returns the number of stored observations per namespace
func (r *Repository) CountByNamespace(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT namespace, COUNT(*) FROM market_data GROUP BY namespace")
	if err != nil {
		return nil, fmt.Errorf("failed to count market_data: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var namespace string
		var count int64
		if err := rows.Scan(&namespace, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[namespace] = count
	}
	return counts, rows.Err()
}

func scanRecord(rows *sql.Rows, category domain.AssetCategory) (*domain.PersistedRecord, error) {
	var namespace, symbol, asOf string
	var payload []byte
	var updatedAt int64
	if err := rows.Scan(&namespace, &symbol, &asOf, &payload, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan market_data row: %w", err)
	}

	values, err := decodeValues(payload)
	if err != nil {
		return nil, fmt.Errorf("%s/%s %s: %w", namespace, symbol, asOf, err)
	}
	date, err := time.Parse(domain.DateLayout, asOf)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: invalid as_of %q: %w", namespace, symbol, asOf, err)
	}

	return &domain.PersistedRecord{
		Category:  category,
		Symbol:    symbol,
		Namespace: namespace,
		Value:     domain.Observation{Date: asOf, Values: values},
		AsOf:      date,
		UpdatedAt: time.Unix(updatedAt, 0),
	}, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func namespaceIndex(namespaces []string, namespace string) int {
	for i, ns := range namespaces {
		if ns == namespace {
			return i
		}
	}
	return len(namespaces)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
