package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/fareaggregator/internal/dedup"
	"github.com/dharmasatrya/fareaggregator/internal/models"
)

// Store persists search requests together with their offers and connector
// runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateRequest inserts req as queued. ID and CreatedAt are filled in when
// empty.
func (s *Store) CreateRequest(ctx context.Context, req *models.SearchRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Status = models.SearchQueued

	queryJSON, err := json.Marshal(req.Query)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO search_requests (id, query_hash, query_json, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.QueryHash, queryJSON, string(req.Status), req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search request: %w", err)
	}
	return nil
}

func (s *Store) LoadRequest(ctx context.Context, id string) (*models.SearchRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, query_hash, query_json, status, error_message, created_at, started_at, completed_at
		FROM search_requests
		WHERE id = $1
	`, id)

	var req models.SearchRequest
	var queryJSON []byte
	var status string
	var errMsg *string
	err := row.Scan(&req.ID, &req.QueryHash, &queryJSON, &status, &errMsg, &req.CreatedAt, &req.StartedAt, &req.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan search request: %w", err)
	}

	if err := json.Unmarshal(queryJSON, &req.Query); err != nil {
		return nil, fmt.Errorf("unmarshal query: %w", err)
	}
	req.Status = models.SearchStatus(status)
	if errMsg != nil {
		req.ErrorMessage = *errMsg
	}
	return &req, nil
}

func (s *Store) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE search_requests
		SET status = $2, started_at = $3, error_message = NULL
		WHERE id = $1
	`, id, string(models.SearchRunning), startedAt)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, message string, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE search_requests
		SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1
	`, id, string(models.SearchFailed), nullString(message), completedAt)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceOffersAndRuns swaps the whole result set of a search and marks it
// completed, all in one transaction. Every offer gets a fresh id.
func (s *Store) ReplaceOffersAndRuns(ctx context.Context, id string, offers []models.Offer, runs []models.RunResult, completedAt time.Time) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM offers WHERE search_id = $1`, id); err != nil {
		return fmt.Errorf("delete offers: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM connector_runs WHERE search_id = $1`, id); err != nil {
		return fmt.Errorf("delete runs: %w", err)
	}

	batch := &pgx.Batch{}
	for i, o := range offers {
		args, err := offerArgs(id, i, o, completedAt)
		if err != nil {
			return err
		}
		batch.Queue(insertOffer, args...)
	}
	for _, r := range runs {
		batch.Queue(insertRun, uuid.NewString(), id, r.Source, string(r.Status), r.LatencyMs, nullString(r.ErrorMessage), completedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert results: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE search_requests
		SET status = $2, error_message = NULL, completed_at = $3
		WHERE id = $1
	`, id, string(models.SearchCompleted), completedAt)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

const insertOffer = `
	INSERT INTO offers (
		id, search_id, position, source, dedup_key, airline, flight_numbers, origin, destination,
		departure_at, arrival_at, stops, duration_minutes, cabin, fare_brand, baggage, fare_rules,
		base_price, taxes, fees, total_price, currency, booking_url, deep_link_valid, raw_payload, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9,
		$10, $11, $12, $13, $14, $15, $16, $17,
		$18::text::numeric, $19::text::numeric, $20::text::numeric, $21::text::numeric, $22, $23, $24, $25, $26
	)`

const insertRun = `
	INSERT INTO connector_runs (id, search_id, source, status, latency_ms, error_message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func offerArgs(searchID string, position int, o models.Offer, createdAt time.Time) ([]any, error) {
	numbers := o.FlightNumbers
	if numbers == nil {
		numbers = []string{}
	}
	numbersJSON, err := json.Marshal(numbers)
	if err != nil {
		return nil, fmt.Errorf("marshal flight numbers: %w", err)
	}
	payload := o.RawPayload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal raw payload: %w", err)
	}
	key := o.DedupKey
	if key == "" {
		key = dedup.Key(o)
	}

	return []any{
		uuid.NewString(), searchID, position, o.Source, key, o.Airline, numbersJSON, o.Origin, o.Destination,
		o.DepartureAt.UTC(), o.ArrivalAt.UTC(), o.Stops, o.DurationMin,
		nullString(o.Cabin), nullString(o.FareBrand), nullString(o.Baggage), nullString(o.FareRules),
		numericText(o.BasePrice), numericText(o.Taxes), numericText(o.Fees), o.TotalPrice.String(),
		o.Currency, o.BookingURL, o.DeepLinkValid, payloadJSON, createdAt,
	}, nil
}

const selectOffer = `
	SELECT id, source, dedup_key, airline, flight_numbers, origin, destination,
	       departure_at, arrival_at, stops, duration_minutes, cabin, fare_brand, baggage, fare_rules,
	       base_price::text, taxes::text, fees::text, total_price::text, currency, booking_url,
	       deep_link_valid, raw_payload
	FROM offers`

// ListOffers returns the offers of a search cheapest first.
func (s *Store) ListOffers(ctx context.Context, searchID string) ([]models.Offer, error) {
	rows, err := s.pool.Query(ctx, selectOffer+`
		WHERE search_id = $1
		ORDER BY total_price, stops, duration_minutes, position
	`, searchID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := []models.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func (s *Store) GetOffer(ctx context.Context, searchID, offerID string) (*models.Offer, error) {
	row := s.pool.QueryRow(ctx, selectOffer+`
		WHERE search_id = $1 AND id = $2
	`, searchID, offerID)
	return scanOffer(row)
}

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var o models.Offer
	var numbersJSON, payloadJSON []byte
	var cabin, fareBrand, baggage, fareRules *string
	var base, taxes, fees *string
	var total string

	err := row.Scan(
		&o.ID, &o.Source, &o.DedupKey, &o.Airline, &numbersJSON, &o.Origin, &o.Destination,
		&o.DepartureAt, &o.ArrivalAt, &o.Stops, &o.DurationMin, &cabin, &fareBrand, &baggage, &fareRules,
		&base, &taxes, &fees, &total, &o.Currency, &o.BookingURL,
		&o.DeepLinkValid, &payloadJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan offer: %w", err)
	}

	if err := json.Unmarshal(numbersJSON, &o.FlightNumbers); err != nil {
		return nil, fmt.Errorf("unmarshal flight numbers: %w", err)
	}
	if err := json.Unmarshal(payloadJSON, &o.RawPayload); err != nil {
		return nil, fmt.Errorf("unmarshal raw payload: %w", err)
	}
	o.Cabin, o.FareBrand, o.Baggage, o.FareRules = deref(cabin), deref(fareBrand), deref(baggage), deref(fareRules)

	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total price: %w", err)
	}
	for _, f := range []struct {
		dst *decimal.NullDecimal
		src *string
	}{{&o.BasePrice, base}, {&o.Taxes, taxes}, {&o.Fees, fees}} {
		if *f.dst, err = parseNullDecimal(f.src); err != nil {
			return nil, err
		}
	}
	o.DepartureAt = o.DepartureAt.UTC()
	o.ArrivalAt = o.ArrivalAt.UTC()
	return &o, nil
}

// ListRuns returns the connector runs of a search in insertion order.
func (s *Store) ListRuns(ctx context.Context, searchID string) ([]models.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, search_id, source, status, latency_ms, error_message, created_at
		FROM connector_runs
		WHERE search_id = $1
		ORDER BY created_at, source
	`, searchID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// LatestRuns returns the most recent run of every source that ever ran.
func (s *Store) LatestRuns(ctx context.Context) (map[string]models.RunRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (source) id, search_id, source, status, latency_ms, error_message, created_at
		FROM connector_runs
		ORDER BY source, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("latest runs: %w", err)
	}
	defer rows.Close()

	runs, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]models.RunRecord, len(runs))
	for _, r := range runs {
		latest[r.Source] = r
	}
	return latest, nil
}

func collectRuns(rows pgx.Rows) ([]models.RunRecord, error) {
	runs := []models.RunRecord{}
	for rows.Next() {
		var r models.RunRecord
		var status string
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.SearchID, &r.Source, &status, &r.LatencyMs, &errMsg, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = models.RunStatus(status)
		r.ErrorMessage = deref(errMsg)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func numericText(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse price %q: %w", *s, err)
	}
	return decimal.NewNullDecimal(d), nil
}
