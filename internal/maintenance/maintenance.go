// Package maintenance holds the housekeeping utilities: database statistics,
// the expired-listing purge and CSV export.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/metrics"
	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/query"
)

type Service struct {
	db     *sql.DB
	exec   *query.Executor
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(db *sql.DB, exec *query.Executor, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, exec: exec, clock: clk, logger: logger}
}

// FoodStats aggregates listing quantities. Fields are nil when there are no
// listings.
type FoodStats struct {
	TotalQuantity *int64   `json:"total_quantity"`
	AvgQuantity   *float64 `json:"avg_quantity"`
	MinQuantity   *int64   `json:"min_quantity"`
	MaxQuantity   *int64   `json:"max_quantity"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Stats is a snapshot of table sizes and claim activity.
type Stats struct {
	Counts map[string]int64 `json:"counts"`
	Food   FoodStats        `json:"food"`
	Claims []StatusCount    `json:"claims"`
}

// Stats returns row counts per table, listing quantity aggregates and claim
// counts per status. On failure it returns an empty Stats and the error.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.stats(ctx)
	if err != nil {
		s.logger.Error("database stats failed", "error", err)
		return &Stats{Counts: map[string]int64{}, Claims: []StatusCount{}}, err
	}
	return st, nil
}

func (s *Service) stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Counts: make(map[string]int64, len(model.Tables)), Claims: []StatusCount{}}
	for _, table := range model.Tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, database.Classify(err))
		}
		st.Counts[table] = n
	}

	var total, minQ, maxQ sql.NullInt64
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(Quantity), AVG(Quantity), MIN(Quantity), MAX(Quantity) FROM food_listings`,
	).Scan(&total, &avg, &minQ, &maxQ)
	if err != nil {
		return nil, fmt.Errorf("food stats: %w", database.Classify(err))
	}
	if total.Valid {
		st.Food = FoodStats{TotalQuantity: &total.Int64, AvgQuantity: &avg.Float64, MinQuantity: &minQ.Int64, MaxQuantity: &maxQ.Int64}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT Status, COUNT(*) FROM claims GROUP BY Status ORDER BY Status`)
	if err != nil {
		return nil, fmt.Errorf("claim stats: %w", database.Classify(err))
	}
	defer rows.Close()
	for rows.Next() {
		var status sql.NullString
		var sc StatusCount
		if err := rows.Scan(&status, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan claim stats: %w", err)
		}
		sc.Status = status.String
		st.Claims = append(st.Claims, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim stats: %w", err)
	}
	return st, nil
}

// PurgeResult counts the rows a purge removed.
type PurgeResult struct {
	Listings int64 `json:"purged"`
	Claims   int64 `json:"claims_removed"`
}

// PurgeExpired deletes every listing whose Expiry_Date is strictly before
// today, together with the claims that reference them, in one transaction.
// It returns the number of listings removed, or 0 and the error on failure.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.Purge(ctx)
	return res.Listings, err
}

// Purge is PurgeExpired reporting the removed claims as well. Those claims
// no longer appear in the claim reports.
func (s *Service) Purge(ctx context.Context) (PurgeResult, error) {
	res, err := s.purge(ctx)
	if err != nil {
		s.logger.Error("purge expired listings failed", "error", err)
		return PurgeResult{}, err
	}
	metrics.ListingsPurged.Add(float64(res.Listings))
	if res.Listings > 0 {
		s.logger.Info("expired listings purged", "count", res.Listings, "claims", res.Claims)
	}
	return res, nil
}

func (s *Service) purge(ctx context.Context) (PurgeResult, error) {
	var res PurgeResult
	today := s.clock.Now().UTC().Format(model.DateLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", database.Classify(err))
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM claims WHERE Food_ID IN (SELECT Food_ID FROM food_listings WHERE Expiry_Date < date(?))`,
		today,
	)
	if err != nil {
		return res, fmt.Errorf("delete claims on expired listings: %w", database.Classify(err))
	}
	claims, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("rows affected: %w", err)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM food_listings WHERE Expiry_Date < date(?)`, today)
	if err != nil {
		return res, fmt.Errorf("delete expired listings: %w", database.Classify(err))
	}
	listings, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit purge: %w", database.Classify(err))
	}
	return PurgeResult{Listings: listings, Claims: claims}, nil
}
