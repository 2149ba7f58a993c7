// internal/repository/deals.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dealdesk-workers/internal/common/errors"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/health"
	"dealdesk-workers/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// populationCacheKey holds the JSON-encoded comparison population. The sample
// only shifts when deal values are edited, so a short TTL is enough to keep
// batch recomputes from hammering the deals table.
const populationCacheKey = "deals:acv:population"

// DealRepository assembles scoring snapshots from the CRM tables and persists
// results back onto deals. It is the I/O side of the scoring pipeline; the
// engine itself never touches it.
type DealRepository struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewDealRepository(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *DealRepository {
	return &DealRepository{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "deal-repository"}),
	}
}

// FetchSnapshot joins the deal row, its pipeline stage, and its activity notes
// into a scoring snapshot. Missing columns become nil fields; the engine
// handles absence, so nothing here is an error except a missing deal.
func (r *DealRepository) FetchSnapshot(ctx context.Context, dealID string) (*health.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT d.value_amount, d.close_date, d.last_activity_at, d.notes,
		       s.name, s.win_probability
		FROM deals d
		LEFT JOIN pipeline_stages s ON s.id = d.stage_id
		WHERE d.id = $1`, dealID)

	var (
		valueAmount    sql.NullFloat64
		closeDate      sql.NullTime
		lastActivityAt sql.NullTime
		inlineNotes    sql.NullString
		stageName      sql.NullString
		winProbability sql.NullFloat64
	)
	err := row.Scan(&valueAmount, &closeDate, &lastActivityAt, &inlineNotes, &stageName, &winProbability)
	if err == sql.ErrNoRows {
		return nil, errors.NewDealNotFoundError(dealID)
	}
	if err != nil {
		return nil, errors.NewSnapshotFetchFailedError(err)
	}

	snapshot := &health.Snapshot{
		WinProbability:  nullFloat(winProbability),
		StageName:       nullString(stageName),
		ValueAmount:     nullFloat(valueAmount),
		CloseDate:       nullTime(closeDate),
		LastActivityAt:  nullTime(lastActivityAt),
		DealNotesInline: nullString(inlineNotes),
	}

	allNotes, latestNoteAt, err := r.fetchActivityNotes(ctx, dealID)
	if err != nil {
		return nil, err
	}
	snapshot.AllNotesText = allNotes
	snapshot.LatestNoteAt = latestNoteAt

	return snapshot, nil
}

func (r *DealRepository) fetchActivityNotes(ctx context.Context, dealID string) (string, *time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT body, created_at
		FROM activity_notes
		WHERE deal_id = $1
		ORDER BY created_at ASC`, dealID)
	if err != nil {
		return "", nil, errors.NewSnapshotFetchFailedError(err)
	}
	defer rows.Close()

	var bodies []string
	var latest *time.Time
	for rows.Next() {
		var body string
		var createdAt time.Time
		if err := rows.Scan(&body, &createdAt); err != nil {
			return "", nil, errors.NewSnapshotFetchFailedError(err)
		}
		bodies = append(bodies, body)
		at := createdAt
		latest = &at
	}
	if err := rows.Err(); err != nil {
		return "", nil, errors.NewSnapshotFetchFailedError(err)
	}

	return strings.Join(bodies, "\n"), latest, nil
}

// SampleDealValues returns the positive deal values across the system, for
// percentile ranking. Served from Redis when warm.
func (r *DealRepository) SampleDealValues(ctx context.Context) ([]float64, error) {
	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, populationCacheKey).Result(); err == nil {
			var values []float64
			if json.Unmarshal([]byte(cached), &values) == nil {
				return values, nil
			}
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT value_amount FROM deals WHERE value_amount > 0`)
	if err != nil {
		return nil, errors.NewPopulationQueryFailedError(err)
	}
	defer rows.Close()

	values := []float64{}
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.NewPopulationQueryFailedError(err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPopulationQueryFailedError(err)
	}

	if r.redis != nil {
		if data, err := json.Marshal(values); err == nil {
			if err := r.redis.Set(ctx, populationCacheKey, data, r.cacheTTL).Err(); err != nil {
				r.logger.Warn("population cache write failed", map[string]interface{}{"error": err})
			}
		}
	}

	return values, nil
}

// SaveScore writes the composite score and per-factor breakdown onto the deal
// and appends a history row. The history insert is best-effort.
func (r *DealRepository) SaveScore(ctx context.Context, dealID string, result health.Result, computedAt time.Time) error {
	breakdownJSON, err := json.Marshal(result.Breakdown)
	if err != nil {
		return errors.NewScorePersistFailedError(dealID, err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE deals
		SET health_score = $2, health_breakdown = $3, health_scored_at = $4, updated_at = $4
		WHERE id = $1`,
		dealID, result.Score, breakdownJSON, computedAt)
	if err != nil {
		return errors.NewScorePersistFailedError(dealID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return errors.NewDealNotFoundError(dealID)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO deal_health_history (id, deal_id, score, breakdown, computed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), dealID, result.Score, breakdownJSON, computedAt)
	if err != nil {
		r.logger.Warn("health history insert failed", map[string]interface{}{
			"dealId": dealID,
			"error":  err,
		})
	}

	return nil
}

// ListDealIDs returns deal ids, optionally restricted to one pipeline stage
// (case-insensitive name match).
func (r *DealRepository) ListDealIDs(ctx context.Context, stageName string) ([]string, error) {
	query := `SELECT d.id FROM deals d`
	args := []interface{}{}
	if stageName != "" {
		query += ` JOIN pipeline_stages s ON s.id = d.stage_id WHERE LOWER(s.name) = LOWER($1)`
		args = append(args, stageName)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewSnapshotFetchFailedError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewSnapshotFetchFailedError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewSnapshotFetchFailedError(err)
	}
	return ids, nil
}

// GetOwnerContact resolves the owning user's contact details for a deal.
func (r *DealRepository) GetOwnerContact(ctx context.Context, dealID string) (*models.DealOwner, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.email, COALESCE(u.phone, '')
		FROM deals d
		JOIN users u ON u.id = d.owner_id
		WHERE d.id = $1`, dealID)

	var owner models.DealOwner
	if err := row.Scan(&owner.ID, &owner.Name, &owner.Email, &owner.Phone); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewDealNotFoundError(dealID)
		}
		return nil, fmt.Errorf("owner lookup failed: %w", err)
	}
	return &owner, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
