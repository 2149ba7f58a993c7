// internal/workers/deal/calculate-health-score/handler_test.go
package calculatehealthscore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "dealdesk-workers/internal/common/errors"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/common/validation"
	"dealdesk-workers/internal/health"
)

// ==========================
// Test Helper Functions
// ==========================

type mockRepository struct {
	snapshot      *health.Snapshot
	snapshotErr   error
	population    []float64
	populationErr error
	fetchCalls    int
	sampleCalls   int
}

func (m *mockRepository) FetchSnapshot(_ context.Context, _ string) (*health.Snapshot, error) {
	m.fetchCalls++
	return m.snapshot, m.snapshotErr
}

func (m *mockRepository) SampleDealValues(_ context.Context) ([]float64, error) {
	m.sampleCalls++
	return m.population, m.populationErr
}

func newTestHandler(t *testing.T, repo Repository) *Handler {
	return NewHandler(LoadConfig(), repo, logger.NewTestLogger(t))
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

const evaluatedAt = "2026-03-15T13:45:00Z"

// ==========================
// Core Functionality Tests
// ==========================

func TestExecute_InlineSnapshotSkipsRepository(t *testing.T) {
	repo := &mockRepository{}
	handler := newTestHandler(t, repo)

	input := &Input{
		DealID: "deal-001",
		Snapshot: &health.Snapshot{
			WinProbability: floatPtr(60),
			StageName:      strPtr("Short Listed"),
		},
		ComparisonValues: []float64{10, 20, 30},
		EvaluatedAt:      evaluatedAt,
	}

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "deal-001", output.DealID)
	assert.Equal(t, 60, output.HealthBreakdown.StageProbability)
	assert.Equal(t, 0, repo.fetchCalls)
	assert.Equal(t, 0, repo.sampleCalls)
}

func TestExecute_AllAbsentSnapshotScoresDefaults(t *testing.T) {
	repo := &mockRepository{snapshot: &health.Snapshot{}}
	handler := newTestHandler(t, repo)

	output, err := handler.Execute(context.Background(), &Input{
		DealID:      "deal-002",
		EvaluatedAt: evaluatedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, 48, output.HealthScore)
	assert.Equal(t, health.Breakdown{
		StageProbability:   35,
		Velocity:           70,
		ActivityRecency:    40,
		CloseDateIntegrity: 60,
		ACV:                40,
		NotesSignal:        50,
	}, output.HealthBreakdown)
	assert.Equal(t, 1, repo.fetchCalls)
	assert.Equal(t, 1, repo.sampleCalls)
}

func TestExecute_PopulationFromSampler(t *testing.T) {
	repo := &mockRepository{
		snapshot:   &health.Snapshot{ValueAmount: floatPtr(41)},
		population: []float64{10, 20, 30, 40, 50},
	}
	handler := newTestHandler(t, repo)

	output, err := handler.Execute(context.Background(), &Input{DealID: "deal-003", EvaluatedAt: evaluatedAt})
	require.NoError(t, err)

	assert.Equal(t, 100, output.HealthBreakdown.ACV)
}

func TestExecute_SamplerOutageDegradesToUnsized(t *testing.T) {
	repo := &mockRepository{
		snapshot:      &health.Snapshot{ValueAmount: floatPtr(500000)},
		populationErr: commonerrors.NewPopulationQueryFailedError(assert.AnError),
	}
	handler := newTestHandler(t, repo)

	output, err := handler.Execute(context.Background(), &Input{DealID: "deal-004", EvaluatedAt: evaluatedAt})
	require.NoError(t, err)

	// Empty population falls back to the neutral band.
	assert.Equal(t, 40, output.HealthBreakdown.ACV)
}

func TestExecute_Deterministic(t *testing.T) {
	repo := &mockRepository{
		snapshot: &health.Snapshot{
			WinProbability: floatPtr(70),
			StageName:      strPtr("Contract Negotiations"),
			AllNotesText:   "budget confirmed, procurement engaged",
		},
		population: []float64{1000, 2000},
	}
	handler := newTestHandler(t, repo)

	input := &Input{DealID: "deal-005", EvaluatedAt: evaluatedAt}
	first, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExecute_DealNotFound(t *testing.T) {
	repo := &mockRepository{snapshotErr: commonerrors.NewDealNotFoundError("deal-404")}
	handler := newTestHandler(t, repo)

	_, err := handler.Execute(context.Background(), &Input{DealID: "deal-404"})
	require.Error(t, err)

	code, retries := classify(err)
	assert.Equal(t, "DEAL_NOT_FOUND", code)
	assert.Equal(t, int32(0), retries)
}

func TestExecute_RetryableFetchFailure(t *testing.T) {
	repo := &mockRepository{snapshotErr: commonerrors.NewSnapshotFetchFailedError(assert.AnError)}
	handler := newTestHandler(t, repo)

	_, err := handler.Execute(context.Background(), &Input{DealID: "deal-005"})
	require.Error(t, err)

	code, retries := classify(err)
	assert.Equal(t, "SNAPSHOT_FETCH_FAILED", code)
	assert.Equal(t, int32(3), retries)
}

func TestCapRetries(t *testing.T) {
	tests := []struct {
		name      string
		requested int32
		remaining int32
		expected  int32
	}{
		{"job budget tighter than request", 3, 1, 1},
		{"request within job budget", 3, 5, 3},
		{"no job budget reported", 3, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, capRetries(tt.requested, tt.remaining))
		})
	}
}

func TestExecute_BadEvaluatedAt(t *testing.T) {
	repo := &mockRepository{snapshot: &health.Snapshot{}}
	handler := newTestHandler(t, repo)

	_, err := handler.Execute(context.Background(), &Input{
		DealID:      "deal-006",
		EvaluatedAt: "yesterday-ish",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScoringFailed)
}

func TestExecute_WallClockWhenEvaluatedAtEmpty(t *testing.T) {
	repo := &mockRepository{snapshot: &health.Snapshot{}}
	handler := newTestHandler(t, repo)

	before := time.Now().UTC()
	output, err := handler.Execute(context.Background(), &Input{DealID: "deal-007"})
	require.NoError(t, err)

	computedAt, err := time.Parse(time.RFC3339, output.ComputedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, before, computedAt, 5*time.Second)
}

// ==========================
// Input Schema Tests
// ==========================

func TestInputSchema_RejectsMissingDealID(t *testing.T) {
	result, err := validation.ValidateInput(inputSchema, []byte(`{"evaluatedAt":"2026-03-15T00:00:00Z"}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestInputSchema_AcceptsFullPayload(t *testing.T) {
	payload := []byte(`{
		"dealId": "deal-001",
		"snapshot": {"stageName": "Short Listed", "allNotesText": ""},
		"comparisonValues": [100, 200.5],
		"evaluatedAt": "2026-03-15T00:00:00Z"
	}`)
	result, err := validation.ValidateInput(inputSchema, payload)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestInputSchema_RejectsNonNumericPopulation(t *testing.T) {
	result, err := validation.ValidateInput(inputSchema, []byte(`{"dealId":"d","comparisonValues":["big"]}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}
