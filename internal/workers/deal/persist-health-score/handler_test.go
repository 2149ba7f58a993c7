// internal/workers/deal/persist-health-score/handler_test.go
package persisthealthscore

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

type mockWriter struct {
	saved []savedScore
	err   error
}

type savedScore struct {
	dealID     string
	result     health.Result
	computedAt time.Time
}

func (m *mockWriter) SaveScore(_ context.Context, dealID string, result health.Result, computedAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, savedScore{dealID, result, computedAt})
	return nil
}

func validInput() *Input {
	return &Input{
		DealID:      "deal-001",
		HealthScore: 73,
		HealthBreakdown: health.Breakdown{
			StageProbability: 70, Velocity: 100, ActivityRecency: 70,
			CloseDateIntegrity: 70, ACV: 70, NotesSignal: 60,
		},
		ComputedAt: "2026-03-15T14:00:00Z",
	}
}

func TestExecute_PersistsScore(t *testing.T) {
	writer := &mockWriter{}
	handler := NewHandler(LoadConfig(), writer, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())
	require.NoError(t, err)

	assert.True(t, output.Persisted)
	assert.Equal(t, "2026-03-15T14:00:00Z", output.PersistedAt)
	require.Len(t, writer.saved, 1)
	assert.Equal(t, "deal-001", writer.saved[0].dealID)
	assert.Equal(t, 73, writer.saved[0].result.Score)
	assert.Equal(t, 100, writer.saved[0].result.Breakdown.Velocity)
}

func TestExecute_WriterFailurePropagates(t *testing.T) {
	writer := &mockWriter{err: commonerrors.NewScorePersistFailedError("deal-001", assert.AnError)}
	handler := NewHandler(LoadConfig(), writer, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), validInput())
	require.Error(t, err)

	stdErr, ok := err.(*commonerrors.StandardError)
	require.True(t, ok)
	assert.Equal(t, commonerrors.ErrCodeScorePersistFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestCapRetries(t *testing.T) {
	assert.Equal(t, int32(1), capRetries(3, 1))
	assert.Equal(t, int32(3), capRetries(3, 5))
	assert.Equal(t, int32(3), capRetries(3, 0))
}

func TestExecute_BadComputedAt(t *testing.T) {
	handler := NewHandler(LoadConfig(), &mockWriter{}, logger.NewTestLogger(t))

	input := validInput()
	input.ComputedAt = "last tuesday"
	_, err := handler.Execute(context.Background(), input)
	assert.ErrorIs(t, err, ErrPersistFailed)
}

func TestInputSchema_RejectsOutOfRangeScore(t *testing.T) {
	result, err := validation.ValidateInput(inputSchema, []byte(`{"dealId":"d","healthScore":140,"healthBreakdown":{}}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestInputSchema_AcceptsValidPayload(t *testing.T) {
	result, err := validation.ValidateInput(inputSchema, []byte(`{"dealId":"d","healthScore":55,"healthBreakdown":{"stageProbability":35}}`))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
