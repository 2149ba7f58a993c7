// internal/workers/deal/calculate-health-score/handler.go
package calculatehealthscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonerrors "dealdesk-workers/internal/common/errors"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/common/metrics"
	"dealdesk-workers/internal/common/validation"
	"dealdesk-workers/internal/health"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "calculate-health-score"
)

var (
	ErrScoringFailed = errors.New("HEALTH_SCORE_FAILED")
)

// Repository supplies the deal snapshot and the comparison population. The
// scoring engine itself stays pure; all I/O goes through here.
type Repository interface {
	FetchSnapshot(ctx context.Context, dealID string) (*health.Snapshot, error)
	SampleDealValues(ctx context.Context) ([]float64, error)
}

type Handler struct {
	config *Config
	repo   Repository
	logger logger.Logger
}

func NewHandler(config *Config, repo Repository, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		repo:   repo,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	raw := []byte(job.Variables)
	if result, err := validation.ValidateInput(inputSchema, raw); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("validate input: %v", err), 0)
		return
	} else if !result.Valid {
		h.failJob(client, job, "INVALID_INPUT", result.Error(), 0)
		return
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		code, retries := classify(err)
		h.failJob(client, job, code, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	now := time.Now().UTC()
	if input.EvaluatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, input.EvaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad evaluatedAt %q: %v", ErrScoringFailed, input.EvaluatedAt, err)
		}
		now = parsed.UTC()
	}

	snapshot := input.Snapshot
	if snapshot == nil {
		fetched, err := h.repo.FetchSnapshot(ctx, input.DealID)
		if err != nil {
			return nil, err
		}
		snapshot = fetched
	}

	population := input.ComparisonValues
	if len(population) == 0 {
		sampled, err := h.repo.SampleDealValues(ctx)
		if err != nil {
			// The engine degrades cleanly on an empty population; a sampler
			// outage should not block scoring.
			h.logger.Warn("population sample unavailable, scoring without it", map[string]interface{}{
				"dealId": input.DealID,
				"error":  err,
			})
			sampled = nil
		}
		population = sampled
	}

	result := health.ComputeHealthScore(*snapshot, population, now)
	metrics.HealthScoreComputed.Observe(float64(result.Score))

	h.logger.Info("health score calculated", map[string]interface{}{
		"dealId":    input.DealID,
		"score":     result.Score,
		"breakdown": result.Breakdown,
	})

	return &Output{
		DealID:          input.DealID,
		HealthScore:     result.Score,
		HealthBreakdown: result.Breakdown,
		HealthDebug:     result.Debug,
		ComputedAt:      now.Format(time.RFC3339),
	}, nil
}

func classify(err error) (string, int32) {
	var stdErr *commonerrors.StandardError
	if errors.As(err, &stdErr) {
		if stdErr.Retryable {
			return string(stdErr.Code), 3
		}
		return string(stdErr.Code), 0
	}
	return "HEALTH_SCORE_FAILED", 0
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// capRetries keeps the job's own remaining budget when it is tighter than
// the classifier's request.
func capRetries(requested, remaining int32) int32 {
	if remaining > 0 && remaining < requested {
		return remaining
	}
	return requested
}

// failJob routes retryable failures back onto the queue with a retry budget;
// everything else surfaces as a BPMN error for the process to handle.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	if retries > 0 {
		_, err := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(capRetries(retries, job.Retries)).
			ErrorMessage(fmt.Sprintf("[%s] %s", errorCode, errorMessage)).
			Send(context.Background())
		if err != nil {
			h.logger.Error("failed to fail job", map[string]interface{}{
				"error": err,
			})
		}
		return
	}

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute exposes the business logic for tests and batch callers.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
