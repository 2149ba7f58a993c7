// internal/workers/deal/refresh-pipeline-health/handler.go
package refreshpipelinehealth

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
	TaskType = "refresh-pipeline-health"
)

var (
	ErrRefreshFailed = errors.New("PIPELINE_REFRESH_FAILED")
)

// Repository is the full read/write surface the sweep needs: enumerate deals,
// load each snapshot, score against one shared population, persist.
type Repository interface {
	ListDealIDs(ctx context.Context, stageName string) ([]string, error)
	FetchSnapshot(ctx context.Context, dealID string) (*health.Snapshot, error)
	SampleDealValues(ctx context.Context) ([]float64, error)
	SaveScore(ctx context.Context, dealID string, result health.Result, computedAt time.Time) error
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
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("validate input: %v", err))
		return
	} else if !result.Valid {
		h.failJob(client, job, "INVALID_INPUT", result.Error())
		return
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, classify(err), err.Error())
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	started := time.Now()

	now := time.Now().UTC()
	if input.EvaluatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, input.EvaluatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad evaluatedAt %q: %v", ErrRefreshFailed, input.EvaluatedAt, err)
		}
		now = parsed.UTC()
	}

	dealIDs, err := h.repo.ListDealIDs(ctx, input.StageName)
	if err != nil {
		return nil, err
	}

	// One population sample shared across the sweep keeps the percentile
	// factor consistent between deals scored in the same run.
	population, err := h.repo.SampleDealValues(ctx)
	if err != nil {
		h.logger.Warn("population sample unavailable, scoring without it", map[string]interface{}{
			"error": err,
		})
		population = nil
	}

	output := &Output{
		AtRiskDeals: []string{},
		EvaluatedAt: now.Format(time.RFC3339),
	}

	for _, dealID := range dealIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: sweep interrupted after %d deals: %v", ErrRefreshFailed, output.DealsScored, err)
		}

		if err := h.refreshDeal(ctx, dealID, population, now, output); err != nil {
			output.DealsFailed++
			h.logger.Warn("deal refresh failed, continuing sweep", map[string]interface{}{
				"dealId": dealID,
				"error":  err,
			})
		}
	}

	output.DurationMs = time.Since(started).Milliseconds()

	h.logger.Info("pipeline health refreshed", map[string]interface{}{
		"stageName":   input.StageName,
		"dealsScored": output.DealsScored,
		"dealsFailed": output.DealsFailed,
		"atRiskDeals": len(output.AtRiskDeals),
	})

	return output, nil
}

func (h *Handler) refreshDeal(ctx context.Context, dealID string, population []float64, now time.Time, output *Output) error {
	snapshot, err := h.repo.FetchSnapshot(ctx, dealID)
	if err != nil {
		return err
	}

	result := health.ComputeHealthScore(*snapshot, population, now)
	metrics.HealthScoreComputed.Observe(float64(result.Score))

	if err := h.repo.SaveScore(ctx, dealID, result, now); err != nil {
		return err
	}

	output.DealsScored++
	if result.Score < h.config.AtRiskThreshold {
		output.AtRiskDeals = append(output.AtRiskDeals, dealID)
		metrics.AtRiskDealsDetected.Inc()
	}
	return nil
}

func classify(err error) string {
	var stdErr *commonerrors.StandardError
	if errors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "PIPELINE_REFRESH_FAILED"
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

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

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

// Execute exposes the sweep for tests and scheduled callers.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
