// internal/workers/deal/persist-health-score/handler.go
package persisthealthscore

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
	TaskType = "persist-health-score"
)

var (
	ErrPersistFailed = errors.New("SCORE_PERSIST_FAILED")
)

// ScoreWriter persists a computed result onto the deal record.
type ScoreWriter interface {
	SaveScore(ctx context.Context, dealID string, result health.Result, computedAt time.Time) error
}

type Handler struct {
	config *Config
	writer ScoreWriter
	logger logger.Logger
}

func NewHandler(config *Config, writer ScoreWriter, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		writer: writer,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
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
		var stdErr *commonerrors.StandardError
		if errors.As(err, &stdErr) {
			retries := int32(0)
			if stdErr.Retryable {
				retries = 3
			}
			h.failJob(client, job, string(stdErr.Code), err.Error(), retries)
			return
		}
		h.failJob(client, job, "SCORE_PERSIST_FAILED", err.Error(), 0)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	computedAt := time.Now().UTC()
	if input.ComputedAt != "" {
		parsed, err := time.Parse(time.RFC3339, input.ComputedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad computedAt %q: %v", ErrPersistFailed, input.ComputedAt, err)
		}
		computedAt = parsed.UTC()
	}

	result := health.Result{
		Score:     input.HealthScore,
		Breakdown: input.HealthBreakdown,
	}

	if err := h.writer.SaveScore(ctx, input.DealID, result, computedAt); err != nil {
		return nil, err
	}

	h.logger.Info("health score persisted", map[string]interface{}{
		"dealId": input.DealID,
		"score":  input.HealthScore,
	})

	return &Output{
		DealID:      input.DealID,
		Persisted:   true,
		PersistedAt: computedAt.Format(time.RFC3339),
	}, nil
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
