// internal/workers/reporting/index-health-snapshot/handler.go
package indexhealthsnapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealdesk-workers/internal/common/database"
	commonerrors "dealdesk-workers/internal/common/errors"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/common/metrics"
	"dealdesk-workers/internal/common/validation"
	"dealdesk-workers/internal/health"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "index-health-snapshot"
)

// Indexer writes one health document; satisfied by the Elasticsearch-backed
// implementation below and by mocks in tests.
type Indexer interface {
	IndexDocument(ctx context.Context, indexName, documentID string, body []byte) error
}

// ESIndexer indexes documents through the shared Elasticsearch client.
type ESIndexer struct {
	client *database.ElasticsearchClient
}

func NewESIndexer(client *database.ElasticsearchClient) *ESIndexer {
	return &ESIndexer{client: client}
}

func (e *ESIndexer) IndexDocument(ctx context.Context, indexName, documentID string, body []byte) error {
	res, err := e.client.Client.Index(
		indexName,
		bytes.NewReader(body),
		e.client.Client.Index.WithDocumentID(documentID),
		e.client.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index response %s", res.Status())
	}
	return nil
}

type Handler struct {
	config  *Config
	indexer Indexer
	logger  logger.Logger
}

func NewHandler(config *Config, indexer Indexer, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		indexer: indexer,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, string(commonerrors.ErrCodeIndexingFailed), err.Error())
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	indexedAt := time.Now().UTC().Format(time.RFC3339)

	computedAt := input.ComputedAt
	if computedAt == "" {
		computedAt = indexedAt
	}

	breakdown := input.HealthBreakdown
	if breakdown == nil {
		breakdown = &health.Breakdown{}
	}

	doc := healthDocument{
		DealID:             input.DealID,
		HealthScore:        input.HealthScore,
		StageProbability:   breakdown.StageProbability,
		Velocity:           breakdown.Velocity,
		ActivityRecency:    breakdown.ActivityRecency,
		CloseDateIntegrity: breakdown.CloseDateIntegrity,
		ACV:                breakdown.ACV,
		NotesSignal:        breakdown.NotesSignal,
		StageName:          input.StageName,
		ValueAmount:        input.ValueAmount,
		ComputedAt:         computedAt,
		IndexedAt:          indexedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, commonerrors.NewIndexingFailedError(err)
	}

	// One document per deal per computation instant; re-runs of the same
	// snapshot overwrite instead of duplicating.
	documentID := fmt.Sprintf("%s-%s", input.DealID, computedAt)

	if err := h.indexer.IndexDocument(ctx, h.config.IndexName, documentID, body); err != nil {
		return nil, commonerrors.NewIndexingFailedError(err)
	}

	h.logger.Info("health snapshot indexed", map[string]interface{}{
		"dealId":     input.DealID,
		"indexName":  h.config.IndexName,
		"documentId": documentID,
	})

	return &Output{
		DealID:     input.DealID,
		IndexName:  h.config.IndexName,
		DocumentID: documentID,
		IndexedAt:  indexedAt,
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

// Execute exposes the indexing logic for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
