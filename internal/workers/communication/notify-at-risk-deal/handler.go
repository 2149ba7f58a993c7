// internal/workers/communication/notify-at-risk-deal/handler.go
package notifyatriskdeal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	commonerrors "dealdesk-workers/internal/common/errors"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/common/metrics"
	"dealdesk-workers/internal/common/validation"
	"dealdesk-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "notify-at-risk-deal"
)

// Interfaces kept narrow for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ContactResolver maps a deal to its owner's contact details.
type ContactResolver interface {
	GetOwnerContact(ctx context.Context, dealID string) (*models.DealOwner, error)
}

type Handler struct {
	config    *Config
	contacts  ContactResolver
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewHandler(config *Config, contacts ContactResolver, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		contacts:  contacts,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, string(commonerrors.ErrCodeNotificationFailed), err.Error())
		return
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(started).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	sentAt := time.Now().UTC().Format(time.RFC3339)
	notificationID := uuid.New().String()

	owner, err := h.contacts.GetOwnerContact(ctx, input.DealID)
	if err != nil {
		// A deal without a resolvable owner is a data problem, not a send
		// problem; report disabled instead of retrying forever.
		h.logger.Warn("owner contact not found", map[string]interface{}{
			"dealId": input.DealID,
			"error":  err,
		})
		return &Output{
			NotificationID: notificationID,
			DealID:         input.DealID,
			Status:         StatusDisabled,
			SentAt:         sentAt,
		}, nil
	}

	subject, body := h.renderMessage(input, owner.Name)

	emailSent := false
	smsSent := false

	if h.config.EmailEnabled && owner.Email != "" {
		if err := h.sendEmail(ctx, owner.Email, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error": err,
				"email": owner.Email,
			})
			return &Output{NotificationID: notificationID, DealID: input.DealID, Status: StatusFailed, SentAt: sentAt}, nil
		}
		emailSent = true
	}

	if h.config.SMSEnabled && owner.Phone != "" && input.Priority == "high" {
		if err := h.sendSMS(ctx, owner.Phone, body); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error": err,
				"phone": owner.Phone,
			})
			return &Output{NotificationID: notificationID, DealID: input.DealID, Status: StatusFailed, SentAt: sentAt}, nil
		}
		smsSent = true
	}

	status := StatusDisabled
	if emailSent || smsSent {
		status = StatusSent
	}

	h.logger.Info("at-risk notification processed", map[string]interface{}{
		"dealId":    input.DealID,
		"status":    status,
		"emailSent": emailSent,
		"smsSent":   smsSent,
	})

	return &Output{
		NotificationID: notificationID,
		DealID:         input.DealID,
		Status:         status,
		SentAt:         sentAt,
	}, nil
}

func (h *Handler) renderMessage(input *Input, ownerName string) (subject, body string) {
	dealLabel := input.DealName
	if dealLabel == "" {
		dealLabel = input.DealID
	}

	subject = fmt.Sprintf("Deal at risk: %s (health %d)", dealLabel, input.HealthScore)

	body = fmt.Sprintf("Hi %s,\n\nDeal %q has dropped to a health score of %d", ownerName, dealLabel, input.HealthScore)
	if input.StageName != "" {
		body += fmt.Sprintf(" in stage %q", input.StageName)
	}
	body += ".\n\nReview recent activity and the close date before the next pipeline sweep."
	return subject, body
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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

// Execute exposes the notification logic for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
