// internal/workers/communication/notify-at-risk-deal/handler_test.go
package notifyatriskdeal

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "dealdesk-workers/internal/common/errors"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/common/validation"
	"dealdesk-workers/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

type mockContacts struct {
	owner *models.DealOwner
	err   error
}

func (m *mockContacts) GetOwnerContact(_ context.Context, _ string) (*models.DealOwner, error) {
	return m.owner, m.err
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		EmailEnabled: true,
		SMSEnabled:   true,
		FromEmail:    "alerts@dealdesk.io",
		AWSRegion:    "us-east-1",
		Timeout:      30 * time.Second,
	}
}

func testOwner(phone string) *models.DealOwner {
	return &models.DealOwner{
		ID:    "user-042",
		Name:  "Jordan Lee",
		Email: "jordan@dealdesk.io",
		Phone: phone,
	}
}

func createTestInput() *Input {
	return &Input{
		DealID:      "deal-001",
		DealName:    "Acme Expansion",
		HealthScore: 22,
		StageName:   "Contract Negotiations",
	}
}

func newTestHandler(t *testing.T, cfg *Config, contacts ContactResolver, sesMock SESService, snsMock SNSService) *Handler {
	return NewHandler(cfg, contacts, sesMock, snsMock, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestExecute_SendsOwnerEmail(t *testing.T) {
	sesMock := &MockSESService{}
	snsMock := &MockSNSService{}
	contacts := &mockContacts{owner: testOwner("")}
	handler := newTestHandler(t, createTestConfig(), contacts, sesMock, snsMock)

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, StatusSent, output.Status)
	assert.Equal(t, "deal-001", output.DealID)
	assert.NotEmpty(t, output.NotificationID)

	require.Len(t, sesMock.calls, 1)
	sent := sesMock.calls[0]
	assert.Equal(t, []string{"jordan@dealdesk.io"}, sent.Destination.ToAddresses)
	assert.Contains(t, *sent.Message.Subject.Data, "Acme Expansion")
	assert.Contains(t, *sent.Message.Subject.Data, "22")
	assert.Contains(t, *sent.Message.Body.Text.Data, "Jordan Lee")
	assert.Contains(t, *sent.Message.Body.Text.Data, "Contract Negotiations")
	assert.Empty(t, snsMock.calls)
}

func TestExecute_HighPrioritySendsSMS(t *testing.T) {
	sesMock := &MockSESService{}
	snsMock := &MockSNSService{}
	contacts := &mockContacts{owner: testOwner("+15550100")}
	handler := newTestHandler(t, createTestConfig(), contacts, sesMock, snsMock)

	input := createTestInput()
	input.Priority = "high"

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, StatusSent, output.Status)
	require.Len(t, snsMock.calls, 1)
	assert.Equal(t, "+15550100", *snsMock.calls[0].PhoneNumber)
}

func TestExecute_NormalPrioritySkipsSMS(t *testing.T) {
	sesMock := &MockSESService{}
	snsMock := &MockSNSService{}
	contacts := &mockContacts{owner: testOwner("+15550100")}
	handler := newTestHandler(t, createTestConfig(), contacts, sesMock, snsMock)

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, StatusSent, output.Status)
	assert.Empty(t, snsMock.calls)
}

func TestExecute_NoChannelsEnabledReportsDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.EmailEnabled = false
	cfg.SMSEnabled = false
	contacts := &mockContacts{owner: testOwner("")}
	handler := newTestHandler(t, cfg, contacts, &MockSESService{}, &MockSNSService{})

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, output.Status)
}

func TestExecute_MissingOwnerReportsDisabled(t *testing.T) {
	sesMock := &MockSESService{}
	contacts := &mockContacts{err: commonerrors.NewDealNotFoundError("deal-001")}
	handler := newTestHandler(t, createTestConfig(), contacts, sesMock, &MockSNSService{})

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, StatusDisabled, output.Status)
	assert.Empty(t, sesMock.calls)
}

func TestExecute_EmailFailureReportsFailed(t *testing.T) {
	sesMock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, assert.AnError
		},
	}
	contacts := &mockContacts{owner: testOwner("")}
	handler := newTestHandler(t, createTestConfig(), contacts, sesMock, &MockSNSService{})

	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, output.Status)
}

func TestExecute_SMSFailureReportsFailed(t *testing.T) {
	snsMock := &MockSNSService{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, assert.AnError
		},
	}
	contacts := &mockContacts{owner: testOwner("+15550100")}
	handler := newTestHandler(t, createTestConfig(), contacts, &MockSESService{}, snsMock)

	input := createTestInput()
	input.Priority = "high"

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, output.Status)
}

func TestExecute_FallsBackToDealIDWhenUnnamed(t *testing.T) {
	sesMock := &MockSESService{}
	contacts := &mockContacts{owner: testOwner("")}
	handler := newTestHandler(t, createTestConfig(), contacts, sesMock, &MockSNSService{})

	input := createTestInput()
	input.DealName = ""

	_, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, sesMock.calls, 1)
	assert.Contains(t, *sesMock.calls[0].Message.Subject.Data, "deal-001")
}

// ==========================
// Input Schema Tests
// ==========================

func TestInputSchema_RejectsMissingDealID(t *testing.T) {
	result, err := validation.ValidateInput(inputSchema, []byte(`{"healthScore": 22}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestInputSchema_RejectsUnknownPriority(t *testing.T) {
	result, err := validation.ValidateInput(inputSchema, []byte(`{"dealId":"deal-001","healthScore":22,"priority":"urgent"}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestInputSchema_AcceptsFullPayload(t *testing.T) {
	payload := []byte(`{
		"dealId": "deal-001",
		"dealName": "Acme Expansion",
		"healthScore": 22,
		"stageName": "Contract Negotiations",
		"priority": "high"
	}`)
	result, err := validation.ValidateInput(inputSchema, payload)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
