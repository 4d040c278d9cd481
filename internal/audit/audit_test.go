package audit

import (
	"context"
	"errors"
	"testing"

	"loan-underwriting/internal/common/database"
	"loan-underwriting/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Record(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendEmail(ctx context.Context, in *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*ses.SendEmailOutput)
	return out, args.Error(1)
}

type fakeIndexer struct {
	index, id string
	body      []byte
}

func (f *fakeIndexer) IndexDocument(_ context.Context, index, id string, body []byte) error {
	f.index, f.id, f.body = index, id, body
	return nil
}

func decisionEvent(recommendation string) Event {
	return NewEvent("run-1", "tx-1", EventDecisionProduced, "", "decision produced", map[string]interface{}{
		"recommendation":  recommendation,
		"confidence":      0.6,
		"requiredActions": []string{"Senior underwriter review"},
	})
}

// ==========================
//  Event & Emitter
// ==========================

func TestNewEvent(t *testing.T) {
	e := NewEvent("run-1", "tx-1", EventTaskStarted, "credit-analysis", "task started", nil)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventTaskStarted, e.Kind)
	assert.Equal(t, "credit-analysis", e.TaskID)
	assert.False(t, e.At.IsZero())

	other := NewEvent("run-1", "tx-1", EventTaskStarted, "credit-analysis", "task started", nil)
	assert.NotEqual(t, e.ID, other.ID)
}

func TestEmitter_SinkFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := &recordingSink{err: errors.New("disk full")}
	em := NewEmitter(sink, logger.NewZapAdapter(zap.New(core)))

	assert.NotPanics(t, func() {
		em.Emit(context.Background(), NewEvent("run-1", "tx-1", EventTaskFailed, "lien-search", "task failed", nil))
	})
	require.Len(t, sink.events, 1)

	entries := logs.FilterMessage("audit sink failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "task_failed", entries[0].ContextMap()["eventKind"])
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	assert.NotPanics(t, func() { em.Emit(context.Background(), Event{}) })
	assert.NotPanics(t, func() { NewEmitter(nil, nil).Emit(context.Background(), Event{}) })
}

func TestMultiSink_DeliversToAllAndJoinsErrors(t *testing.T) {
	first := &recordingSink{err: errors.New("boom")}
	second := &recordingSink{}
	m := NewMultiSink().Add("first", first).Add("second", second)

	err := m.Record(context.Background(), Event{Kind: EventTaskCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first: boom")
	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
	assert.Equal(t, 2, m.Len())
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(logger.NewZapAdapter(zap.New(core)))

	require.NoError(t, s.Record(context.Background(), NewEvent("run-1", "tx-1", EventTaskCompleted, "credit-analysis", "task completed", nil)))
	entries := logs.FilterMessage("task completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "credit-analysis", entries[0].ContextMap()["taskId"])
	assert.Equal(t, "audit-log", entries[0].ContextMap()["component"])
}

// ==========================
//  Postgres & Elasticsearch
// ==========================

func TestPostgresSink_Record(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := NewEvent("run-1", "tx-1", EventTaskFailed, "credit-analysis", "task failed", map[string]interface{}{"notes": "bureau down"})
	sqlMock.ExpectExec("INSERT INTO underwriting_audit_events").
		WithArgs(e.ID, "run-1", "tx-1", "task_failed", sqlmock.AnyArg(), "task failed", sqlmock.AnyArg(), e.At).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink := NewPostgresSink(&database.PostgresClient{DB: db})
	require.NoError(t, sink.Record(context.Background(), e))
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestPostgresSink_RecordError(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlMock.ExpectExec("INSERT INTO underwriting_audit_events").WillReturnError(errors.New("connection reset"))

	sink := NewPostgresSink(&database.PostgresClient{DB: db})
	err = sink.Record(context.Background(), NewEvent("run-1", "tx-1", EventRunCancelled, "", "run cancelled", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestElasticsearchSink_Record(t *testing.T) {
	idx := &fakeIndexer{}
	sink := NewElasticsearchSink(idx, "underwriting-audit")

	e := NewEvent("run-1", "tx-1", EventTaskStarted, "dti-calculation", "task started", nil)
	require.NoError(t, sink.Record(context.Background(), e))

	assert.Equal(t, "underwriting-audit", idx.index)
	assert.Equal(t, e.ID, idx.id)
	assert.Contains(t, string(idx.body), `"kind":"task_started"`)
}

// ==========================
//  SNS & SES
// ==========================

func TestSNSSink_PublishesOnlyRunOutcomes(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.TopicArn == "arn:aws:sns:us-east-1:123:underwriting" &&
			*in.MessageAttributes["kind"].StringValue == "decision_produced"
	})).Return(&sns.PublishOutput{}, nil).Once()

	sink := NewSNSSink(pub, "arn:aws:sns:us-east-1:123:underwriting")

	require.NoError(t, sink.Record(context.Background(), NewEvent("run-1", "tx-1", EventTaskStarted, "x", "", nil)))
	require.NoError(t, sink.Record(context.Background(), decisionEvent("approve")))
	pub.AssertExpectations(t)
}

func TestSNSSink_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewSNSSink(pub, "arn").Record(context.Background(), decisionEvent("decline"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSESNotifier(t *testing.T) {
	tests := []struct {
		recommendation string
		wantEmail      bool
	}{
		{"review_required", true},
		{"conditional", true},
		{"approve", false},
		{"decline", false},
	}

	for _, tt := range tests {
		t.Run(tt.recommendation, func(t *testing.T) {
			mailer := new(mockMailer)
			if tt.wantEmail {
				mailer.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
					return *in.Source == "uw@example.com" &&
						assert.ObjectsAreEqual([]string{"desk@example.com"}, in.Destination.ToAddresses)
				})).Return(&ses.SendEmailOutput{}, nil).Once()
			}

			n := NewSESNotifier(mailer, "uw@example.com", []string{"desk@example.com"})
			require.NoError(t, n.Record(context.Background(), decisionEvent(tt.recommendation)))
			mailer.AssertExpectations(t)
			if !tt.wantEmail {
				mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestDecisionEmailBody(t *testing.T) {
	body := decisionEmailBody(decisionEvent("review_required"))
	assert.Contains(t, body, "Transaction: tx-1")
	assert.Contains(t, body, "requiredActions:")
	assert.Contains(t, body, "  - Senior underwriter review")
}
