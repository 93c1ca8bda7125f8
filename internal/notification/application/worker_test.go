package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
	"github.com/wyfcoding/issuetracking/pkg/jobqueue"
	"github.com/wyfcoding/issuetracking/pkg/mq"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []domain.EmailJob
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, domain.EmailJob{To: to, Subject: subject, HTML: html})
	return nil
}

func (f *fakeSender) all() []domain.EmailJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.EmailJob(nil), f.sent...)
}

func emailMessage(t *testing.T, job domain.EmailJob) *mq.Message {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return &mq.Message{Topic: "notification.email.kicked", Key: "k1", Value: data}
}

func TestRegisterEmailHandlersCoversAllKinds(t *testing.T) {
	q := jobqueue.New(nil, nil)
	require.NoError(t, RegisterEmailHandlers(q, &fakeSender{}))

	for _, kind := range domain.EventKinds() {
		err := q.Register(domain.EmailJobKind(kind), func(context.Context, *mq.Message) error { return nil })
		assert.Error(t, err, "expected handler already registered for %s", kind)
	}
}

func TestEmailHandlerSendsJob(t *testing.T) {
	s := &fakeSender{}
	h := emailHandler(s)

	job := domain.EmailJob{To: "user@example.com", Subject: "Hi", HTML: "<p>hi</p>"}
	require.NoError(t, h(context.Background(), emailMessage(t, job)))

	sent := s.all()
	require.Len(t, sent, 1)
	assert.Equal(t, job, sent[0])
}

func TestEmailHandlerRedeliveryIsHarmless(t *testing.T) {
	s := &fakeSender{}
	h := emailHandler(s)
	msg := emailMessage(t, domain.EmailJob{To: "user@example.com", Subject: "Hi", HTML: "<p>hi</p>"})

	require.NoError(t, h(context.Background(), msg))
	require.NoError(t, h(context.Background(), msg))

	assert.Len(t, s.all(), 2)
}

func TestEmailHandlerPoisonMessageFails(t *testing.T) {
	h := emailHandler(&fakeSender{})
	err := h(context.Background(), &mq.Message{Topic: "notification.email.kicked", Value: []byte("{not json")})
	assert.Error(t, err)
}

func TestEmailHandlerPropagatesSendFailure(t *testing.T) {
	s := &fakeSender{err: errors.New("smtp refused")}
	h := emailHandler(s)

	err := h(context.Background(), emailMessage(t, domain.EmailJob{To: "user@example.com"}))
	assert.Error(t, err)
}
