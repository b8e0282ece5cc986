package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type SentMail struct {
	To      string
	Subject string
	Body    string
}

// MailRecorder is a mail sender that keeps every message in memory.
type MailRecorder struct {
	mu   sync.Mutex
	sent []SentMail
	Err  error
}

func (r *MailRecorder) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (r *MailRecorder) Last() (SentMail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return SentMail{}, false
	}
	return r.sent[len(r.sent)-1], true
}

func (r *MailRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
