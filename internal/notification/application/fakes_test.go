package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

// 测试替身：全部依赖的进程内实现。

type fakePrefs struct {
	mu      sync.Mutex
	enabled map[string]bool
	err     error
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{enabled: make(map[string]bool)}
}

func prefKey(recipientID string, kind domain.EventKind, channel domain.Channel) string {
	return fmt.Sprintf("%s|%s|%s", recipientID, kind, channel)
}

func (f *fakePrefs) enable(recipientID string, kind domain.EventKind, channel domain.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[prefKey(recipientID, kind, channel)] = true
}

func (f *fakePrefs) IsEnabled(_ context.Context, recipientID string, kind domain.EventKind, channel domain.Channel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.enabled[prefKey(recipientID, kind, channel)], nil
}

func (f *fakePrefs) Update(_ context.Context, p *domain.Preference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[prefKey(p.RecipientID, p.EventKind, p.Channel)] = p.Enabled
	return nil
}

func (f *fakePrefs) ListByRecipient(context.Context, string) ([]*domain.Preference, error) {
	return nil, nil
}

type enqueued struct {
	kind    string
	payload interface{}
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, kind string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueued{kind: kind, payload: payload})
	return nil
}

func (f *fakeQueue) all() []enqueued {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enqueued(nil), f.jobs...)
}

type fakeStore struct {
	mu        sync.Mutex
	appended  []*domain.Notification
	appendErr error
	nextID    uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 41}
}

func (f *fakeStore) Append(_ context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.nextID++
	n.ID = f.nextID
	f.appended = append(f.appended, n)
	return nil
}

func (f *fakeStore) records() []*domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.Notification(nil), f.appended...)
}

func (f *fakeStore) ListByRecipient(_ context.Context, recipientID string, _, _ int) ([]*domain.Notification, int64, error) {
	var res []*domain.Notification
	for _, n := range f.records() {
		if n.RecipientID == recipientID {
			res = append(res, n)
		}
	}
	return res, int64(len(res)), nil
}

func (f *fakeStore) ListUnread(_ context.Context, recipientID string) ([]*domain.Notification, error) {
	var res []*domain.Notification
	for _, n := range f.records() {
		if n.RecipientID == recipientID && !n.Read {
			res = append(res, n)
		}
	}
	return res, nil
}

func (f *fakeStore) MarkRead(_ context.Context, recipientID string, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.appended {
		if n.RecipientID == recipientID && n.ID == id {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeStore) MarkAllRead(_ context.Context, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.appended {
		if n.RecipientID == recipientID {
			n.Read = true
		}
	}
	return nil
}

type fakeRegistry struct {
	connID string
	online bool
	err    error
}

func (f *fakeRegistry) Resolve(context.Context, string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	return f.connID, f.online, nil
}

type sentFrame struct {
	connID  string
	event   string
	payload interface{}
}

type fakeTransport struct {
	mu    sync.Mutex
	sends []sentFrame
	err   error
}

func (f *fakeTransport) Send(_ context.Context, connID, event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, sentFrame{connID: connID, event: event, payload: payload})
	return nil
}

func (f *fakeTransport) all() []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentFrame(nil), f.sends...)
}

type fakeLookups struct {
	projects map[string]string
	issues   map[string]string
	accounts map[string]string
	err      error
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{
		projects: make(map[string]string),
		issues:   make(map[string]string),
		accounts: make(map[string]string),
	}
}

func (f *fakeLookups) ProjectName(_ context.Context, projectID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.projects[projectID], nil
}

func (f *fakeLookups) IssueTitle(_ context.Context, issueID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.issues[issueID], nil
}

func (f *fakeLookups) AccountIDByEmail(_ context.Context, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.accounts[email], nil
}

// recordingNotifier 记录每次调用
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) Notify(_ context.Context, recipientID string, _ domain.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recipientID)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// failingNotifier 总是返回错误
type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, string, domain.Payload) error {
	return fmt.Errorf("delivery blew up")
}

func kickedTexts() domain.Texts {
	return domain.Texts{
		Subject: "You have been removed",
		Body:    func(name string) string { return "<p>removed from " + name + "</p>" },
		Message: func(name string) string { return "You were removed from " + name },
	}
}
