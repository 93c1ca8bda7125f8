package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

func TestDispatcherCallsEveryMember(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	d := NewDispatcher(domain.EventKicked, first, second)

	err := d.Notify(context.Background(), "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestDispatcherMemberFailureDoesNotBlockOthers(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(domain.EventKicked, failingNotifier{}, rec)

	err := d.Notify(context.Background(), "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, rec.count())
}

func TestBackgroundDispatchRunsAndDrains(t *testing.T) {
	b := NewBackground()
	rec := &recordingNotifier{}

	b.Dispatch(context.Background(), rec, "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})
	b.Close()

	assert.Equal(t, 1, rec.count())
}

func TestBackgroundDropsAfterClose(t *testing.T) {
	b := NewBackground()
	b.Close()

	rec := &recordingNotifier{}
	b.Dispatch(context.Background(), rec, "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})

	assert.Equal(t, 0, rec.count())
}

func TestBackgroundSurvivesCancelledTrigger(t *testing.T) {
	b := NewBackground()
	rec := &recordingNotifier{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Dispatch(ctx, rec, "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})
	b.Close()

	assert.Equal(t, 1, rec.count())
}

type panickyNotifier struct{}

func (panickyNotifier) Notify(context.Context, string, domain.Payload) error {
	panic("channel exploded")
}

func TestBackgroundRecoversPanic(t *testing.T) {
	b := NewBackground()

	b.Dispatch(context.Background(), panickyNotifier{}, "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after panicking dispatch")
	}
}

func TestServiceDispatcherUnknownKind(t *testing.T) {
	svc := NewNotificationService(Deps{
		Prefs:    newFakePrefs(),
		Queue:    &fakeQueue{},
		Store:    newFakeStore(),
		Registry: &fakeRegistry{},
	})
	defer svc.Close()

	_, err := svc.Dispatcher(domain.EventKind("BOGUS"))
	assert.Error(t, err)
}

func TestServiceDispatchKickedPushOnlyAppendsWithoutEnqueue(t *testing.T) {
	prefs := newFakePrefs()
	queue := &fakeQueue{}
	store := newFakeStore()
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"
	lookups.accounts["user@example.com"] = "acc-7"

	// 只开推送，邮件保持关闭
	prefs.enable("user@example.com", domain.EventKicked, domain.ChannelPush)

	svc := NewNotificationService(Deps{
		Store:     store,
		Prefs:     prefs,
		Queue:     queue,
		Registry:  &fakeRegistry{online: false},
		Transport: &fakeTransport{},
		Projects:  lookups,
		Issues:    lookups,
		Accounts:  lookups,
	})

	err := svc.Dispatch(context.Background(), "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})
	require.NoError(t, err)
	svc.Close()

	assert.Len(t, store.records(), 1)
	assert.Empty(t, queue.all())
}

func TestServiceDispatchKickedReachesBothChannels(t *testing.T) {
	prefs := newFakePrefs()
	queue := &fakeQueue{}
	store := newFakeStore()
	transport := &fakeTransport{}
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"
	lookups.accounts["user@example.com"] = "acc-7"

	prefs.enable("user@example.com", domain.EventKicked, domain.ChannelEmail)
	prefs.enable("user@example.com", domain.EventKicked, domain.ChannelPush)

	svc := NewNotificationService(Deps{
		Store:     store,
		Prefs:     prefs,
		Queue:     queue,
		Registry:  &fakeRegistry{connID: "c1", online: true},
		Transport: transport,
		Projects:  lookups,
		Issues:    lookups,
		Accounts:  lookups,
	})

	err := svc.Dispatch(context.Background(), "user@example.com", domain.KickedPayload{
		ProjectID: "p1",
		Texts:     kickedTexts(),
	})
	require.NoError(t, err)
	svc.Close()

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "notification.email.kicked", jobs[0].kind)

	records := store.records()
	require.Len(t, records, 1)
	assert.Equal(t, "acc-7", records[0].RecipientID)

	sends := transport.all()
	require.Len(t, sends, 1)
	assert.Equal(t, domain.PushEventName, sends[0].event)
}
