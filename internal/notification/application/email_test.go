package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

const recipient = "user@example.com"

func kickedPayload() domain.KickedPayload {
	return domain.KickedPayload{ProjectID: "p1", Texts: kickedTexts()}
}

func TestEmailNotifierEnqueuesJob(t *testing.T) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventKicked, domain.ChannelEmail)
	queue := &fakeQueue{}
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"

	n := NewKickedEmail(prefs, queue, lookups, nil)
	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, "notification.email.kicked", jobs[0].kind)

	job, ok := jobs[0].payload.(*domain.EmailJob)
	require.True(t, ok)
	assert.Equal(t, recipient, job.To)
	assert.Equal(t, "You have been removed", job.Subject)
	assert.Equal(t, "<p>removed from Apollo</p>", job.HTML)
}

func TestEmailNotifierDisabledPreferenceSkips(t *testing.T) {
	prefs := newFakePrefs()
	queue := &fakeQueue{}
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"

	n := NewKickedEmail(prefs, queue, lookups, nil)
	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, queue.all())
}

func TestEmailNotifierPreferenceErrorFailsClosed(t *testing.T) {
	prefs := newFakePrefs()
	prefs.err = errors.New("preference store down")
	queue := &fakeQueue{}
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"

	n := NewKickedEmail(prefs, queue, lookups, nil)
	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, queue.all())
}

func TestEmailNotifierProjectGoneSkipsSilently(t *testing.T) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventKicked, domain.ChannelEmail)
	queue := &fakeQueue{}

	n := NewKickedEmail(prefs, queue, newFakeLookups(), nil)
	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, queue.all())
}

func TestEmailNotifierEnqueueFailureIsSwallowed(t *testing.T) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventKicked, domain.ChannelEmail)
	queue := &fakeQueue{err: errors.New("broker unreachable")}
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"

	n := NewKickedEmail(prefs, queue, lookups, nil)
	assert.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))
}

func TestEmailNotifierWrongPayloadTypeIsSwallowed(t *testing.T) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventKicked, domain.ChannelEmail)
	queue := &fakeQueue{}
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"

	n := NewKickedEmail(prefs, queue, lookups, nil)
	err := n.Notify(context.Background(), recipient, domain.InvitationPayload{ProjectID: "p1", Texts: kickedTexts()})

	assert.NoError(t, err)
	assert.Empty(t, queue.all())
}

func TestEmailNotifierProjectDeletedUsesCarriedName(t *testing.T) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventProjectDeleted, domain.ChannelEmail)
	queue := &fakeQueue{}

	n := NewProjectDeletedEmail(prefs, queue, nil)
	err := n.Notify(context.Background(), recipient, domain.ProjectDeletedPayload{
		ProjectName: "Apollo",
		Texts:       kickedTexts(),
	})
	require.NoError(t, err)

	jobs := queue.all()
	require.Len(t, jobs, 1)
	job := jobs[0].payload.(*domain.EmailJob)
	assert.Equal(t, "<p>removed from Apollo</p>", job.HTML)
}
