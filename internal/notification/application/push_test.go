package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/issuetracking/internal/notification/domain"
)

func pushDeps(prefs *fakePrefs, store *fakeStore, reg *fakeRegistry, tr *fakeTransport, lookups *fakeLookups) PushDeps {
	return PushDeps{
		Prefs:     prefs,
		Accounts:  lookups,
		Store:     store,
		Registry:  reg,
		Transport: tr,
		Projects:  lookups,
		Issues:    lookups,
	}
}

func onlineSetup() (*fakePrefs, *fakeStore, *fakeRegistry, *fakeTransport, *fakeLookups) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventKicked, domain.ChannelPush)
	lookups := newFakeLookups()
	lookups.projects["p1"] = "Apollo"
	lookups.accounts[recipient] = "acc-7"
	return prefs, newFakeStore(), &fakeRegistry{connID: "c1", online: true}, &fakeTransport{}, lookups
}

func TestPushNotifierStoresThenTransmits(t *testing.T) {
	prefs, store, reg, tr, lookups := onlineSetup()
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	records := store.records()
	require.Len(t, records, 1)
	assert.Equal(t, "acc-7", records[0].RecipientID)
	assert.Equal(t, domain.EventKicked, records[0].EventKind)
	assert.Equal(t, "You were removed from Apollo", records[0].Message)
	assert.Equal(t, domain.Metadata{"project_id": "p1"}, records[0].Metadata)
	assert.NotZero(t, records[0].ID)
	assert.False(t, records[0].Read)

	sends := tr.all()
	require.Len(t, sends, 1)
	assert.Equal(t, "c1", sends[0].connID)
	assert.Equal(t, domain.PushEventName, sends[0].event)

	sent, ok := sends[0].payload.(*domain.Notification)
	require.True(t, ok)
	assert.Equal(t, records[0].ID, sent.ID)
}

func TestPushNotifierOfflineStoresOnly(t *testing.T) {
	prefs, store, _, tr, lookups := onlineSetup()
	reg := &fakeRegistry{online: false}
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Len(t, store.records(), 1)
	assert.Empty(t, tr.all())
}

func TestPushNotifierAppendFailureSkipsTransmit(t *testing.T) {
	prefs, store, reg, tr, lookups := onlineSetup()
	store.appendErr = errors.New("disk full")
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, store.records())
	assert.Empty(t, tr.all())
}

func TestPushNotifierTransmitFailureKeepsRecord(t *testing.T) {
	prefs, store, reg, tr, lookups := onlineSetup()
	tr.err = errors.New("socket gone")
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Len(t, store.records(), 1)
}

func TestPushNotifierDisabledPreferenceSkips(t *testing.T) {
	_, store, reg, tr, lookups := onlineSetup()
	n := NewKickedPush(pushDeps(newFakePrefs(), store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, store.records())
	assert.Empty(t, tr.all())
}

func TestPushNotifierPreferenceErrorFailsClosed(t *testing.T) {
	prefs, store, reg, tr, lookups := onlineSetup()
	prefs.err = errors.New("preference store down")
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, store.records())
}

func TestPushNotifierUnknownAccountSkips(t *testing.T) {
	prefs, store, reg, tr, lookups := onlineSetup()
	delete(lookups.accounts, recipient)
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Empty(t, store.records())
	assert.Empty(t, tr.all())
}

func TestPushNotifierResolveErrorKeepsRecord(t *testing.T) {
	prefs, store, _, tr, lookups := onlineSetup()
	reg := &fakeRegistry{err: errors.New("redis timeout")}
	n := NewKickedPush(pushDeps(prefs, store, reg, tr, lookups))

	require.NoError(t, n.Notify(context.Background(), recipient, kickedPayload()))

	assert.Len(t, store.records(), 1)
	assert.Empty(t, tr.all())
}

func TestPushNotifierIssueAssignedMetadata(t *testing.T) {
	prefs := newFakePrefs()
	prefs.enable(recipient, domain.EventIssueAssigned, domain.ChannelPush)
	lookups := newFakeLookups()
	lookups.issues["i9"] = "Fix login loop"
	lookups.accounts[recipient] = "acc-7"
	store := newFakeStore()
	tr := &fakeTransport{}
	n := NewIssueAssignedPush(pushDeps(prefs, store, &fakeRegistry{connID: "c1", online: true}, tr, lookups))

	texts := domain.Texts{
		Subject: "Issue assigned",
		Body:    func(s string) string { return s },
		Message: func(s string) string { return "Assigned: " + s },
	}
	require.NoError(t, n.Notify(context.Background(), recipient, domain.IssueAssignedPayload{IssueID: "i9", Texts: texts}))

	records := store.records()
	require.Len(t, records, 1)
	assert.Equal(t, "Assigned: Fix login loop", records[0].Message)
	assert.Equal(t, domain.Metadata{"issue_id": "i9"}, records[0].Metadata)
}
