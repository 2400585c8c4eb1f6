package sync

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/utils"
)

type testEnv struct {
	engine     interfaces.MailService
	accounts   *fakeAccountRepo
	messages   *fakeMessageRepo
	threads    *fakeThreadRepo
	labels     *fakeLabelRepo
	syncStates *fakeSyncStateRepo
	drafts     *fakeDraftRepo
	dispatcher *recordingDispatcher
	provider   *scriptedProvider
}

func newTestEnv(t *testing.T, account *models.Account, provider *scriptedProvider, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts:   newFakeAccountRepo(account),
		messages:   newFakeMessageRepo(),
		threads:    newFakeThreadRepo(),
		labels:     newFakeLabelRepo(),
		syncStates: newFakeSyncStateRepo(),
		drafts:     newFakeDraftRepo(),
		dispatcher: &recordingDispatcher{},
		provider:   provider,
	}
	factory := func(a *models.Account, creds interfaces.CredentialProvider) (interfaces.MailProvider, error) {
		return provider, nil
	}
	env.engine = NewEngine(
		Deps{
			Accounts:   env.accounts,
			Messages:   env.messages,
			Threads:    env.threads,
			Labels:     env.labels,
			SyncStates: env.syncStates,
			Drafts:     env.drafts,
		},
		nil,
		env.dispatcher,
		factory,
		getLogger(),
		cfg,
	)
	return env
}

func testAccount() *models.Account {
	return &models.Account{
		ID:          "acct_1",
		Email:       "user@example.com",
		Provider:    enum.ProviderGeneric,
		SyncEnabled: true,
	}
}

func testMessage(id string, sentAt time.Time) *models.Message {
	return &models.Message{
		ID:          id,
		AccountID:   "acct_1",
		Provider:    enum.ProviderGeneric,
		ThreadID:    "thread_" + id,
		Subject:     "subject " + id,
		BodyText:    "body " + id,
		FromAddress: "sender@example.com",
		ToAddresses: []string{"user@example.com"},
		SentAt:      sentAt,
	}
}

func TestSyncNow_FullSyncOnEmptyCache(t *testing.T) {
	now := utils.Now()
	m1 := testMessage("m1", now)
	m2 := testMessage("m2", now.Add(-time.Hour))
	m3 := testMessage("m3", now.Add(-2*time.Hour))

	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		return []interfaces.SyncEvent{
			{Type: interfaces.SyncEventStarted},
			{Type: interfaces.SyncEventNewMessages, Messages: []*models.Message{m1, m2, m3}},
			{Type: interfaces.SyncEventProgress, Current: 3, Total: 3},
			{Type: interfaces.SyncEventCompleted, Cursor: "cursor-1"},
		}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	result, err := env.engine.SyncNow(context.Background(), "acct_1")
	require.NoError(t, err)

	assert.Equal(t, enum.SyncModeFull, result.Mode)
	assert.Equal(t, 3, result.NewMessages)
	assert.Equal(t, 0, result.UpdatedMessages)
	assert.Equal(t, "cursor-1", result.Cursor)

	state, err := env.syncStates.Get(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.NotNil(t, state.LastFullSync)
	assert.Equal(t, "cursor-1", state.Cursor)
	assert.Equal(t, 3, state.MessagesSynced)
	assert.Equal(t, 0, state.ConsecutiveErrors)
	assert.False(t, state.IsSyncing)
	assert.Equal(t, enum.SyncStatusIdle, state.Status)

	cached, err := env.messages.ListByAccount(context.Background(), "acct_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, cached, 3)
	assert.Equal(t, "m1", cached[0].ID)
	assert.Equal(t, "m2", cached[1].ID)
	assert.Equal(t, "m3", cached[2].ID)

	assert.NotEmpty(t, env.dispatcher.byType(interfaces.MailEventSyncStarted))
	assert.NotEmpty(t, env.dispatcher.byType(interfaces.MailEventSyncCompleted))
}

func TestSyncNow_IncrementalUpdatesAndDeletions(t *testing.T) {
	now := utils.Now()
	m1 := testMessage("m1", now)
	m2 := testMessage("m2", now.Add(-time.Hour))
	m3 := testMessage("m3", now.Add(-2*time.Hour))

	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		m2Read := *m2
		m2Read.IsRead = true
		return []interfaces.SyncEvent{
			{Type: interfaces.SyncEventStarted},
			{Type: interfaces.SyncEventUpdatedMessages, Messages: []*models.Message{&m2Read}},
			{Type: interfaces.SyncEventDeletedMessages, DeletedIDs: []string{"m3"}},
			{Type: interfaces.SyncEventCompleted, Cursor: "cursor-2"},
		}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	for _, m := range []*models.Message{m1, m2, m3} {
		_, err := env.messages.Upsert(context.Background(), m)
		require.NoError(t, err)
	}
	lastFull := now.Add(-time.Hour)
	require.NoError(t, env.syncStates.Save(context.Background(), &models.SyncState{
		AccountID:    "acct_1",
		Cursor:       "cursor-1",
		LastFullSync: &lastFull,
	}))

	result, err := env.engine.SyncNow(context.Background(), "acct_1")
	require.NoError(t, err)

	assert.Equal(t, enum.SyncModeIncremental, result.Mode)
	require.NotNil(t, provider.lastOpt)
	assert.Equal(t, "cursor-1", provider.lastOpt.Cursor)
	assert.Equal(t, 1, result.UpdatedMessages)
	assert.Equal(t, 1, result.DeletedMessages)

	m1After, _ := env.messages.GetByID(context.Background(), "acct_1", "m1")
	assert.False(t, m1After.IsRead)
	assert.False(t, m1After.IsDeleted)

	m2After, _ := env.messages.GetByID(context.Background(), "acct_1", "m2")
	assert.True(t, m2After.IsRead)

	// soft deleted, still present
	m3After, _ := env.messages.GetByID(context.Background(), "acct_1", "m3")
	require.NotNil(t, m3After)
	assert.True(t, m3After.IsDeleted)

	state, _ := env.syncStates.Get(context.Background(), "acct_1")
	assert.Equal(t, "cursor-2", state.Cursor)
}

func TestSyncNow_SingleFlight(t *testing.T) {
	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		return []interfaces.SyncEvent{{Type: interfaces.SyncEventCompleted}}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	require.NoError(t, env.syncStates.Save(context.Background(), &models.SyncState{
		AccountID:         "acct_1",
		IsSyncing:         true,
		Status:            enum.SyncStatusSyncing,
		ConsecutiveErrors: 2,
	}))

	result, err := env.engine.SyncNow(context.Background(), "acct_1")
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, apperrors.ErrSyncAlreadyRunning))

	// losing request must not mutate the state row
	state, _ := env.syncStates.Get(context.Background(), "acct_1")
	assert.True(t, state.IsSyncing)
	assert.Equal(t, 2, state.ConsecutiveErrors)
}

func TestSyncNow_ResumableAfterPageFailure(t *testing.T) {
	now := utils.Now()
	m1 := testMessage("m1", now)
	m2 := testMessage("m2", now.Add(-time.Hour))

	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		return []interfaces.SyncEvent{
			{Type: interfaces.SyncEventStarted},
			{Type: interfaces.SyncEventNewMessages, Messages: []*models.Message{m1, m2}},
			{Type: interfaces.SyncEventError, Err: apperrors.New(apperrors.KindNetwork, "connection reset")},
		}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	lastFull := now.Add(-time.Hour)
	require.NoError(t, env.syncStates.Save(context.Background(), &models.SyncState{
		AccountID:    "acct_1",
		Cursor:       "cursor-1",
		LastFullSync: &lastFull,
	}))

	_, err := env.engine.SyncNow(context.Background(), "acct_1")
	require.Error(t, err)

	// pages reconciled before the failure are kept
	cached, _ := env.messages.ListByAccount(context.Background(), "acct_1", 10, 0)
	assert.Len(t, cached, 2)

	state, _ := env.syncStates.Get(context.Background(), "acct_1")
	assert.Equal(t, "cursor-1", state.Cursor, "cursor must not advance on failure")
	assert.Equal(t, 1, state.ConsecutiveErrors)
	assert.Equal(t, 1, state.ErrorsCount)
	assert.False(t, state.IsSyncing)
	assert.Equal(t, enum.SyncStatusFailed, state.Status)
	assert.NotNil(t, state.LastErrorAt)
	require.NotNil(t, state.NextAttemptAt)
	assert.True(t, state.NextAttemptAt.After(utils.Now()))

	assert.NotEmpty(t, env.dispatcher.byType(interfaces.MailEventSyncFailed))
}

func TestSyncNow_RetryAfterHintOverridesBackoff(t *testing.T) {
	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		return []interfaces.SyncEvent{
			{Type: interfaces.SyncEventStarted},
			{Type: interfaces.SyncEventError, Err: apperrors.RateLimited(10 * time.Minute)},
		}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	before := utils.Now()
	_, err := env.engine.SyncNow(context.Background(), "acct_1")
	require.Error(t, err)

	state, _ := env.syncStates.Get(context.Background(), "acct_1")
	require.NotNil(t, state.NextAttemptAt)
	// hint of 10m wins over the 30s computed backoff
	assert.True(t, state.NextAttemptAt.After(before.Add(9*time.Minute)))
}

func TestSyncNow_NonRetryableErrorSkipsBackoff(t *testing.T) {
	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		return []interfaces.SyncEvent{
			{Type: interfaces.SyncEventStarted},
			{Type: interfaces.SyncEventError, Err: apperrors.New(apperrors.KindAuthentication, "bad credentials")},
		}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	_, err := env.engine.SyncNow(context.Background(), "acct_1")
	require.Error(t, err)

	state, _ := env.syncStates.Get(context.Background(), "acct_1")
	assert.Nil(t, state.NextAttemptAt)
	assert.Equal(t, 1, state.ConsecutiveErrors)
}

func TestSyncNow_DeferredWhileBackoffPending(t *testing.T) {
	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		t.Fatal("provider must not be called while the backoff window is open")
		return nil
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	next := utils.Now().Add(30 * time.Minute)
	require.NoError(t, env.syncStates.Save(context.Background(), &models.SyncState{
		AccountID:     "acct_1",
		Cursor:        "cursor-1",
		NextAttemptAt: &next,
	}))

	_, err := env.engine.SyncNow(context.Background(), "acct_1")
	assert.True(t, errors.Is(err, apperrors.ErrSyncDeferred))

	// the rejected attempt releases the in-flight flag
	state, _ := env.syncStates.Get(context.Background(), "acct_1")
	assert.False(t, state.IsSyncing)
}

func TestSyncNow_FullSyncDetectsRemoteDeletions(t *testing.T) {
	now := utils.Now()
	m1 := testMessage("m1", now)
	m2 := testMessage("m2", now.Add(-time.Hour))

	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent {
		return []interfaces.SyncEvent{
			{Type: interfaces.SyncEventStarted},
			{Type: interfaces.SyncEventNewMessages, Messages: []*models.Message{m1}},
			{Type: interfaces.SyncEventCompleted, Cursor: "cursor-1"},
		}
	})
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	for _, m := range []*models.Message{m1, m2} {
		_, err := env.messages.Upsert(context.Background(), m)
		require.NoError(t, err)
	}

	result, err := env.engine.SyncNow(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, enum.SyncModeFull, result.Mode)
	assert.Equal(t, 1, result.DeletedMessages)

	m2After, _ := env.messages.GetByID(context.Background(), "acct_1", "m2")
	require.NotNil(t, m2After)
	assert.True(t, m2After.IsDeleted)

	m1After, _ := env.messages.GetByID(context.Background(), "acct_1", "m1")
	assert.False(t, m1After.IsDeleted)
}

func TestSyncNow_UnknownAccount(t *testing.T) {
	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent { return nil })
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	_, err := env.engine.SyncNow(context.Background(), "acct_missing")
	assert.True(t, errors.Is(err, apperrors.ErrAccountNotFound))
}

func TestDecideMode(t *testing.T) {
	e := &engine{cfg: DefaultConfig().normalized()}
	now := utils.Now()
	recent := now.Add(-time.Hour)
	stale := now.Add(-48 * time.Hour)

	cases := []struct {
		name  string
		state models.SyncState
		want  enum.SyncMode
	}{
		{"no cursor", models.SyncState{}, enum.SyncModeFull},
		{"cursor but never full synced", models.SyncState{Cursor: "c"}, enum.SyncModeFull},
		{"stale full sync", models.SyncState{Cursor: "c", LastFullSync: &stale}, enum.SyncModeFull},
		{"too many consecutive errors", models.SyncState{Cursor: "c", LastFullSync: &recent, ConsecutiveErrors: 3}, enum.SyncModeFull},
		{"healthy", models.SyncState{Cursor: "c", LastFullSync: &recent}, enum.SyncModeIncremental},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.decideMode(&tc.state))
		})
	}
}

func TestBackoffFor(t *testing.T) {
	cfg := DefaultConfig().normalized()

	assert.Equal(t, 30*time.Second, cfg.backoffFor(1, 0))
	assert.Equal(t, time.Minute, cfg.backoffFor(2, 0))
	assert.Equal(t, 2*time.Minute, cfg.backoffFor(3, 0))
	// capped at the maximum
	assert.Equal(t, time.Hour, cfg.backoffFor(20, 0))
	// server hint wins when longer
	assert.Equal(t, 10*time.Minute, cfg.backoffFor(1, 10*time.Minute))
	// but not when shorter than computed backoff
	assert.Equal(t, 2*time.Minute, cfg.backoffFor(3, time.Second))
}

func TestSendDraft(t *testing.T) {
	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent { return nil })
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	draft := &models.Draft{
		ID:          "draft_1",
		AccountID:   "acct_1",
		ToAddresses: []string{"to@example.com"},
		Subject:     "hello",
		BodyText:    "hi there",
	}
	require.NoError(t, env.drafts.Save(context.Background(), draft))

	messageID, err := env.engine.SendDraft(context.Background(), "acct_1", "draft_1")
	require.NoError(t, err)
	assert.Equal(t, "sent_draft_1", messageID)

	// sent draft is removed
	gone, _ := env.drafts.GetByID(context.Background(), "draft_1")
	assert.Nil(t, gone)
}

func TestMarkAsRead_MirrorsLocally(t *testing.T) {
	now := utils.Now()
	m1 := testMessage("m1", now)

	provider := newScriptedProvider(func(options interfaces.SyncOptions) []interfaces.SyncEvent { return nil })
	env := newTestEnv(t, testAccount(), provider, DefaultConfig())

	_, err := env.messages.Upsert(context.Background(), m1)
	require.NoError(t, err)

	require.NoError(t, env.engine.MarkAsRead(context.Background(), "acct_1", []string{"m1"}, true))

	after, _ := env.messages.GetByID(context.Background(), "acct_1", "m1")
	assert.True(t, after.IsRead)
}
