package sync

import (
	"context"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/logger"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/utils"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// ---- account repository ----

type fakeAccountRepo struct {
	accounts map[string]*models.Account
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{accounts: map[string]*models.Account{}}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *models.Account) error {
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAccountRepo) ListSyncEnabled(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if a.SyncEnabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) Delete(ctx context.Context, id string) error {
	delete(r.accounts, id)
	return nil
}

// ---- message repository ----

type fakeMessageRepo struct {
	mu   gosync.Mutex
	rows map[string]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: map[string]*models.Message{}}
}

func messageKey(accountID, id string) string {
	return accountID + "|" + id
}

func copyMessage(m *models.Message) *models.Message {
	clone := *m
	return &clone
}

func (r *fakeMessageRepo) Upsert(ctx context.Context, message *models.Message) (interfaces.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := messageKey(message.AccountID, message.ID)
	_, exists := r.rows[key]
	r.rows[key] = copyMessage(message)
	if exists {
		return interfaces.UpsertUpdated, nil
	}
	return interfaces.UpsertInserted, nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, accountID, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.rows[messageKey(accountID, id)]; ok {
		return copyMessage(m), nil
	}
	return nil, nil
}

func (r *fakeMessageRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.rows {
		if m.AccountID == accountID && !m.IsDeleted {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) ListByThread(ctx context.Context, accountID, threadID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.rows {
		if m.AccountID == accountID && m.ThreadID == threadID && !m.IsDeleted {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (r *fakeMessageRepo) ListIDsByAccount(ctx context.Context, accountID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.rows {
		if m.AccountID == accountID && !m.IsDeleted {
			out = append(out, m.ID)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Search(ctx context.Context, accountID, query string, limit, offset int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(query)
	var out []*models.Message
	for _, m := range r.rows {
		if m.AccountID != accountID || m.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(m.Subject), needle) || strings.Contains(strings.ToLower(m.BodyText), needle) {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkDeleted(ctx context.Context, accountID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if m, ok := r.rows[messageKey(accountID, id)]; ok {
			m.IsDeleted = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.rows {
		if m.AccountID == accountID && !m.IsDeleted {
			count++
		}
	}
	return count, nil
}

// ---- thread repository ----

type fakeThreadRepo struct {
	mu   gosync.Mutex
	rows map[string]*models.Thread
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{rows: map[string]*models.Thread{}}
}

func (r *fakeThreadRepo) Upsert(ctx context.Context, thread *models.Thread) (interfaces.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := thread.AccountID + "|" + thread.ID
	_, exists := r.rows[key]
	clone := *thread
	r.rows[key] = &clone
	if exists {
		return interfaces.UpsertUpdated, nil
	}
	return interfaces.UpsertInserted, nil
}

func (r *fakeThreadRepo) GetByID(ctx context.Context, accountID, id string) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.rows[accountID+"|"+id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeThreadRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Thread
	for _, t := range r.rows {
		if t.AccountID == accountID {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

// ---- label repository ----

type fakeLabelRepo struct {
	rows map[string]*models.Label
}

func newFakeLabelRepo() *fakeLabelRepo {
	return &fakeLabelRepo{rows: map[string]*models.Label{}}
}

func (r *fakeLabelRepo) Upsert(ctx context.Context, label *models.Label) (interfaces.UpsertResult, error) {
	_, exists := r.rows[label.ID]
	clone := *label
	r.rows[label.ID] = &clone
	if exists {
		return interfaces.UpsertUpdated, nil
	}
	return interfaces.UpsertInserted, nil
}

func (r *fakeLabelRepo) GetByID(ctx context.Context, id string) (*models.Label, error) {
	return r.rows[id], nil
}

func (r *fakeLabelRepo) ListByAccount(ctx context.Context, accountID string) ([]*models.Label, error) {
	var out []*models.Label
	for _, l := range r.rows {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ---- sync state repository ----

type fakeSyncStateRepo struct {
	mu    gosync.Mutex
	rows  map[string]*models.SyncState
	saves int
}

func newFakeSyncStateRepo() *fakeSyncStateRepo {
	return &fakeSyncStateRepo{rows: map[string]*models.SyncState{}}
}

func (r *fakeSyncStateRepo) Get(ctx context.Context, accountID string) (*models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[accountID]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeSyncStateRepo) Save(ctx context.Context, state *models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *state
	r.rows[state.AccountID] = &clone
	r.saves++
	return nil
}

func (r *fakeSyncStateRepo) TryBeginSync(ctx context.Context, accountID string) (*models.SyncState, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.rows[accountID]
	if !ok {
		state = &models.SyncState{
			AccountID: accountID,
			IsSyncing: true,
			Status:    enum.SyncStatusSyncing,
		}
		r.rows[accountID] = state
		clone := *state
		return &clone, true, nil
	}
	if state.IsSyncing {
		clone := *state
		return &clone, false, nil
	}
	state.IsSyncing = true
	state.Status = enum.SyncStatusSyncing
	clone := *state
	return &clone, true, nil
}

func (r *fakeSyncStateRepo) ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := utils.Now().Add(-olderThan)
	var released int64
	for _, s := range r.rows {
		if s.IsSyncing && s.UpdatedAt.Before(cutoff) {
			s.IsSyncing = false
			s.Status = enum.SyncStatusFailed
			released++
		}
	}
	return released, nil
}

func (r *fakeSyncStateRepo) Delete(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, accountID)
	return nil
}

// ---- draft repository ----

type fakeDraftRepo struct {
	rows map[string]*models.Draft
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{rows: map[string]*models.Draft{}}
}

func (r *fakeDraftRepo) Save(ctx context.Context, draft *models.Draft) error {
	if draft.ID == "" {
		draft.ID = utils.GenerateNanoIDWithPrefix("draft", 16)
	}
	r.rows[draft.ID] = draft
	return nil
}

func (r *fakeDraftRepo) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	return r.rows[id], nil
}

func (r *fakeDraftRepo) ListByAccount(ctx context.Context, accountID string) ([]*models.Draft, error) {
	var out []*models.Draft
	for _, d := range r.rows {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDraftRepo) Delete(ctx context.Context, id string) error {
	delete(r.rows, id)
	return nil
}

// ---- dispatcher ----

type recordingDispatcher struct {
	mu     gosync.Mutex
	events []interfaces.MailEvent
}

func (d *recordingDispatcher) Publish(event interfaces.MailEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Subscribe(accountID string) (<-chan interfaces.MailEvent, func()) {
	ch := make(chan interfaces.MailEvent)
	close(ch)
	return ch, func() {}
}

func (d *recordingDispatcher) Close() {}

func (d *recordingDispatcher) byType(eventType interfaces.MailEventType) []interfaces.MailEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []interfaces.MailEvent
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// ---- provider ----

// scriptedProvider replays a fixed event sequence per sync run.
type scriptedProvider struct {
	state   enum.ConnectionState
	script  func(options interfaces.SyncOptions) []interfaces.SyncEvent
	lastOpt *interfaces.SyncOptions
}

func newScriptedProvider(script func(options interfaces.SyncOptions) []interfaces.SyncEvent) *scriptedProvider {
	return &scriptedProvider{state: enum.ConnectionDisconnected, script: script}
}

func (p *scriptedProvider) Kind() enum.ProviderKind       { return enum.ProviderGeneric }
func (p *scriptedProvider) State() enum.ConnectionState   { return p.state }
func (p *scriptedProvider) Disconnect(context.Context) error {
	p.state = enum.ConnectionDisconnected
	return nil
}

func (p *scriptedProvider) Connect(ctx context.Context, account *models.Account) error {
	p.state = enum.ConnectionConnected
	return nil
}

func (p *scriptedProvider) SyncEmails(ctx context.Context, options interfaces.SyncOptions) (<-chan interfaces.SyncEvent, error) {
	p.lastOpt = &options
	events := make(chan interfaces.SyncEvent, 32)
	go func() {
		defer close(events)
		for _, event := range p.script(options) {
			events <- event
		}
	}()
	return events, nil
}

func (p *scriptedProvider) SendEmail(ctx context.Context, draft *models.Draft) (string, error) {
	return "sent_" + draft.ID, nil
}

func (p *scriptedProvider) MarkAsRead(ctx context.Context, messageIDs []string, read bool) error {
	return nil
}

func (p *scriptedProvider) DeleteMessages(ctx context.Context, messageIDs []string) error {
	return nil
}

func (p *scriptedProvider) ArchiveMessages(ctx context.Context, messageIDs []string) error {
	return nil
}

func (p *scriptedProvider) FetchMessageDetails(ctx context.Context, messageID string) (*models.Message, error) {
	return nil, apperrors.New(apperrors.KindInvalidRequest, "not scripted")
}

func (p *scriptedProvider) SearchMessages(ctx context.Context, query string, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (p *scriptedProvider) FetchLabels(ctx context.Context) ([]*models.Label, error) {
	return []*models.Label{}, nil
}

func (p *scriptedProvider) UpdateLabels(ctx context.Context, label *models.Label) error {
	return apperrors.New(apperrors.KindUnsupportedOperation, "not supported")
}
