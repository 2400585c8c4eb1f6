package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/logger"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/tracing"
	"github.com/inboxd/inboxd/internal/utils"
)

// ProviderFactory builds a backend adapter for one account. The engine
// caches one adapter per account and never shares it across accounts.
type ProviderFactory func(account *models.Account, creds interfaces.CredentialProvider) (interfaces.MailProvider, error)

// Deps groups the stores the engine reads and writes.
type Deps struct {
	Accounts   interfaces.AccountRepository
	Messages   interfaces.MessageRepository
	Threads    interfaces.ThreadRepository
	Labels     interfaces.LabelRepository
	SyncStates interfaces.SyncStateRepository
	Drafts     interfaces.DraftRepository
}

type engine struct {
	deps       Deps
	creds      interfaces.CredentialProvider
	dispatcher interfaces.EventDispatcher
	factory    ProviderFactory
	reconciler *Reconciler
	log        logger.Logger
	cfg        Config

	mu        gosync.Mutex
	providers map[string]interfaces.MailProvider
}

func NewEngine(deps Deps, creds interfaces.CredentialProvider, dispatcher interfaces.EventDispatcher, factory ProviderFactory, log logger.Logger, cfg Config) interfaces.MailService {
	return &engine{
		deps:       deps,
		creds:      creds,
		dispatcher: dispatcher,
		factory:    factory,
		reconciler: NewReconciler(deps.Messages, deps.Threads, deps.Labels, log),
		log:        log,
		cfg:        cfg.normalized(),
		providers:  make(map[string]interfaces.MailProvider),
	}
}

func (e *engine) Connect(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.Connect")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	account, err := e.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if account == nil {
		tracing.TraceErr(span, apperrors.ErrAccountNotFound)
		return apperrors.ErrAccountNotFound
	}

	provider, err := e.providerFor(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := provider.Connect(ctx, account); err != nil {
		e.publishConnection(accountID, provider.State())
		tracing.TraceErr(span, err)
		return err
	}
	e.publishConnection(accountID, provider.State())
	return nil
}

func (e *engine) Disconnect(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.Disconnect")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	e.mu.Lock()
	provider := e.providers[accountID]
	e.mu.Unlock()
	if provider == nil {
		return nil
	}
	if err := provider.Disconnect(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	e.publishConnection(accountID, provider.State())
	return nil
}

func (e *engine) ConnectionState(accountID string) enum.ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if provider, ok := e.providers[accountID]; ok {
		return provider.State()
	}
	return enum.ConnectionDisconnected
}

func (e *engine) SyncState(ctx context.Context, accountID string) (*models.SyncState, error) {
	state, err := e.deps.SyncStates.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &models.SyncState{AccountID: accountID, Status: enum.SyncStatusIdle}, nil
	}
	return state, nil
}

// SyncNow runs one sync pass for the account. At most one run per
// account is in flight; the loser of the race gets
// ErrSyncAlreadyRunning immediately, it is never queued.
func (e *engine) SyncNow(ctx context.Context, accountID string) (*interfaces.SyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.SyncNow")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	account, err := e.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if account == nil {
		tracing.TraceErr(span, apperrors.ErrAccountNotFound)
		return nil, apperrors.ErrAccountNotFound
	}

	state, ok, err := e.deps.SyncStates.TryBeginSync(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if !ok {
		tracing.TraceErr(span, apperrors.ErrSyncAlreadyRunning)
		return nil, apperrors.ErrSyncAlreadyRunning
	}

	if state.NextAttemptAt != nil && utils.Now().Before(*state.NextAttemptAt) {
		e.releaseSync(ctx, state)
		span.SetTag("deferred_until", state.NextAttemptAt.Format(time.RFC3339))
		return nil, fmt.Errorf("%w: next attempt at %s", apperrors.ErrSyncDeferred, state.NextAttemptAt.Format(time.RFC3339))
	}

	mode := e.decideMode(state)
	span.SetTag("mode", mode.String())

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	result, runErr := e.run(runCtx, account, state, mode)
	if runErr != nil {
		e.recordFailure(ctx, state, runErr)
		tracing.TraceErr(span, runErr)
		return nil, runErr
	}

	e.recordSuccess(ctx, state, mode, result)
	return result, nil
}

func (e *engine) run(ctx context.Context, account *models.Account, state *models.SyncState, mode enum.SyncMode) (*interfaces.SyncResult, error) {
	provider, err := e.providerFor(account)
	if err != nil {
		return nil, err
	}
	if provider.State() != enum.ConnectionConnected {
		if err := provider.Connect(ctx, account); err != nil {
			return nil, err
		}
		e.publishConnection(account.ID, provider.State())
	}

	// Snapshot of the cached ids lets a full run detect remote
	// deletions by difference.
	var snapshot map[string]bool
	if mode == enum.SyncModeFull {
		ids, err := e.deps.Messages.ListIDsByAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		snapshot = make(map[string]bool, len(ids))
		for _, id := range ids {
			snapshot[id] = true
		}
	}

	options := interfaces.SyncOptions{Mode: mode, PageSize: e.cfg.PageSize}
	if mode == enum.SyncModeIncremental {
		options.Cursor = state.Cursor
	}

	events, err := provider.SyncEmails(ctx, options)
	if err != nil {
		return nil, err
	}

	result := &interfaces.SyncResult{AccountID: account.ID, Mode: mode}
	seen := make(map[string]bool)

	for event := range events {
		switch event.Type {
		case interfaces.SyncEventStarted:
			e.dispatcher.Publish(interfaces.MailEvent{Type: interfaces.MailEventSyncStarted, AccountID: account.ID})

		case interfaces.SyncEventProgress:
			e.dispatcher.Publish(interfaces.MailEvent{
				Type:      interfaces.MailEventSyncProgress,
				AccountID: account.ID,
				Current:   event.Current,
				Total:     event.Total,
			})

		case interfaces.SyncEventNewMessages, interfaces.SyncEventUpdatedMessages:
			inserted, updated, applyErr := e.reconciler.ApplyMessages(ctx, account.ID, event.Messages)
			if applyErr != nil {
				return nil, applyErr
			}
			result.NewMessages += inserted
			result.UpdatedMessages += updated
			for _, message := range event.Messages {
				if message != nil {
					seen[message.ID] = true
				}
			}
			e.dispatcher.Publish(interfaces.MailEvent{
				Type:      interfaces.MailEventMessagesChanged,
				AccountID: account.ID,
				Count:     len(event.Messages),
			})

		case interfaces.SyncEventDeletedMessages:
			deleted, applyErr := e.reconciler.ApplyDeletions(ctx, account.ID, event.DeletedIDs)
			if applyErr != nil {
				return nil, applyErr
			}
			result.DeletedMessages += deleted

		case interfaces.SyncEventCompleted:
			result.Cursor = event.Cursor

		case interfaces.SyncEventError:
			return nil, event.Err
		}
	}

	if mode == enum.SyncModeFull {
		var gone []string
		for id := range snapshot {
			if !seen[id] {
				gone = append(gone, id)
			}
		}
		deleted, err := e.reconciler.ApplyDeletions(ctx, account.ID, gone)
		if err != nil {
			return nil, err
		}
		result.DeletedMessages += deleted

		labels, err := provider.FetchLabels(ctx)
		if err != nil {
			e.log.Warnf("[%s] label fetch failed: %v", account.ID, err)
		} else if err := e.reconciler.ApplyLabels(ctx, account.ID, labels); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// decideMode picks full when there is no cursor yet, when the last
// full run is too old, or after too many consecutive failures.
func (e *engine) decideMode(state *models.SyncState) enum.SyncMode {
	if state.Cursor == "" || state.LastFullSync == nil {
		return enum.SyncModeFull
	}
	if utils.Now().Sub(*state.LastFullSync) > e.cfg.FullSyncStaleness {
		return enum.SyncModeFull
	}
	if state.ConsecutiveErrors >= e.cfg.ConsecutiveErrorCeiling {
		return enum.SyncModeFull
	}
	return enum.SyncModeIncremental
}

func (e *engine) recordSuccess(ctx context.Context, state *models.SyncState, mode enum.SyncMode, result *interfaces.SyncResult) {
	now := utils.Now()
	if result.Cursor != "" {
		state.Cursor = result.Cursor
	}
	if mode == enum.SyncModeFull {
		state.LastFullSync = &now
	}
	state.LastIncrementalSync = &now
	state.MessagesSynced += result.NewMessages
	state.ConsecutiveErrors = 0
	state.NextAttemptAt = nil
	state.IsSyncing = false
	state.Status = enum.SyncStatusIdle

	if err := e.deps.SyncStates.Save(ctx, state); err != nil {
		e.log.Errorf("[%s] failed to persist sync state: %v", state.AccountID, err)
	}
	e.dispatcher.Publish(interfaces.MailEvent{
		Type:      interfaces.MailEventSyncCompleted,
		AccountID: state.AccountID,
		Count:     result.NewMessages + result.UpdatedMessages,
	})
	e.log.Infof("[%s] %s sync done: %d new, %d updated, %d deleted",
		state.AccountID, mode, result.NewMessages, result.UpdatedMessages, result.DeletedMessages)
}

// recordFailure keeps already reconciled progress and the old cursor,
// bumps the failure counters and schedules the next attempt.
func (e *engine) recordFailure(ctx context.Context, state *models.SyncState, runErr error) {
	now := utils.Now()
	state.ErrorsCount++
	state.ConsecutiveErrors++
	state.LastErrorAt = &now
	state.IsSyncing = false
	state.Status = enum.SyncStatusFailed

	if apperrors.IsRetryable(runErr) {
		delay := e.cfg.backoffFor(state.ConsecutiveErrors, apperrors.RetryAfterOf(runErr))
		next := now.Add(delay)
		state.NextAttemptAt = &next
	} else {
		state.NextAttemptAt = nil
	}

	if err := e.deps.SyncStates.Save(ctx, state); err != nil {
		e.log.Errorf("[%s] failed to persist sync state: %v", state.AccountID, err)
	}
	e.dispatcher.Publish(interfaces.MailEvent{
		Type:      interfaces.MailEventSyncFailed,
		AccountID: state.AccountID,
		Error:     runErr.Error(),
	})
	e.log.Errorf("[%s] sync failed (consecutive %d): %v", state.AccountID, state.ConsecutiveErrors, runErr)
}

// releaseSync clears the in-flight flag without touching counters,
// used when a run is rejected before it started.
func (e *engine) releaseSync(ctx context.Context, state *models.SyncState) {
	state.IsSyncing = false
	state.Status = enum.SyncStatusIdle
	if err := e.deps.SyncStates.Save(ctx, state); err != nil {
		e.log.Errorf("[%s] failed to release sync flag: %v", state.AccountID, err)
	}
}

func (e *engine) providerFor(account *models.Account) (interfaces.MailProvider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if provider, ok := e.providers[account.ID]; ok {
		return provider, nil
	}
	provider, err := e.factory(account, e.creds)
	if err != nil {
		return nil, err
	}
	e.providers[account.ID] = provider
	return provider, nil
}

func (e *engine) publishConnection(accountID string, state enum.ConnectionState) {
	e.dispatcher.Publish(interfaces.MailEvent{
		Type:      interfaces.MailEventConnectionChanged,
		AccountID: accountID,
		State:     state,
	})
}
