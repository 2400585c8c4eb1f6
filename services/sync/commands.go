package sync

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/tracing"
)

// SendDraft relays a stored draft through the account's backend and
// removes the draft on success.
func (e *engine) SendDraft(ctx context.Context, accountID, draftID string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.SendDraft")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	tracing.TagEntity(span, draftID)

	draft, err := e.deps.Drafts.GetByID(ctx, draftID)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if draft == nil || draft.AccountID != accountID {
		err := apperrors.New(apperrors.KindInvalidRequest, "draft not found for account")
		tracing.TraceErr(span, err)
		return "", err
	}

	provider, err := e.connectedProvider(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	messageID, err := provider.SendEmail(ctx, draft)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	if err := e.deps.Drafts.Delete(ctx, draftID); err != nil {
		e.log.Warnf("[%s] sent draft %s but failed to remove it: %v", accountID, draftID, err)
	}
	return messageID, nil
}

// MarkAsRead flips the read flag remotely, then mirrors it locally so
// the cache reflects the change before the next sync confirms it.
func (e *engine) MarkAsRead(ctx context.Context, accountID string, messageIDs []string, read bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.MarkAsRead")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("count", len(messageIDs))

	provider, err := e.connectedProvider(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := provider.MarkAsRead(ctx, messageIDs, read); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	var changed []*models.Message
	for _, id := range messageIDs {
		message, err := e.deps.Messages.GetByID(ctx, accountID, id)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if message == nil {
			continue
		}
		message.IsRead = read
		changed = append(changed, message)
	}
	if _, _, err := e.reconciler.ApplyMessages(ctx, accountID, changed); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (e *engine) DeleteMessages(ctx context.Context, accountID string, messageIDs []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.DeleteMessages")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("count", len(messageIDs))

	provider, err := e.connectedProvider(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := provider.DeleteMessages(ctx, messageIDs); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if _, err := e.reconciler.ApplyDeletions(ctx, accountID, messageIDs); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	e.dispatcher.Publish(interfaces.MailEvent{
		Type:      interfaces.MailEventMessagesChanged,
		AccountID: accountID,
		Count:     len(messageIDs),
	})
	return nil
}

func (e *engine) ArchiveMessages(ctx context.Context, accountID string, messageIDs []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.ArchiveMessages")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("count", len(messageIDs))

	provider, err := e.connectedProvider(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if err := provider.ArchiveMessages(ctx, messageIDs); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	e.dispatcher.Publish(interfaces.MailEvent{
		Type:      interfaces.MailEventMessagesChanged,
		AccountID: accountID,
		Count:     len(messageIDs),
	})
	return nil
}

// SearchRemote queries the backend directly; results are returned to
// the caller without being merged into the cache.
func (e *engine) SearchRemote(ctx context.Context, accountID, query string, limit int) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncEngine.SearchRemote")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)

	provider, err := e.connectedProvider(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	messages, err := provider.SearchMessages(ctx, query, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return messages, nil
}

// connectedProvider resolves the account's adapter and connects it if
// the session is not yet established.
func (e *engine) connectedProvider(ctx context.Context, accountID string) (interfaces.MailProvider, error) {
	account, err := e.deps.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperrors.ErrAccountNotFound
	}

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
	return provider, nil
}
