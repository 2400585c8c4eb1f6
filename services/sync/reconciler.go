package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/logger"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/tracing"
	"github.com/inboxd/inboxd/internal/utils"
)

// Reconciler folds provider sync events into the local cache. Message
// writes are keyed upserts on (id, account_id), so replaying the same
// batch leaves the cache unchanged. Remote state wins over local state
// on every field.
type Reconciler struct {
	messageRepo interfaces.MessageRepository
	threadRepo  interfaces.ThreadRepository
	labelRepo   interfaces.LabelRepository
	log         logger.Logger
}

func NewReconciler(messageRepo interfaces.MessageRepository, threadRepo interfaces.ThreadRepository, labelRepo interfaces.LabelRepository, log logger.Logger) *Reconciler {
	return &Reconciler{
		messageRepo: messageRepo,
		threadRepo:  threadRepo,
		labelRepo:   labelRepo,
		log:         log,
	}
}

// ApplyMessages upserts a batch and refreshes the affected thread
// aggregates. It reports how many rows were newly inserted vs revised.
func (r *Reconciler) ApplyMessages(ctx context.Context, accountID string, messages []*models.Message) (inserted, updated int, err error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Reconciler.ApplyMessages")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("batch.size", len(messages))

	affectedThreads := make(map[string]bool)
	for _, message := range messages {
		if message == nil {
			continue
		}
		message.AccountID = accountID
		if message.ThreadID == "" {
			message.ThreadID = deriveThreadID(message)
		}

		result, upsertErr := r.messageRepo.Upsert(ctx, message)
		if upsertErr != nil {
			tracing.TraceErr(span, upsertErr)
			return inserted, updated, upsertErr
		}
		switch result {
		case interfaces.UpsertInserted:
			inserted++
		case interfaces.UpsertUpdated:
			updated++
		}
		affectedThreads[message.ThreadID] = true
	}

	if err := r.refreshThreads(ctx, accountID, affectedThreads); err != nil {
		tracing.TraceErr(span, err)
		return inserted, updated, err
	}

	span.SetTag("inserted", inserted)
	span.SetTag("updated", updated)
	return inserted, updated, nil
}

// ApplyDeletions soft-deletes the given message ids and refreshes the
// threads they belonged to. Unknown ids are skipped.
func (r *Reconciler) ApplyDeletions(ctx context.Context, accountID string, messageIDs []string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Reconciler.ApplyDeletions")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("count", len(messageIDs))

	if len(messageIDs) == 0 {
		return 0, nil
	}

	affectedThreads := make(map[string]bool)
	known := make([]string, 0, len(messageIDs))
	for _, id := range messageIDs {
		message, err := r.messageRepo.GetByID(ctx, accountID, id)
		if err != nil {
			tracing.TraceErr(span, err)
			return 0, err
		}
		if message == nil {
			continue
		}
		known = append(known, id)
		if message.ThreadID != "" {
			affectedThreads[message.ThreadID] = true
		}
	}
	if len(known) == 0 {
		return 0, nil
	}

	if err := r.messageRepo.MarkDeleted(ctx, accountID, known); err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	if err := r.refreshThreads(ctx, accountID, affectedThreads); err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return len(known), nil
}

// ApplyLabels upserts the backend's label set, validating parent chains
// against the already stored labels before writing.
func (r *Reconciler) ApplyLabels(ctx context.Context, accountID string, labels []*models.Label) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Reconciler.ApplyLabels")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("count", len(labels))

	for _, label := range labels {
		if label == nil {
			continue
		}
		label.AccountID = accountID
		if _, err := r.labelRepo.Upsert(ctx, label); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}
	return nil
}

// refreshThreads recomputes thread aggregates from the message rows.
// A thread whose last live message disappeared keeps its row but drops
// to zero counts.
func (r *Reconciler) refreshThreads(ctx context.Context, accountID string, threadIDs map[string]bool) error {
	for threadID := range threadIDs {
		if threadID == "" {
			continue
		}
		if err := r.rebuildThread(ctx, accountID, threadID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) rebuildThread(ctx context.Context, accountID, threadID string) error {
	messages, err := r.messageRepo.ListByThread(ctx, accountID, threadID)
	if err != nil {
		return err
	}

	thread := &models.Thread{
		ID:        threadID,
		AccountID: accountID,
	}

	participants := make(map[string]bool)
	labels := make(map[string]bool)
	for _, message := range messages {
		// soft-deleted rows never contribute to aggregates
		if message.IsDeleted {
			continue
		}
		thread.MessageIDs = append(thread.MessageIDs, message.ID)
		thread.MessageCount++
		if !message.IsRead {
			thread.UnreadCount++
		}
		if thread.Subject == "" {
			thread.Subject = utils.NormalizeEmailSubject(message.Subject)
		}
		if message.FromAddress != "" {
			participants[message.FromAddress] = true
		}
		for _, addr := range message.ToAddresses {
			participants[addr] = true
		}
		for _, labelID := range message.LabelIDs {
			labels[labelID] = true
		}
		sentAt := message.SentAt
		if thread.FirstMessageAt == nil || sentAt.Before(*thread.FirstMessageAt) {
			thread.FirstMessageAt = utils.ToPtr(sentAt)
		}
		if thread.LastMessageAt == nil || sentAt.After(*thread.LastMessageAt) {
			thread.LastMessageAt = utils.ToPtr(sentAt)
		}
	}
	thread.Participants = sortedKeys(participants)
	thread.LabelIDs = sortedKeys(labels)

	if err := thread.Validate(); err != nil {
		return err
	}
	_, err = r.threadRepo.Upsert(ctx, thread)
	return err
}

// deriveThreadID builds a stable conversation key for backends without
// native threading: normalized subject plus the sorted participant set.
func deriveThreadID(message *models.Message) string {
	participants := make(map[string]bool)
	if message.FromAddress != "" {
		participants[strings.ToLower(message.FromAddress)] = true
	}
	for _, addr := range message.ToAddresses {
		participants[strings.ToLower(addr)] = true
	}

	parts := sortedKeys(participants)
	key := strings.ToLower(utils.NormalizeEmailSubject(message.Subject)) + "|" + strings.Join(parts, ",")

	sum := sha256.Sum256([]byte(key))
	return "thread_" + hex.EncodeToString(sum[:8])
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
