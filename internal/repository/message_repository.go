package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/tracing"
	"github.com/inboxd/inboxd/internal/utils"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{db: db}
}

// Upsert inserts a message or revises the existing row keyed by
// (id, account_id). The storage identity never changes across
// revisions; all mutable fields are overwritten in one transaction.
func (r *messageRepository) Upsert(ctx context.Context, message *models.Message) (interfaces.UpsertResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, message.AccountID)
	tracing.TagEntity(span, message.ID)

	result := interfaces.UpsertInserted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Message
		lookup := tx.Where("id = ? AND account_id = ?", message.ID, message.AccountID).First(&existing)

		if lookup.Error != nil {
			if lookup.Error != gorm.ErrRecordNotFound {
				return lookup.Error
			}
			message.CreatedAt = utils.Now()
			message.UpdatedAt = message.CreatedAt
			return tx.Create(message).Error
		}

		result = interfaces.UpsertUpdated
		return tx.Model(&models.Message{}).
			Where("id = ? AND account_id = ?", message.ID, message.AccountID).
			Updates(map[string]interface{}{
				"provider":            message.Provider,
				"thread_id":           message.ThreadID,
				"internet_message_id": message.InternetMessageID,
				"subject":             message.Subject,
				"body_text":           message.BodyText,
				"body_html":           message.BodyHTML,
				"snippet":             message.Snippet,
				"from_address":        message.FromAddress,
				"from_name":           message.FromName,
				"to_addresses":        message.ToAddresses,
				"cc_addresses":        message.CcAddresses,
				"bcc_addresses":       message.BccAddresses,
				"sent_at":             message.SentAt,
				"label_ids":           message.LabelIDs,
				"is_read":             message.IsRead,
				"is_starred":          message.IsStarred,
				"is_deleted":          message.IsDeleted,
				"is_draft":            message.IsDraft,
				"is_answered":         message.IsAnswered,
				"is_forwarded":        message.IsForwarded,
				"size":                message.Size,
				"updated_at":          utils.Now(),
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return result, fmt.Errorf("failed to upsert message: %w", err)
	}

	span.SetTag("result", string(result))
	return result, nil
}

func (r *messageRepository) GetByID(ctx context.Context, accountID, id string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var message models.Message
	result := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&message)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get message: %w", result.Error)
	}

	return &message, nil
}

// ListByAccount returns a date-descending snapshot of live cached
// messages. Soft-deleted rows are excluded from all reads except
// GetByID.
func (r *messageRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND is_deleted = ?", accountID, false).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) ListByThread(ctx context.Context, accountID, threadID string) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListByThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND thread_id = ? AND is_deleted = ?", accountID, threadID, false).
		Order("sent_at ASC").
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list thread messages: %w", err)
	}

	return messages, nil
}

// ListIDsByAccount returns ids of all live rows. Used by full sync to
// detect remote deletions.
func (r *messageRepository) ListIDsByAccount(ctx context.Context, accountID string) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListIDsByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND is_deleted = ?", accountID, false).
		Pluck("id", &ids).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list message ids: %w", err)
	}

	return ids, nil
}

func (r *messageRepository) Search(ctx context.Context, accountID, query string, limit, offset int) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Search")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	searchPattern := "%" + query + "%"

	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND is_deleted = ?", accountID, false).
		Where("subject ILIKE ? OR from_address ILIKE ? OR body_text ILIKE ?",
			searchPattern, searchPattern, searchPattern).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	return messages, nil
}

// MarkDeleted soft-deletes rows; they stay in the cache for audit.
func (r *messageRepository) MarkDeleted(ctx context.Context, accountID string, ids []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.MarkDeleted")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)
	span.SetTag("count", len(ids))

	if len(ids) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND id IN ?", accountID, ids).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to mark messages deleted: %w", err)
	}

	return nil
}

func (r *messageRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.CountByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND is_deleted = ?", accountID, false).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}
