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

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) interfaces.ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Upsert(ctx context.Context, thread *models.Thread) (interfaces.UpsertResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "threadRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, thread.AccountID)
	tracing.TagEntity(span, thread.ID)

	if err := thread.Validate(); err != nil {
		tracing.TraceErr(span, err)
		return interfaces.UpsertInserted, err
	}

	result := interfaces.UpsertInserted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Thread
		lookup := tx.Where("id = ? AND account_id = ?", thread.ID, thread.AccountID).First(&existing)

		if lookup.Error != nil {
			if lookup.Error != gorm.ErrRecordNotFound {
				return lookup.Error
			}
			return tx.Create(thread).Error
		}

		result = interfaces.UpsertUpdated
		return tx.Model(&models.Thread{}).
			Where("id = ? AND account_id = ?", thread.ID, thread.AccountID).
			Updates(map[string]interface{}{
				"subject":          thread.Subject,
				"participants":     thread.Participants,
				"message_ids":      thread.MessageIDs,
				"label_ids":        thread.LabelIDs,
				"message_count":    thread.MessageCount,
				"unread_count":     thread.UnreadCount,
				"first_message_at": thread.FirstMessageAt,
				"last_message_at":  thread.LastMessageAt,
				"updated_at":       utils.Now(),
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return result, fmt.Errorf("failed to upsert thread: %w", err)
	}

	span.SetTag("result", string(result))
	return result, nil
}

func (r *threadRepository) GetByID(ctx context.Context, accountID, id string) (*models.Thread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "threadRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var thread models.Thread
	result := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&thread)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get thread: %w", result.Error)
	}

	return &thread, nil
}

func (r *threadRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Thread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "threadRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var threads []*models.Thread
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("last_message_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&threads).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	return threads, nil
}
