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

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) interfaces.DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Save(ctx context.Context, draft *models.Draft) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "draftRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, draft.AccountID)

	if draft.ID == "" {
		if err := r.db.WithContext(ctx).Create(draft).Error; err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to create draft: %w", err)
		}
		return nil
	}

	draft.UpdatedAt = utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Draft{}).
		Where("id = ?", draft.ID).
		Updates(map[string]interface{}{
			"to_addresses":  draft.ToAddresses,
			"cc_addresses":  draft.CcAddresses,
			"bcc_addresses": draft.BccAddresses,
			"subject":       draft.Subject,
			"body_text":     draft.BodyText,
			"body_html":     draft.BodyHTML,
			"in_reply_to":   draft.InReplyTo,
			"updated_at":    draft.UpdatedAt,
		})
	if result.Error == nil && result.RowsAffected == 0 {
		result = r.db.WithContext(ctx).Create(draft)
	}
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save draft: %w", result.Error)
	}

	return nil
}

func (r *draftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "draftRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var draft models.Draft
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&draft)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get draft: %w", result.Error)
	}

	return &draft, nil
}

func (r *draftRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Draft, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "draftRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var drafts []*models.Draft
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("updated_at DESC").
		Find(&drafts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	return drafts, nil
}

func (r *draftRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "draftRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Draft{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete draft: %w", result.Error)
	}

	return nil
}
