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

type labelRepository struct {
	db *gorm.DB
}

func NewLabelRepository(db *gorm.DB) interfaces.LabelRepository {
	return &labelRepository{db: db}
}

// Upsert validates the parent chain against the account's stored
// labels before writing; a cycle is rejected before storage.
func (r *labelRepository) Upsert(ctx context.Context, label *models.Label) (interfaces.UpsertResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "labelRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, label.AccountID)
	tracing.TagEntity(span, label.ID)

	existing, err := r.ListByAccount(ctx, label.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return interfaces.UpsertInserted, err
	}
	byID := make(map[string]*models.Label, len(existing))
	for _, l := range existing {
		byID[l.ID] = l
	}
	byID[label.ID] = label
	if err := models.ValidateLabelParentChain(label, byID); err != nil {
		tracing.TraceErr(span, err)
		return interfaces.UpsertInserted, err
	}

	result := interfaces.UpsertInserted

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Label
		lookup := tx.Where("id = ?", label.ID).First(&row)

		if lookup.Error != nil {
			if lookup.Error != gorm.ErrRecordNotFound {
				return lookup.Error
			}
			label.CreatedAt = utils.Now()
			return tx.Create(label).Error
		}

		result = interfaces.UpsertUpdated
		return tx.Model(&models.Label{}).
			Where("id = ?", label.ID).
			Updates(map[string]interface{}{
				"name":          label.Name,
				"type":          label.Type,
				"color":         label.Color,
				"parent_id":     label.ParentID,
				"provider_ids":  label.ProviderIDs,
				"visible":       label.Visible,
				"message_count": label.MessageCount,
				"updated_at":    utils.Now(),
			}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return result, fmt.Errorf("failed to upsert label: %w", err)
	}

	span.SetTag("result", string(result))
	return result, nil
}

func (r *labelRepository) GetByID(ctx context.Context, id string) (*models.Label, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "labelRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var label models.Label
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&label)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get label: %w", result.Error)
	}

	return &label, nil
}

func (r *labelRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Label, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "labelRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var labels []*models.Label
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("name ASC").
		Find(&labels).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	return labels, nil
}
