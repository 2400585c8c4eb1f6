package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxd/inboxd/interfaces"
	"github.com/inboxd/inboxd/internal/enum"
	"github.com/inboxd/inboxd/internal/models"
	"github.com/inboxd/inboxd/internal/tracing"
	"github.com/inboxd/inboxd/internal/utils"
)

type syncStateRepository struct {
	db *gorm.DB
}

func NewSyncStateRepository(db *gorm.DB) interfaces.SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) Get(ctx context.Context, accountID string) (*models.SyncState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncStateRepository.Get")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var state models.SyncState
	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&state)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil // No sync state yet
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get sync state: %w", result.Error)
	}

	return &state, nil
}

func (r *syncStateRepository) Save(ctx context.Context, state *models.SyncState) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncStateRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, state.AccountID)

	state.UpdatedAt = utils.Now()

	// Try to update first
	result := r.db.WithContext(ctx).
		Model(&models.SyncState{}).
		Where("account_id = ?", state.AccountID).
		Updates(map[string]interface{}{
			"last_full_sync":        state.LastFullSync,
			"last_incremental_sync": state.LastIncrementalSync,
			"cursor":                state.Cursor,
			"last_message_id":       state.LastMessageID,
			"messages_synced":       state.MessagesSynced,
			"errors_count":          state.ErrorsCount,
			"consecutive_errors":    state.ConsecutiveErrors,
			"is_syncing":            state.IsSyncing,
			"status":                state.Status,
			"last_error_at":         state.LastErrorAt,
			"next_attempt_at":       state.NextAttemptAt,
			"updated_at":            state.UpdatedAt,
		})

	// If no record was updated, create a new one
	if result.Error == nil && result.RowsAffected == 0 {
		state.CreatedAt = utils.Now()
		result = r.db.WithContext(ctx).Create(state)
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save sync state: %w", result.Error)
	}

	return nil
}

// TryBeginSync flips is_syncing false -> true in one guarded update so
// concurrent start requests for the same account cannot both win.
func (r *syncStateRepository) TryBeginSync(ctx context.Context, accountID string) (*models.SyncState, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncStateRepository.TryBeginSync")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var state models.SyncState
	acquired := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookup := tx.Where("account_id = ?", accountID).First(&state)
		if lookup.Error != nil {
			if lookup.Error != gorm.ErrRecordNotFound {
				return lookup.Error
			}
			// First sync attempt for this account
			state = models.SyncState{
				AccountID: accountID,
				IsSyncing: true,
				Status:    enum.SyncStatusSyncing,
				CreatedAt: utils.Now(),
				UpdatedAt: utils.Now(),
			}
			if err := tx.Create(&state).Error; err != nil {
				return err
			}
			acquired = true
			return nil
		}

		if state.IsSyncing {
			return nil
		}

		update := tx.Model(&models.SyncState{}).
			Where("account_id = ? AND is_syncing = ?", accountID, false).
			Updates(map[string]interface{}{
				"is_syncing": true,
				"status":     enum.SyncStatusSyncing,
				"updated_at": utils.Now(),
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			// Lost the race to a concurrent start request
			return nil
		}

		state.IsSyncing = true
		state.Status = enum.SyncStatusSyncing
		acquired = true
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, fmt.Errorf("failed to begin sync: %w", err)
	}

	span.SetTag("acquired", acquired)
	return &state, acquired, nil
}

// ReleaseStuck clears is_syncing on rows that have not been touched
// within the given window. Covers crashed runs that never reached the
// completion update.
func (r *syncStateRepository) ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncStateRepository.ReleaseStuck")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	cutoff := utils.Now().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Model(&models.SyncState{}).
		Where("is_syncing = ? AND updated_at < ?", true, cutoff).
		Updates(map[string]interface{}{
			"is_syncing": false,
			"status":     enum.SyncStatusFailed,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to release stuck sync states: %w", result.Error)
	}

	span.SetTag("released", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *syncStateRepository) Delete(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncStateRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.SyncState{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete sync state: %w", result.Error)
	}

	return nil
}
