package conversation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/infrastructure/database/entities"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// Repository persists conversation rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.Repository = (*Repository)(nil)

// Create inserts the conversation record.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"9b1f02de-4a3c-47d8-9f2e-5a6b7c8d9e0f",
		)
	}

	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// GetByPublicID fetches a conversation by its public ID.
func (r *Repository) GetByPublicID(ctx context.Context, publicID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	if err := r.db.WithContext(ctx).
		Where("public_id = ?", publicID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("conversation not found: %s", publicID),
				nil,
				"c4d5e6f7-0a1b-42c3-8d4e-5f6a7b8c9d0e",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch conversation",
			err,
			"1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
		)
	}

	return entity.EtoD(), nil
}

// Update saves mutable conversation fields.
func (r *Repository) Update(ctx context.Context, conv *domain.Conversation) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("public_id = ?", conv.PublicID).
		Updates(map[string]any{
			"name":     conv.Name,
			"metadata": entities.JSONMap(conv.Metadata),
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation",
			result.Error,
			"7f8e9d0c-1b2a-43c4-9d5e-6f7a8b9c0d1e",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("conversation not found: %s", conv.PublicID),
			nil,
			"2c3d4e5f-6a7b-48c9-0d1e-2f3a4b5c6d7e",
		)
	}
	return nil
}

// Delete removes the conversation row. Associated branch, message, and edge
// rows are removed by the service inside the same transaction.
func (r *Repository) Delete(ctx context.Context, publicID string) error {
	result := r.db.WithContext(ctx).
		Where("public_id = ?", publicID).
		Delete(&entities.Conversation{})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation",
			result.Error,
			"8d9e0f1a-2b3c-44d5-9e6f-7a8b9c0d1e2f",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("conversation not found: %s", publicID),
			nil,
			"3e4f5a6b-7c8d-49e0-1f2a-3b4c5d6e7f8a",
		)
	}
	return nil
}

// List returns conversations ordered by most recently updated.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"4f5a6b7c-8d9e-40f1-2a3b-4c5d6e7f8a9b",
		)
	}

	out := make([]domain.Conversation, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].EtoD())
	}
	return out, nil
}
