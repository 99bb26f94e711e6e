package branch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	domain "jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/infrastructure/database/entities"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// Repository persists branch rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a branch repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.BranchRepository = (*Repository)(nil)

// Create inserts the branch record. Branch names are unique per
// conversation; a duplicate name is a validation error.
func (r *Repository) Create(ctx context.Context, branch *domain.Branch) error {
	entity := entities.NewSchemaBranch(branch)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeValidation,
				fmt.Sprintf("branch name already exists in conversation: %s", branch.Name),
				err,
				"2f3a4b5c-6d7e-48f9-0a1b-2c3d4e5f6a7b",
			)
		}
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create branch",
			err,
			"3a4b5c6d-7e8f-49a0-1b2c-3d4e5f6a7b8c",
		)
	}

	branch.ID = entity.ID
	branch.CreatedAt = entity.CreatedAt
	branch.UpdatedAt = entity.UpdatedAt
	return nil
}

// GetByPublicID fetches a branch by its public ID.
func (r *Repository) GetByPublicID(ctx context.Context, branchID string) (*domain.Branch, error) {
	var entity entities.Branch
	if err := r.db.WithContext(ctx).
		Where("public_id = ?", branchID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("branch not found: %s", branchID),
				nil,
				"4b5c6d7e-8f9a-40b1-2c3d-4e5f6a7b8c9d",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch branch",
			err,
			"5c6d7e8f-9a0b-41c2-3d4e-5f6a7b8c9d0e",
		)
	}
	return entity.EtoD(), nil
}

// GetMain returns the conversation's main branch.
func (r *Repository) GetMain(ctx context.Context, conversationID string) (*domain.Branch, error) {
	var entity entities.Branch
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_main = ?", conversationID, true).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("main branch not found for conversation: %s", conversationID),
				nil,
				"6d7e8f9a-0b1c-42d3-4e5f-6a7b8c9d0e1f",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch main branch",
			err,
			"7e8f9a0b-1c2d-43e4-5f6a-7b8c9d0e1f2a",
		)
	}
	return entity.EtoD(), nil
}

// ListByConversation returns all branches of a conversation, main first,
// then by creation order.
func (r *Repository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Branch, error) {
	var rows []entities.Branch
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("is_main DESC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list branches",
			err,
			"8f9a0b1c-2d3e-44f5-6a7b-8c9d0e1f2a3b",
		)
	}

	out := make([]domain.Branch, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].EtoD())
	}
	return out, nil
}

// Update saves mutable branch fields.
func (r *Repository) Update(ctx context.Context, branch *domain.Branch) error {
	result := r.db.WithContext(ctx).
		Model(&entities.Branch{}).
		Where("public_id = ?", branch.PublicID).
		Update("name", branch.Name)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeValidation,
				fmt.Sprintf("branch name already exists in conversation: %s", branch.Name),
				result.Error,
				"9a0b1c2d-3e4f-45a6-7b8c-9d0e1f2a3b4c",
			)
		}
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update branch",
			result.Error,
			"0b1c2d3e-4f5a-46b7-8c9d-0e1f2a3b4c5d",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("branch not found: %s", branch.PublicID),
			nil,
			"1c2d3e4f-5a6b-47c8-9d0e-1f2a3b4c5d6e",
		)
	}
	return nil
}

// Delete removes one branch row. Guarding the main branch is the service's
// responsibility.
func (r *Repository) Delete(ctx context.Context, branchID string) error {
	result := r.db.WithContext(ctx).
		Where("public_id = ?", branchID).
		Delete(&entities.Branch{})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete branch",
			result.Error,
			"2d3e4f5a-6b7c-48d9-0e1f-2a3b4c5d6e7f",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("branch not found: %s", branchID),
			nil,
			"3e4f5a6b-7c8d-49e0-1f2a-3b4c5d6e7f8a",
		)
	}
	return nil
}

// DeleteByConversation removes every branch row of a conversation. Used by
// conversation cascade delete.
func (r *Repository) DeleteByConversation(ctx context.Context, conversationID string) error {
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&entities.Branch{}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete conversation branches",
			err,
			"4f5a6b7c-8d9e-40f1-2a3b-4c5d6e7f8a9b",
		)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
