package message

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

// Repository persists message rows and their message_tree edges.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ domain.MessageRepository = (*Repository)(nil)

// CreateMessage inserts a message row. Tree position is recorded separately
// via AddTreeEdge.
func (r *Repository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	entity := entities.NewSchemaMessage(msg)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create message",
			err,
			"5a6b7c8d-9e0f-41a2-3b4c-5d6e7f8a9b0c",
		)
	}

	msg.ID = entity.ID
	msg.CreatedAt = entity.CreatedAt
	return nil
}

// GetMessage fetches one message by public ID.
func (r *Repository) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	var entity entities.Message
	if err := r.db.WithContext(ctx).
		Where("public_id = ?", messageID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("message not found: %s", messageID),
				nil,
				"6b7c8d9e-0f1a-42b3-4c5d-6e7f8a9b0c1d",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch message",
			err,
			"7c8d9e0f-1a2b-43c4-5d6e-7f8a9b0c1d2e",
		)
	}
	return entity.EtoD(), nil
}

// GetMessages returns every message of a conversation in creation order.
func (r *Repository) GetMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var rows []entities.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"8d9e0f1a-2b3c-44d5-6e7f-8a9b0c1d2e3f",
		)
	}
	return toDomainMessages(rows), nil
}

// GetMessagesByIDs fetches the given messages. Missing IDs are skipped, not
// an error; callers that care compare lengths.
func (r *Repository) GetMessagesByIDs(ctx context.Context, messageIDs []string) ([]domain.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	var rows []entities.Message
	if err := r.db.WithContext(ctx).
		Where("public_id IN ?", messageIDs).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch messages",
			err,
			"9e0f1a2b-3c4d-45e6-7f8a-9b0c1d2e3f4a",
		)
	}
	return toDomainMessages(rows), nil
}

// DeleteMessages removes the given message rows.
func (r *Repository) DeleteMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("public_id IN ?", messageIDs).
		Delete(&entities.Message{}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete messages",
			err,
			"0f1a2b3c-4d5e-46f7-8a9b-0c1d2e3f4a5b",
		)
	}
	return nil
}

// AddTreeEdge records a message's tree position. Messages are placed in the
// tree exactly once; a second insert for the same message is a validation
// failure.
func (r *Repository) AddTreeEdge(ctx context.Context, edge *domain.TreeEdge) error {
	entity := entities.NewSchemaMessageTree(edge)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeValidation,
				fmt.Sprintf("message already has a tree edge: %s", edge.MessageID),
				err,
				"1a2b3c4d-5e6f-47a8-9b0c-1d2e3f4a5b6c",
			)
		}
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create tree edge",
			err,
			"2b3c4d5e-6f7a-48b9-0c1d-2e3f4a5b6c7d",
		)
	}

	edge.Ord = int64(entity.ID)
	return nil
}

// GetTreeEdge fetches the edge for one message.
func (r *Repository) GetTreeEdge(ctx context.Context, messageID string) (*domain.TreeEdge, error) {
	var entity entities.MessageTree
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("tree edge not found for message: %s", messageID),
				nil,
				"3c4d5e6f-7a8b-49c0-1d2e-3f4a5b6c7d8e",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch tree edge",
			err,
			"4d5e6f7a-8b9c-40d1-2e3f-4a5b6c7d8e9f",
		)
	}
	return entity.EtoD(), nil
}

// GetTreeEdges returns every edge of a conversation in insertion order. The
// edge table does not carry conversation_id, so membership goes through the
// branch table.
func (r *Repository) GetTreeEdges(ctx context.Context, conversationID string) ([]domain.TreeEdge, error) {
	var rows []entities.MessageTree
	if err := r.db.WithContext(ctx).
		Where("branch_id IN (?)",
			r.db.Model(&entities.Branch{}).
				Select("public_id").
				Where("conversation_id = ?", conversationID),
		).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list tree edges",
			err,
			"5e6f7a8b-9c0d-41e2-3f4a-5b6c7d8e9f0a",
		)
	}
	return toDomainEdges(rows), nil
}

// GetBranchEdges returns the edges recorded directly under one branch.
func (r *Repository) GetBranchEdges(ctx context.Context, branchID string) ([]domain.TreeEdge, error) {
	var rows []entities.MessageTree
	if err := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list branch edges",
			err,
			"6f7a8b9c-0d1e-42f3-4a5b-6c7d8e9f0a1b",
		)
	}
	return toDomainEdges(rows), nil
}

// MarkBranchPoint sets the sticky is_branch_point flag on a message's edge.
func (r *Repository) MarkBranchPoint(ctx context.Context, messageID string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.MessageTree{}).
		Where("message_id = ?", messageID).
		Update("is_branch_point", true)
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to mark branch point",
			result.Error,
			"7a8b9c0d-1e2f-43a4-5b6c-7d8e9f0a1b2c",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("tree edge not found for message: %s", messageID),
			nil,
			"8b9c0d1e-2f3a-44b5-6c7d-8e9f0a1b2c3d",
		)
	}
	return nil
}

// ReparentEdge moves a message under a new parent and branch. Only tree
// repair calls this.
func (r *Repository) ReparentEdge(ctx context.Context, messageID string, newParentID *string, branchID string) error {
	result := r.db.WithContext(ctx).
		Model(&entities.MessageTree{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"parent_message_id": newParentID,
			"branch_id":         branchID,
		})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to reparent tree edge",
			result.Error,
			"9c0d1e2f-3a4b-45c6-7d8e-9f0a1b2c3d4e",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("tree edge not found for message: %s", messageID),
			nil,
			"0d1e2f3a-4b5c-46d7-8e9f-0a1b2c3d4e5f",
		)
	}
	return nil
}

// DeleteTreeEdges removes the edges of the given messages.
func (r *Repository) DeleteTreeEdges(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Delete(&entities.MessageTree{}).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete tree edges",
			err,
			"1e2f3a4b-5c6d-47e8-9f0a-1b2c3d4e5f6a",
		)
	}
	return nil
}

func toDomainMessages(rows []entities.Message) []domain.Message {
	out := make([]domain.Message, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].EtoD())
	}
	return out
}

func toDomainEdges(rows []entities.MessageTree) []domain.TreeEdge {
	out := make([]domain.TreeEdge, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].EtoD())
	}
	return out
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite surfaces constraint failures as plain errors.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
