// Package uow implements the unit-of-work transaction manager: one database
// transaction with all three repositories bound to it.
package uow

import (
	"context"

	"gorm.io/gorm"

	domain "jan-server/services/conversation-api/internal/domain/conversation"
	branchrepo "jan-server/services/conversation-api/internal/infrastructure/repository/branch"
	convrepo "jan-server/services/conversation-api/internal/infrastructure/repository/conversation"
	msgrepo "jan-server/services/conversation-api/internal/infrastructure/repository/message"
	"jan-server/services/conversation-api/internal/utils/platformerrors"
)

// Manager runs callbacks inside a single GORM transaction.
type Manager struct {
	db *gorm.DB
}

// NewManager builds a transaction manager.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

var _ domain.TxManager = (*Manager)(nil)

// NewRepos binds repositories to a database handle. Callers outside a
// transaction use this with the root handle.
func NewRepos(db *gorm.DB) domain.Repos {
	return domain.Repos{
		Conversations: convrepo.NewRepository(db),
		Messages:      msgrepo.NewRepository(db),
		Branches:      branchrepo.NewRepository(db),
	}
}

// RunInTx executes fn inside one transaction. Any error from fn rolls the
// whole transaction back, so multi-row writes are all-or-nothing.
func (m *Manager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repos) error) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepos(tx))
	})
	if err == nil {
		return nil
	}
	return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "transaction failed")
}
