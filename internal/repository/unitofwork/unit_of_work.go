package unitofwork

import (
	"context"

	"literature-agent-be/internal/repository/contract"
	"literature-agent-be/internal/repository/implementation"

	"gorm.io/gorm"
)

// UnitOfWork hands out repositories bound to one transaction
type UnitOfWork interface {
	ChatTurnRepository() contract.ChatTurnRepository
}

// Transactor runs fn inside a transaction. fn's error rolls everything back.
type Transactor interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type gormUnitOfWork struct {
	tx *gorm.DB
}

func (u *gormUnitOfWork) ChatTurnRepository() contract.ChatTurnRepository {
	return implementation.NewChatTurnRepository(u.tx)
}

type gormTransactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Do(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormUnitOfWork{tx: tx})
	})
}
