package implementation

import (
	"context"

	"literature-agent-be/internal/entity"
	"literature-agent-be/internal/mapper"
	"literature-agent-be/internal/model"
	"literature-agent-be/internal/repository/contract"
	"literature-agent-be/internal/repository/scope"
	"literature-agent-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ChatTurnRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatTurnRepository(db *gorm.DB) contract.ChatTurnRepository {
	return &ChatTurnRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatTurnRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatTurnRepositoryImpl) CreateBulk(ctx context.Context, turns []*entity.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	models := make([]*model.ChatTurn, 0, len(turns))
	for _, t := range turns {
		models = append(models, r.mapper.ChatTurnToModel(t))
	}
	return r.db.WithContext(ctx).Create(&models).Error
}

func (r *ChatTurnRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error) {
	var models []*model.ChatTurn
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatTurn{}), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatTurnsToEntities(models), nil
}

func (r *ChatTurnRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatTurn{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatTurnRepositoryImpl) TrimSession(ctx context.Context, sessionId string, keep int) (int64, error) {
	newest := r.db.WithContext(ctx).Model(&model.ChatTurn{}).
		Scopes(scope.ForSession(sessionId), scope.OrderByCreatedDesc).
		Select("id").
		Limit(keep)

	result := r.db.WithContext(ctx).
		Scopes(scope.ForSession(sessionId)).
		Where("id NOT IN (?)", newest).
		Delete(&model.ChatTurn{})
	return result.RowsAffected, result.Error
}
