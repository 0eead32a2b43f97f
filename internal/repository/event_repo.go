package repository

import (
	"context"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"

	"gorm.io/gorm"
)

type EventCriteria struct {
	UserID      *int64
	EventNameID *int64
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

type EventRepository interface {
	CreateTx(tx *gorm.DB, e *model.Event) error
	List(ctx context.Context, c EventCriteria) ([]model.Event, int64, error)
}

type eventRepo struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) EventRepository { return &eventRepo{db: db} }

func (r *eventRepo) CreateTx(tx *gorm.DB, e *model.Event) error {
	return tx.Create(e).Error
}

func (r *eventRepo) List(ctx context.Context, c EventCriteria) ([]model.Event, int64, error) {
	q := querybuilder.New().
		Where("user_id", querybuilder.Eq, c.UserID).
		Where("event_name_id", querybuilder.Eq, c.EventNameID).
		Where("created_at", querybuilder.Gte, c.From).
		Where("created_at", querybuilder.Lte, c.To)

	var total int64
	if err := q.CountScope(r.db.WithContext(ctx).Model(&model.Event{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []model.Event
	err := q.OrderBy("created_at", false).Page(c.Limit, c.Offset).
		Scope(r.db.WithContext(ctx).Model(&model.Event{})).
		Find(&events).Error
	return events, total, err
}
