package service

import (
	"context"
	"fmt"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"gorm.io/gorm"
)

// Event names, as seeded in event_names.
const (
	EventLogin             = "login"
	EventProductCreate     = "product_create"
	EventProductUpdate     = "product_update"
	EventProductFork       = "product_fork"
	EventProductDelete     = "product_delete"
	EventConditionalCreate = "conditional_create"
	EventConditionalStatus = "conditional_status"
	EventSaleCreate        = "sale_create"
	EventSaleCancel        = "sale_cancel"
	EventClientCreate      = "client_create"
	EventClientUpdate      = "client_update"
	EventEmployeeUpdate    = "employee_update"
	EventUserApprove       = "user_approve"
	EventUserDeny          = "user_deny"
)

type EventService interface {
	// RecordTx appends an event inside the caller's transaction.
	RecordTx(ctx context.Context, tx *gorm.DB, name string, userID int64, description string) error
	List(ctx context.Context, f dto.EventFilter) (*dto.EventListResponse, error)
}

type eventService struct {
	repo repository.EventRepository
	refs *ReferenceData
}

func NewEventService(repo repository.EventRepository, refs *ReferenceData) EventService {
	return &eventService{repo: repo, refs: refs}
}

func (s *eventService) RecordTx(ctx context.Context, tx *gorm.DB, name string, userID int64, description string) error {
	id, err := s.refs.EventID(ctx, name)
	if err != nil {
		return err
	}
	return s.repo.CreateTx(tx, &model.Event{EventNameID: id, UserID: userID, Description: description})
}

func (s *eventService) List(ctx context.Context, f dto.EventFilter) (*dto.EventListResponse, error) {
	from, err := dto.ParseDate(f.From)
	if err != nil {
		return nil, apierror.Validationf("Fecha inicial invalida, formato esperado %s", dto.DateLayout)
	}
	to, err := dto.ParseDate(f.To)
	if err != nil {
		return nil, apierror.Validationf("Fecha final invalida, formato esperado %s", dto.DateLayout)
	}
	events, total, err := s.repo.List(ctx, repository.EventCriteria{
		UserID:      f.UserID,
		EventNameID: f.EventNameID,
		From:        from,
		To:          to,
		Limit:       f.Limit,
		Offset:      f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	names, err := s.refs.EventNamesByID(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.EventListResponse{Count: total, Events: make([]dto.EventResponse, len(events))}
	for i, e := range events {
		resp.Events[i] = dto.EventResponse{
			ID:          e.ID,
			Name:        names[e.EventNameID],
			UserID:      e.UserID,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}
	}
	return resp, nil
}
