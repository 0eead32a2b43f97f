package service

import (
	"context"
	"fmt"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ConditionalService interface {
	Create(ctx context.Context, actorID int64, req dto.CreateConditionalRequest) (int64, error)
	Get(ctx context.Context, id int64) (*dto.ConditionalResponse, error)
	// PatchStatus moves a pending conditional to returned or canceled and
	// puts its stock back. Asking for the current status is a no-op.
	PatchStatus(ctx context.Context, actorID, id int64, status string) error
	List(ctx context.Context, f dto.ConditionalFilter) (*dto.ConditionalListResponse, error)
}

type conditionalService struct {
	repo   repository.ConditionalRepository
	engine *ReservationEngine
	events EventService
}

func NewConditionalService(repo repository.ConditionalRepository, engine *ReservationEngine, events EventService) ConditionalService {
	return &conditionalService{repo: repo, engine: engine, events: events}
}

func (s *conditionalService) Create(ctx context.Context, actorID int64, req dto.CreateConditionalRequest) (int64, error) {
	res, err := s.engine.Validate(ctx, ReservationRequest{
		ClientID:   req.ClientID,
		EmployeeID: req.EmployeeID,
		Products:   req.Products,
		Force:      req.ForceAddition,
	})
	if err != nil {
		return 0, err
	}

	c := &model.Conditional{
		ClientID:   res.Client.ID,
		EmployeeID: res.Employee.ID,
		Status:     model.ConditionalPending,
	}
	for _, l := range res.Lines {
		c.Lines = append(c.Lines, model.ConditionalLine{
			ProductID:           l.Product.ID,
			CustomizedProductID: l.Variant.ID,
			Quantity:            l.Quantity,
		})
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, c); err != nil {
			return err
		}
		if err := s.engine.ApplyTx(tx, res, model.MovementConditionalReserve, "conditional", c.ID); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventConditionalCreate, actorID,
			fmt.Sprintf("Condicional %d para el cliente %s", c.ID, res.Client.Name))
	})
	if err != nil {
		return 0, txFailure("Error al registrar el condicional", err)
	}
	s.engine.forgetReserved(ctx, res)

	log.Info().Int64("conditional_id", c.ID).Int("lines", len(c.Lines)).Msg("conditional created")
	return c.ID, nil
}

func (s *conditionalService) Get(ctx context.Context, id int64) (*dto.ConditionalResponse, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Condicional no encontrado")
		}
		return nil, err
	}
	if c.Client == nil || c.Employee == nil || len(c.Lines) == 0 {
		return nil, apierror.NotFoundf("Condicional no encontrado")
	}

	resp := &dto.ConditionalResponse{
		ID:         c.ID,
		Status:     c.Status,
		CreatedAt:  c.CreatedAt,
		Client:     clientSnapshot(c.Client),
		Employee:   employeeRef(c.Employee),
		Lines:      make([]dto.LineResponse, 0, len(c.Lines)),
		TotalValue: decimal.Zero,
	}
	for _, l := range c.Lines {
		if l.Product == nil || l.Variant == nil {
			return nil, apierror.NotFoundf("Condicional %d con items faltantes", c.ID)
		}
		line := lineResponse(l.Product, l.Variant, l.Variant.Price, l.Quantity)
		resp.Lines = append(resp.Lines, line)
		resp.TotalQuantity += l.Quantity
		resp.TotalValue = resp.TotalValue.Add(line.Subtotal)
	}
	return resp, nil
}

func validConditionalStatus(status string) bool {
	switch status {
	case model.ConditionalPending, model.ConditionalReturned, model.ConditionalCanceled:
		return true
	}
	return false
}

func (s *conditionalService) PatchStatus(ctx context.Context, actorID, id int64, status string) error {
	if !validConditionalStatus(status) {
		return apierror.Validationf("Estado invalido: %s", status)
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return apierror.NotFoundf("Condicional no encontrado")
		}
		return err
	}
	if c.Status == status {
		return nil
	}
	switch c.Status {
	case model.ConditionalCanceled:
		return apierror.Conflictf("El condicional %d ya fue cancelado", id)
	case model.ConditionalReturned:
		return apierror.Conflictf("El condicional %d ya fue devuelto", id)
	}

	kind := model.MovementConditionalReturn
	if status == model.ConditionalCanceled {
		kind = model.MovementConditionalCancel
	}
	lines := make([]restitution, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = restitutionOf(l.CustomizedProductID, l.Quantity, l.Product)
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		// Status first: a lost race aborts before any stock moves.
		if err := s.repo.TransitionTx(tx, id, c.Status, status); err != nil {
			return err
		}
		if err := s.engine.RestituteTx(tx, lines, kind, "conditional", id); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventConditionalStatus, actorID,
			fmt.Sprintf("Condicional %d: %s -> %s", id, c.Status, status))
	})
	if err != nil {
		return txFailure("Error al actualizar el condicional", err)
	}
	s.engine.forgetRestituted(ctx, lines)

	log.Info().Int64("conditional_id", id).Str("from", c.Status).Str("to", status).Msg("conditional status changed")
	return nil
}

func (s *conditionalService) List(ctx context.Context, f dto.ConditionalFilter) (*dto.ConditionalListResponse, error) {
	criteria, err := conditionalCriteria(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("listing conditionals: %w", err)
	}
	counts, err := s.repo.Counts(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("counting conditionals: %w", err)
	}

	resp := &dto.ConditionalListResponse{
		TotalQuantity: counts.Total,
		Conditionals:  make([]dto.ConditionalListItem, len(rows)),
		Summary: dto.ConditionalSummary{
			Total:    counts.Total,
			Pending:  counts.Pending,
			Returned: counts.Returned,
			Canceled: counts.Canceled,
		},
	}
	for i, r := range rows {
		resp.Conditionals[i] = dto.ConditionalListItem{
			ID:           r.ID,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt,
			ClientName:   r.ClientName,
			EmployeeName: r.EmployeeName,
		}
	}
	return resp, nil
}

func conditionalCriteria(f dto.ConditionalFilter) (repository.ConditionalCriteria, error) {
	var c repository.ConditionalCriteria
	if f.Status != "" && !validConditionalStatus(f.Status) {
		return c, apierror.Validationf("Estado invalido: %s", f.Status)
	}
	orderBy, err := querybuilder.Resolve(repository.ConditionalOrderColumns, f.OrderBy, "cond.id")
	if err != nil {
		return c, apierror.Validationf("order_by invalido: %s", f.OrderBy)
	}
	from, err := dto.ParseDate(f.CreatedFrom)
	if err != nil {
		return c, apierror.Validationf("created_from invalido, formato esperado %s", dto.DateLayout)
	}
	to, err := dto.ParseDate(f.CreatedTo)
	if err != nil {
		return c, apierror.Validationf("created_to invalido, formato esperado %s", dto.DateLayout)
	}
	return repository.ConditionalCriteria{
		ID:          f.ID,
		ClientName:  f.ClientName,
		Status:      f.Status,
		CreatedFrom: from,
		CreatedTo:   to,
		OrderBy:     orderBy,
		OrderAsc:    f.OrderByAsc,
		Limit:       f.Limit,
		Offset:      f.Offset,
	}, nil
}

// ── Shared receipt mapping ───────────────────────────────────────────────────

func clientSnapshot(c *model.Client) dto.ClientSnapshot {
	return dto.ClientSnapshot{
		ID:           c.ID,
		Name:         c.Name,
		CPF:          c.CPF,
		Mail:         c.Mail,
		Phone:        c.Phone,
		Address:      c.Address,
		Number:       c.Number,
		Neighborhood: c.Neighborhood,
		City:         c.City,
		State:        c.State,
		CEP:          c.CEP,
	}
}

func employeeRef(e *model.Employee) dto.EmployeeRef {
	ref := dto.EmployeeRef{ID: e.ID}
	if e.User != nil {
		ref.Name = e.User.Name
	}
	return ref
}

func lineResponse(p *model.Product, v *model.CustomizedProduct, price decimal.Decimal, qty int) dto.LineResponse {
	l := dto.LineResponse{
		ProductID:           p.ID,
		ProductCode:         p.Code,
		ProductName:         p.Name,
		CustomizedProductID: v.ID,
		UnitPrice:           price,
		Quantity:            qty,
		Subtotal:            lineSubtotal(price, qty),
	}
	if v.Color != nil {
		l.ColorName = &v.Color.Name
	}
	if v.Other != nil {
		l.OtherName = &v.Other.Name
	}
	if v.Size != nil {
		l.SizeName = v.Size.Name
	}
	return l
}
