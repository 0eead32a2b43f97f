package service

import (
	"context"
	"fmt"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EmployeeService interface {
	List(ctx context.Context) ([]dto.EmployeeResponse, error)
	Get(ctx context.Context, id int64) (*dto.EmployeeResponse, error)
	Update(ctx context.Context, actorID, id int64, req dto.UpdateEmployeeRequest) (*dto.EmployeeResponse, error)
	Sales(ctx context.Context, id int64, f dto.EmployeeSalesFilter) (*dto.EmployeeSalesResponse, error)
	// Summary aggregates confirmed sales per payment method.
	Summary(ctx context.Context, id int64, f dto.EmployeeSalesFilter) (*dto.EmployeeSummaryResponse, error)
}

type employeeService struct {
	users  repository.UserRepository
	sales  repository.SaleRepository
	events EventService
}

func NewEmployeeService(users repository.UserRepository, sales repository.SaleRepository, events EventService) EmployeeService {
	return &employeeService{users: users, sales: sales, events: events}
}

func (s *employeeService) find(ctx context.Context, id int64) (*model.Employee, error) {
	e, err := s.users.FindEmployee(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Empleado no encontrado")
		}
		return nil, err
	}
	if e.User == nil {
		return nil, apierror.NotFoundf("Empleado no encontrado")
	}
	return e, nil
}

func (s *employeeService) List(ctx context.Context) ([]dto.EmployeeResponse, error) {
	employees, err := s.users.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EmployeeResponse, 0, len(employees))
	for i := range employees {
		if employees[i].User != nil {
			out = append(out, employeeToResponse(&employees[i]))
		}
	}
	return out, nil
}

func (s *employeeService) Get(ctx context.Context, id int64) (*dto.EmployeeResponse, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := employeeToResponse(e)
	return &resp, nil
}

func (s *employeeService) Update(ctx context.Context, actorID, id int64, req dto.UpdateEmployeeRequest) (*dto.EmployeeResponse, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if req.Commission != nil {
		if req.Commission.IsNegative() || req.Commission.GreaterThan(decimal.NewFromInt(1)) {
			return nil, apierror.Validationf("La comision debe estar entre 0 y 1")
		}
		fields["commission"] = *req.Commission
		e.Commission = *req.Commission
	}
	if req.Active != nil {
		fields["active"] = *req.Active
		e.Active = *req.Active
	}

	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		if err := s.users.UpdateEmployeeTx(tx, id, fields); err != nil {
			return err
		}
		if req.EntryAllowed != nil {
			if err := s.users.UpdateEntryAllowedTx(tx, id, *req.EntryAllowed); err != nil {
				return err
			}
			e.User.EntryAllowed = *req.EntryAllowed
		}
		return s.events.RecordTx(ctx, tx, EventEmployeeUpdate, actorID, fmt.Sprintf("Empleado %d actualizado", id))
	})
	if err != nil {
		return nil, txFailure("Error al actualizar el empleado", err)
	}
	resp := employeeToResponse(e)
	return &resp, nil
}

func (s *employeeService) Sales(ctx context.Context, id int64, f dto.EmployeeSalesFilter) (*dto.EmployeeSalesResponse, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	from, to, err := parseRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	sales, total, err := s.sales.List(ctx, repository.SaleCriteria{
		EmployeeID:  &id,
		CreatedFrom: from,
		CreatedTo:   to,
		OrderBy:     "sales.created_at",
		Limit:       f.Limit,
		Offset:      f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing employee sales: %w", err)
	}

	resp := &dto.EmployeeSalesResponse{Count: total, Sales: make([]dto.EmployeeSaleItem, len(sales))}
	for i := range sales {
		item := saleListItem(&sales[i])
		commission := decimal.Zero
		if sales[i].Status == model.SaleConfirmed {
			commission = sales[i].TotalValue.Mul(e.Commission).Round(2)
		}
		resp.Sales[i] = dto.EmployeeSaleItem{
			SaleID:         item.ID,
			CreatedAt:      item.CreatedAt,
			Status:         item.Status,
			ClientName:     item.ClientName,
			TotalValue:     item.TotalValue,
			Commission:     commission,
			PaymentSummary: item.PaymentSummary,
		}
	}
	return resp, nil
}

func (s *employeeService) Summary(ctx context.Context, id int64, f dto.EmployeeSalesFilter) (*dto.EmployeeSummaryResponse, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	from, to, err := parseRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	totals, err := s.sales.TotalsByPaymentMethod(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("summarizing employee sales: %w", err)
	}

	resp := &dto.EmployeeSummaryResponse{
		Methods:         make([]dto.EmployeeSummaryItem, len(totals)),
		TotalValue:      decimal.Zero,
		TotalCommission: decimal.Zero,
	}
	for i, t := range totals {
		commission := t.Value.Mul(e.Commission).Round(2)
		resp.Methods[i] = dto.EmployeeSummaryItem{
			PaymentMethodID:   t.PaymentMethodID,
			PaymentMethodName: t.PaymentMethodName,
			Sales:             t.Sales,
			Value:             t.Value,
			Commission:        commission,
		}
		resp.TotalSales += t.Sales
		resp.TotalValue = resp.TotalValue.Add(t.Value)
		resp.TotalCommission = resp.TotalCommission.Add(commission)
	}
	return resp, nil
}

func parseRange(fromStr, toStr string) (from, to *time.Time, err error) {
	if from, err = dto.ParseDate(fromStr); err != nil {
		return nil, nil, apierror.Validationf("Fecha inicial invalida, formato esperado %s", dto.DateLayout)
	}
	if to, err = dto.ParseDate(toStr); err != nil {
		return nil, nil, apierror.Validationf("Fecha final invalida, formato esperado %s", dto.DateLayout)
	}
	return from, to, nil
}

func employeeToResponse(e *model.Employee) dto.EmployeeResponse {
	return dto.EmployeeResponse{
		ID:           e.ID,
		Name:         e.User.Name,
		Mail:         e.User.Mail,
		Type:         e.User.Type,
		EntryAllowed: e.User.EntryAllowed,
		Active:       e.Active,
		Commission:   e.Commission,
	}
}
