package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleService interface {
	Create(ctx context.Context, actorID int64, req dto.CreateSaleRequest) (int64, error)
	Get(ctx context.Context, id int64) (*dto.SaleResponse, error)
	// Cancel is the only way out of confirmed: status change plus restitution.
	Cancel(ctx context.Context, actorID, id int64) error
	List(ctx context.Context, f dto.SaleFilter) (*dto.SaleListResponse, error)
	PaymentMethods(ctx context.Context) ([]dto.PaymentMethodResponse, error)
}

type saleService struct {
	repo        repository.SaleRepository
	engine      *ReservationEngine
	events      EventService
	refs        *ReferenceData
	verifyTotal bool
}

// NewSaleService builds the sale workflow. With verifyTotal the submitted
// total must match Σ price × quantity × (1 - discount) at two decimals.
func NewSaleService(
	repo repository.SaleRepository,
	engine *ReservationEngine,
	events EventService,
	refs *ReferenceData,
	verifyTotal bool,
) SaleService {
	return &saleService{repo: repo, engine: engine, events: events, refs: refs, verifyTotal: verifyTotal}
}

// ── Create ───────────────────────────────────────────────────────────────────

func (s *saleService) Create(ctx context.Context, actorID int64, req dto.CreateSaleRequest) (int64, error) {
	res, err := s.engine.Validate(ctx, ReservationRequest{
		ClientID:   req.ClientID,
		EmployeeID: req.EmployeeID,
		Products:   req.Products,
		Force:      req.ForceAddition,
	})
	if err != nil {
		return 0, err
	}

	if req.Discount.IsNegative() || req.Discount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 0, apierror.Validationf("El descuento debe estar entre 0 y 1 (exclusivo)")
	}
	total := req.TotalValue.Round(2)
	if s.verifyTotal {
		expected := res.Subtotal().Mul(decimal.NewFromInt(1).Sub(req.Discount)).Round(2)
		if !expected.Equal(total) {
			return 0, apierror.Validationf("El total informado %s no coincide con el calculado %s",
				total.StringFixed(2), expected.StringFixed(2))
		}
	}
	payments, err := s.validatePayments(ctx, req.Payments, total)
	if err != nil {
		return 0, err
	}

	sale := &model.Sale{
		ClientID:   res.Client.ID,
		EmployeeID: res.Employee.ID,
		Discount:   req.Discount,
		TotalValue: total,
		Status:     model.SaleConfirmed,
		Payments:   payments,
	}
	for _, l := range res.Lines {
		sale.Lines = append(sale.Lines, model.SaleLine{
			ProductID:           l.Product.ID,
			CustomizedProductID: l.Variant.ID,
			UnitPrice:           l.Variant.Price,
			Quantity:            l.Quantity,
		})
	}

	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, sale); err != nil {
			return err
		}
		if err := s.engine.ApplyTx(tx, res, model.MovementSaleReserve, "sale", sale.ID); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventSaleCreate, actorID,
			fmt.Sprintf("Venta %d de %s para el cliente %s", sale.ID, total.StringFixed(2), res.Client.Name))
	})
	if err != nil {
		return 0, txFailure("Error al registrar la venta", err)
	}
	s.engine.forgetReserved(ctx, res)

	log.Info().Int64("sale_id", sale.ID).Str("total", total.StringFixed(2)).Int("lines", len(sale.Lines)).Msg("sale created")
	return sale.ID, nil
}

func (s *saleService) validatePayments(ctx context.Context, in []dto.PaymentInput, total decimal.Decimal) ([]model.SalePayment, error) {
	if len(in) == 0 {
		return nil, apierror.Validationf("La venta debe tener al menos un pago")
	}
	out := make([]model.SalePayment, 0, len(in))
	sum := decimal.Zero
	for i, p := range in {
		if !p.Value.IsPositive() {
			return nil, apierror.Validationf("El pago %d debe tener valor mayor a cero", i+1)
		}
		_, ok, err := s.refs.Installment(ctx, p.PaymentMethodInstallmentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apierror.Validationf("Forma de pago %d inexistente", p.PaymentMethodInstallmentID)
		}
		value := p.Value.Round(2)
		sum = sum.Add(value)
		out = append(out, model.SalePayment{PaymentMethodInstallmentID: p.PaymentMethodInstallmentID, Value: value})
	}
	if !sum.Equal(total) {
		return nil, apierror.Validationf("La suma de los pagos %s no coincide con el total %s",
			sum.StringFixed(2), total.StringFixed(2))
	}
	return out, nil
}

// ── Get / Cancel ─────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, id int64) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Venta no encontrada")
		}
		return nil, err
	}
	if sale.Client == nil || sale.Employee == nil || len(sale.Lines) == 0 {
		return nil, apierror.NotFoundf("Venta no encontrada")
	}

	resp := &dto.SaleResponse{
		ID:         sale.ID,
		Status:     sale.Status,
		CreatedAt:  sale.CreatedAt,
		Client:     clientSnapshot(sale.Client),
		Employee:   employeeRef(sale.Employee),
		Discount:   sale.Discount,
		TotalValue: sale.TotalValue,
		Lines:      make([]dto.LineResponse, 0, len(sale.Lines)),
		Payments:   paymentResponses(sale.Payments),
	}
	for _, l := range sale.Lines {
		if l.Product == nil || l.Variant == nil {
			return nil, apierror.NotFoundf("Venta %d con items faltantes", sale.ID)
		}
		resp.Lines = append(resp.Lines, lineResponse(l.Product, l.Variant, l.UnitPrice, l.Quantity))
	}
	resp.PaymentSummary = paymentSummary(resp.Payments)
	return resp, nil
}

func (s *saleService) Cancel(ctx context.Context, actorID, id int64) error {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return apierror.NotFoundf("Venta no encontrada")
		}
		return err
	}
	if sale.Status == model.SaleCanceled {
		return apierror.Conflictf("La venta %d ya fue cancelada", id)
	}

	lines := make([]restitution, len(sale.Lines))
	for i, l := range sale.Lines {
		lines[i] = restitutionOf(l.CustomizedProductID, l.Quantity, l.Product)
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.TransitionTx(tx, id, model.SaleConfirmed, model.SaleCanceled); err != nil {
			return err
		}
		if err := s.engine.RestituteTx(tx, lines, model.MovementSaleCancel, "sale", id); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventSaleCancel, actorID, fmt.Sprintf("Venta %d cancelada", id))
	})
	if err != nil {
		return txFailure("Error al cancelar la venta", err)
	}
	s.engine.forgetRestituted(ctx, lines)

	log.Info().Int64("sale_id", id).Msg("sale canceled")
	return nil
}

// ── List ─────────────────────────────────────────────────────────────────────

func (s *saleService) List(ctx context.Context, f dto.SaleFilter) (*dto.SaleListResponse, error) {
	if f.Status != "" && f.Status != model.SaleConfirmed && f.Status != model.SaleCanceled {
		return nil, apierror.Validationf("Estado invalido: %s", f.Status)
	}
	orderBy, err := querybuilder.Resolve(repository.SaleOrderColumns, f.OrderBy, "sales.id")
	if err != nil {
		return nil, apierror.Validationf("order_by invalido: %s", f.OrderBy)
	}
	from, err := dto.ParseDate(f.CreatedFrom)
	if err != nil {
		return nil, apierror.Validationf("created_from invalido, formato esperado %s", dto.DateLayout)
	}
	to, err := dto.ParseDate(f.CreatedTo)
	if err != nil {
		return nil, apierror.Validationf("created_to invalido, formato esperado %s", dto.DateLayout)
	}

	sales, total, err := s.repo.List(ctx, repository.SaleCriteria{
		ID:          f.ID,
		ClientName:  f.ClientName,
		Status:      f.Status,
		CreatedFrom: from,
		CreatedTo:   to,
		TotalMin:    f.TotalMin,
		TotalMax:    f.TotalMax,
		OrderBy:     orderBy,
		OrderAsc:    f.OrderByAsc,
		Limit:       f.Limit,
		Offset:      f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	resp := &dto.SaleListResponse{Count: total, Sales: make([]dto.SaleListItem, len(sales))}
	for i := range sales {
		resp.Sales[i] = saleListItem(&sales[i])
	}
	return resp, nil
}

func (s *saleService) PaymentMethods(ctx context.Context) ([]dto.PaymentMethodResponse, error) {
	return s.refs.PaymentMethods(ctx)
}

func saleListItem(sale *model.Sale) dto.SaleListItem {
	item := dto.SaleListItem{
		ID:             sale.ID,
		Status:         sale.Status,
		CreatedAt:      sale.CreatedAt,
		TotalValue:     sale.TotalValue,
		PaymentSummary: paymentSummary(paymentResponses(sale.Payments)),
	}
	if sale.Client != nil {
		item.ClientName = sale.Client.Name
	}
	if sale.Employee != nil {
		item.EmployeeName = employeeRef(sale.Employee).Name
	}
	return item
}

func paymentResponses(payments []model.SalePayment) []dto.PaymentResponse {
	out := make([]dto.PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = dto.PaymentResponse{PaymentMethodInstallmentID: p.PaymentMethodInstallmentID, Value: p.Value}
		if p.Installment != nil {
			out[i].Installments = p.Installment.Installments
			if p.Installment.PaymentMethod != nil {
				out[i].PaymentMethodName = p.Installment.PaymentMethod.Name
			}
		}
	}
	return out
}

// paymentSummary renders "Pix 1x 10.00, Cartao de credito 3x 90.00".
func paymentSummary(payments []dto.PaymentResponse) string {
	parts := make([]string, len(payments))
	for i, p := range payments {
		parts[i] = fmt.Sprintf("%s %dx %s", p.PaymentMethodName, p.Installments, p.Value.StringFixed(2))
	}
	return strings.Join(parts, ", ")
}
