package service

import (
	"context"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/cache"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReservationRequest is the part of a conditional or sale order that touches
// stock.
type ReservationRequest struct {
	ClientID   int64
	EmployeeID int64
	Products   []dto.ReservationProductInput
	// Force lets a line exceed the available quantity. Stock still floors at zero.
	Force bool
}

// ReservedLine is one validated order line.
type ReservedLine struct {
	Product  *model.Product
	Variant  *model.CustomizedProduct
	Quantity int
}

// Reservation is a validated order, ready to be applied.
type Reservation struct {
	Client   *model.Client
	Employee *model.Employee
	Lines    []ReservedLine
	Force    bool
}

// codes lists the product codes the order touches.
func (r *Reservation) codes() []string {
	out := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, l.Product.Code)
	}
	return out
}

// Subtotal is Σ price × quantity at current variant prices.
func (r *Reservation) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(lineSubtotal(l.Variant.Price, l.Quantity))
	}
	return total
}

func lineSubtotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// ReservationEngine validates multi-line orders against the catalog and
// applies them: stock decrement, immutability marking and stock ledger.
// store is the cache holding the product-by-code views it invalidates.
type ReservationEngine struct {
	products  repository.ProductRepository
	clients   repository.ClientRepository
	users     repository.UserRepository
	movements repository.StockMovementRepository
	store     cache.Store
}

func NewReservationEngine(
	products repository.ProductRepository,
	clients repository.ClientRepository,
	users repository.UserRepository,
	movements repository.StockMovementRepository,
	store cache.Store,
) *ReservationEngine {
	return &ReservationEngine{products: products, clients: clients, users: users, movements: movements, store: store}
}

// Validate checks the order and fails on the first broken rule. Nothing is
// written.
func (e *ReservationEngine) Validate(ctx context.Context, req ReservationRequest) (*Reservation, error) {
	client, err := e.clients.FindByID(ctx, req.ClientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Cliente %d no encontrado", req.ClientID)
		}
		return nil, err
	}

	employee, err := e.users.FindEmployee(ctx, req.EmployeeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Empleado %d no encontrado", req.EmployeeID)
		}
		return nil, err
	}
	if employee.User == nil {
		return nil, apierror.NotFoundf("Empleado %d no encontrado", req.EmployeeID)
	}
	if !employee.Active {
		return nil, apierror.Validationf("El empleado %s esta inactivo", employee.User.Name)
	}
	if !employee.User.EntryAllowed {
		return nil, apierror.Validationf("El empleado %s no tiene permiso de ingreso", employee.User.Name)
	}

	if len(req.Products) == 0 {
		return nil, apierror.Validationf("El pedido no tiene productos")
	}

	res := &Reservation{Client: client, Employee: employee, Force: req.Force}
	loaded := make(map[int64]*model.Product, len(req.Products))
	requested := make(map[int64]int)

	for _, in := range req.Products {
		p, ok := loaded[in.ProductID]
		if !ok {
			p, err = e.products.FindByID(ctx, in.ProductID)
			if err != nil {
				if repository.IsNotFound(err) {
					return nil, apierror.NotFoundf("Producto %d no encontrado", in.ProductID)
				}
				return nil, err
			}
			loaded[in.ProductID] = p
		}
		if !p.IsActive {
			return nil, apierror.Validationf("El producto %s esta inactivo", p.Code)
		}
		if len(in.Variants) == 0 {
			return nil, apierror.Validationf("El producto %s no tiene variaciones seleccionadas", p.Code)
		}

		for _, vin := range in.Variants {
			if vin.CustomizedProductID == nil {
				return nil, apierror.Validationf("Falta customized_product_id en una variacion del producto %s", p.Code)
			}
			if vin.Quantity == nil {
				return nil, apierror.Validationf("Falta la cantidad de la variacion %d del producto %s", *vin.CustomizedProductID, p.Code)
			}
			if *vin.Quantity <= 0 {
				return nil, apierror.Validationf("La cantidad de la variacion %d del producto %s debe ser mayor a cero", *vin.CustomizedProductID, p.Code)
			}
			v := findVariant(p, *vin.CustomizedProductID)
			if v == nil {
				return nil, apierror.NotFoundf("La variacion %d no pertenece al producto %s", *vin.CustomizedProductID, p.Code)
			}
			if !v.IsActive {
				return nil, apierror.Validationf("La variacion %d del producto %s esta inactiva", v.ID, p.Code)
			}
			requested[v.ID] += *vin.Quantity
			if !req.Force && requested[v.ID] > v.Quantity {
				return nil, apierror.Validationf(
					"Stock insuficiente para la variacion %d del producto %s: disponible %d, solicitado %d",
					v.ID, p.Code, v.Quantity, requested[v.ID])
			}
			res.Lines = append(res.Lines, ReservedLine{Product: p, Variant: v, Quantity: *vin.Quantity})
		}
	}
	return res, nil
}

func findVariant(p *model.Product, id int64) *model.CustomizedProduct {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}

// ApplyTx marks every referenced product and variant immutable, takes the
// reserved quantities out of stock and records one movement per line. The
// parent row must already exist: refKind/refID point the ledger at it.
func (e *ReservationEngine) ApplyTx(tx *gorm.DB, res *Reservation, kind, refKind string, refID int64) error {
	marked := make(map[int64]bool, len(res.Lines))
	for _, l := range res.Lines {
		if !marked[l.Product.ID] {
			if err := e.products.MarkImmutableTx(tx, l.Product.ID); err != nil {
				return err
			}
			marked[l.Product.ID] = true
		}
		after, err := e.products.ReserveVariantTx(tx, l.Variant.ID, l.Quantity, res.Force)
		if err != nil {
			return err
		}
		if err := e.movements.CreateTx(tx, &model.StockMovement{
			CustomizedProductID: l.Variant.ID,
			Kind:                kind,
			Delta:               -l.Quantity,
			QuantityAfter:       after,
			ReferenceKind:       refKind,
			ReferenceID:         &refID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RestituteTx puts quantities back into stock, one movement per line.
func (e *ReservationEngine) RestituteTx(tx *gorm.DB, lines []restitution, kind, refKind string, refID int64) error {
	for _, l := range lines {
		after, err := e.products.RestituteVariantTx(tx, l.variantID, l.quantity)
		if err != nil {
			return err
		}
		if err := e.movements.CreateTx(tx, &model.StockMovement{
			CustomizedProductID: l.variantID,
			Kind:                kind,
			Delta:               l.quantity,
			QuantityAfter:       after,
			ReferenceKind:       refKind,
			ReferenceID:         &refID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// forgetReserved drops the cached views of every product the reservation
// touched. Call it once the transaction holding ApplyTx has committed.
func (e *ReservationEngine) forgetReserved(ctx context.Context, res *Reservation) {
	forgetProductCodes(ctx, e.store, res.codes()...)
}

// forgetRestituted is forgetReserved for a RestituteTx.
func (e *ReservationEngine) forgetRestituted(ctx context.Context, lines []restitution) {
	codes := make([]string, 0, len(lines))
	for _, l := range lines {
		codes = append(codes, l.code)
	}
	forgetProductCodes(ctx, e.store, codes...)
}

type restitution struct {
	variantID int64
	quantity  int
	code      string
}

// restitutionOf returns what a stored line gives back to stock.
func restitutionOf(variantID int64, quantity int, p *model.Product) restitution {
	r := restitution{variantID: variantID, quantity: quantity}
	if p != nil {
		r.code = p.Code
	}
	return r
}
