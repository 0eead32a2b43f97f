package service

import (
	"context"
	"fmt"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/cache"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const productCodeTTL = 4 * time.Hour

func productCodeKey(code string) string { return "product:code:" + code }

type CatalogService interface {
	// Create returns the id of the new product.
	Create(ctx context.Context, actorID int64, req dto.ProductRequest) (int64, error)
	// Update returns the id the product lives under afterwards, which differs
	// from id when an immutable product was forked.
	Update(ctx context.Context, actorID, id int64, req dto.ProductRequest) (int64, error)
	// Delete removes the product, or deactivates it when it is referenced.
	// A deactivated product is gone for Update and Delete alike (NotFound).
	Delete(ctx context.Context, actorID, id int64) error
	GetByCode(ctx context.Context, code string) (*dto.ProductResponse, error)
	List(ctx context.Context, f dto.ProductFilter) (*dto.ProductListResponse, error)
	Info(ctx context.Context) (*dto.ProductInfoResponse, error)
	Movements(ctx context.Context, productID int64, limit, offset int) ([]dto.StockMovementResponse, int64, error)
}

type catalogService struct {
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	events    EventService
	refs      *ReferenceData
	store     cache.Store
}

func NewCatalogService(
	products repository.ProductRepository,
	movements repository.StockMovementRepository,
	events EventService,
	refs *ReferenceData,
	store cache.Store,
) CatalogService {
	return &catalogService{
		products:  products,
		movements: movements,
		events:    events,
		refs:      refs,
		store:     store,
	}
}

// ── Validation ───────────────────────────────────────────────────────────────

// validate runs the create/update rules in order. excludeID is the product
// being edited, 0 on create.
func (s *catalogService) validate(ctx context.Context, req dto.ProductRequest, excludeID int64) error {
	taken, err := s.products.ActiveCodeTaken(ctx, req.Code, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflictf("Ya existe un producto activo con el codigo %s", req.Code)
	}
	taken, err = s.products.ActiveNameTaken(ctx, req.Name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Conflictf("Ya existe un producto activo con el nombre %s", req.Name)
	}

	if len(req.Variants) == 0 {
		return apierror.Validationf("El producto debe tener al menos una variacion")
	}
	seen := make(map[model.VariantTuple]bool, len(req.Variants))
	for i, v := range req.Variants {
		if v.SizeID == nil {
			return apierror.Validationf("La variacion %d no tiene tamano", i+1)
		}
		t := model.NewVariantTuple(v.ColorID, v.OtherID, *v.SizeID)
		if seen[t] {
			return apierror.Validationf("La variacion %d repite color, otro y tamano de otra variacion", i+1)
		}
		seen[t] = true
		if !v.Price.IsPositive() {
			return apierror.Validationf("La variacion %d debe tener precio mayor a cero", i+1)
		}
		if v.Quantity < 0 {
			return apierror.Validationf("La variacion %d no puede tener cantidad negativa", i+1)
		}
	}
	return s.validateReferences(ctx, req)
}

func (s *catalogService) validateReferences(ctx context.Context, req dto.ProductRequest) error {
	l, err := s.refs.Lookups(ctx)
	if err != nil {
		return err
	}
	has := func(items []dto.LookupItem, id int64) bool {
		for _, it := range items {
			if it.ID == id {
				return true
			}
		}
		return false
	}
	for _, id := range req.CollectionIDs {
		if !has(l.Collections, id) {
			return apierror.Validationf("Coleccion %d inexistente", id)
		}
	}
	for _, id := range req.TypeIDs {
		if !has(l.Types, id) {
			return apierror.Validationf("Tipo %d inexistente", id)
		}
	}
	for _, v := range req.Variants {
		if !has(l.Sizes, *v.SizeID) {
			return apierror.Validationf("Tamano %d inexistente", *v.SizeID)
		}
		if v.ColorID != nil && !has(l.Colors, *v.ColorID) {
			return apierror.Validationf("Color %d inexistente", *v.ColorID)
		}
		if v.OtherID != nil && !has(l.Others, *v.OtherID) {
			return apierror.Validationf("Atributo %d inexistente", *v.OtherID)
		}
	}
	return nil
}

// ── Create ───────────────────────────────────────────────────────────────────

func (s *catalogService) Create(ctx context.Context, actorID int64, req dto.ProductRequest) (int64, error) {
	if err := s.validate(ctx, req, 0); err != nil {
		return 0, err
	}

	p := &model.Product{Code: req.Code, Name: req.Name, Observations: req.Observations, IsActive: true}
	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		if err := s.products.CreateTx(tx, p); err != nil {
			return err
		}
		if err := s.products.AddLinksTx(tx, p.ID, req.CollectionIDs, req.TypeIDs); err != nil {
			return err
		}
		for _, in := range req.Variants {
			if err := s.insertVariant(tx, p.ID, in); err != nil {
				return err
			}
		}
		return s.events.RecordTx(ctx, tx, EventProductCreate, actorID, fmt.Sprintf("Producto %s creado", p.Code))
	})
	if err != nil {
		return 0, txFailure("Error al crear el producto", err)
	}

	s.forgetCode(ctx, p.Code)
	log.Info().Int64("product_id", p.ID).Str("code", p.Code).Msg("product created")
	return p.ID, nil
}

func (s *catalogService) insertVariant(tx *gorm.DB, productID int64, in dto.VariantInput) error {
	v := &model.CustomizedProduct{
		ProductID: productID,
		ColorID:   in.ColorID,
		OtherID:   in.OtherID,
		SizeID:    *in.SizeID,
		Price:     in.Price,
		Quantity:  in.Quantity,
		IsActive:  true,
	}
	if err := s.products.CreateVariantTx(tx, v); err != nil {
		return err
	}
	return s.adjustment(tx, productID, v.ID, in.Quantity, in.Quantity)
}

// adjustment writes a catalog_adjust movement when quantity moved by delta.
func (s *catalogService) adjustment(tx *gorm.DB, productID, variantID int64, delta, after int) error {
	if delta == 0 {
		return nil
	}
	ref := productID
	return s.movements.CreateTx(tx, &model.StockMovement{
		CustomizedProductID: variantID,
		Kind:                model.MovementCatalogAdjust,
		Delta:               delta,
		QuantityAfter:       after,
		ReferenceKind:       "product",
		ReferenceID:         &ref,
	})
}

// ── Update ───────────────────────────────────────────────────────────────────

func (s *catalogService) Update(ctx context.Context, actorID, id int64, req dto.ProductRequest) (int64, error) {
	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, apierror.NotFoundf("Producto no encontrado")
		}
		return 0, err
	}
	if !current.IsActive {
		return 0, apierror.NotFoundf("Producto no encontrado")
	}
	if err := s.validate(ctx, req, id); err != nil {
		return 0, err
	}

	oldCode := current.Code
	fork := current.IsImmutable && (req.Code != current.Code || req.Name != current.Name)
	oldCollections, oldTypes, err := s.products.LinkIDs(ctx, id)
	if err != nil {
		return 0, err
	}

	targetID := id
	err = runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		if fork {
			newID, err := s.forkTx(tx, current, req)
			if err != nil {
				return err
			}
			targetID = newID
			return s.events.RecordTx(ctx, tx, EventProductFork, actorID,
				fmt.Sprintf("Producto %d reemplazado por %d (%s)", current.ID, newID, req.Code))
		}

		current.Code, current.Name, current.Observations = req.Code, req.Name, req.Observations
		if err := s.products.UpdateTx(tx, current); err != nil {
			return err
		}
		addC, delC := diffIDs(oldCollections, req.CollectionIDs)
		addT, delT := diffIDs(oldTypes, req.TypeIDs)
		if err := s.products.RemoveLinksTx(tx, id, delC, delT); err != nil {
			return err
		}
		if err := s.products.AddLinksTx(tx, id, addC, addT); err != nil {
			return err
		}
		if err := s.reconcileTx(tx, id, current.Variants, req.Variants); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventProductUpdate, actorID, fmt.Sprintf("Producto %s actualizado", req.Code))
	})
	if err != nil {
		return 0, txFailure("Error al actualizar el producto", err)
	}

	s.forgetCode(ctx, oldCode, req.Code)
	if fork {
		log.Info().Int64("old_product_id", id).Int64("product_id", targetID).Msg("immutable product forked")
	}
	return targetID, nil
}

// forkTx retires an immutable product and recreates it under a new identity.
// Immutable variants stay with the old row, deactivated; mutable ones go.
func (s *catalogService) forkTx(tx *gorm.DB, old *model.Product, req dto.ProductRequest) (int64, error) {
	if err := s.products.DeactivateTx(tx, old.ID); err != nil {
		return 0, err
	}
	if err := s.products.DeleteAllLinksTx(tx, old.ID); err != nil {
		return 0, err
	}
	for _, v := range old.Variants {
		if err := s.retireVariantTx(tx, &v); err != nil {
			return 0, err
		}
	}

	p := &model.Product{Code: req.Code, Name: req.Name, Observations: req.Observations, IsActive: true}
	if err := s.products.CreateTx(tx, p); err != nil {
		return 0, err
	}
	if err := s.products.AddLinksTx(tx, p.ID, req.CollectionIDs, req.TypeIDs); err != nil {
		return 0, err
	}
	for _, in := range req.Variants {
		if err := s.insertVariant(tx, p.ID, in); err != nil {
			return 0, err
		}
	}
	return p.ID, nil
}

// retireVariantTx deactivates an immutable variant and deletes a mutable one.
func (s *catalogService) retireVariantTx(tx *gorm.DB, v *model.CustomizedProduct) error {
	if v.IsImmutable {
		if !v.IsActive {
			return nil
		}
		return s.products.DeactivateVariantTx(tx, v.ID)
	}
	return s.products.DeleteVariantTx(tx, v.ID)
}

// reconcileTx matches the stored variants against the incoming list by
// (color, other, size). When several stored rows share a tuple the active one
// wins, then the newest.
func (s *catalogService) reconcileTx(tx *gorm.DB, productID int64, existing []model.CustomizedProduct, incoming []dto.VariantInput) error {
	want := make(map[model.VariantTuple]int, len(incoming))
	for i, in := range incoming {
		want[model.NewVariantTuple(in.ColorID, in.OtherID, *in.SizeID)] = i
	}

	picked := make(map[model.VariantTuple]int, len(existing))
	for i := range existing {
		t := existing[i].Tuple()
		if _, ok := want[t]; !ok {
			continue
		}
		j, ok := picked[t]
		if !ok || betterMatch(&existing[i], &existing[j]) {
			picked[t] = i
		}
	}

	matched := make(map[int]bool, len(incoming))
	for i := range existing {
		v := &existing[i]
		t := v.Tuple()
		if j, ok := picked[t]; !ok || j != i {
			if err := s.retireVariantTx(tx, v); err != nil {
				return err
			}
			continue
		}
		in := incoming[want[t]]
		matched[want[t]] = true

		switch {
		case !v.IsImmutable || v.Price.Equal(in.Price):
			if err := s.products.UpdateVariantTx(tx, v.ID, in.Price, in.Quantity, v.Quantity); err != nil {
				return err
			}
			if err := s.adjustment(tx, productID, v.ID, in.Quantity-v.Quantity, in.Quantity); err != nil {
				return err
			}
		default:
			// Frozen price: retire the row and sell the tuple under a fresh one.
			if v.IsActive {
				if err := s.products.DeactivateVariantTx(tx, v.ID); err != nil {
					return err
				}
			}
			if err := s.insertVariant(tx, productID, in); err != nil {
				return err
			}
		}
	}

	for i, in := range incoming {
		if matched[i] {
			continue
		}
		if err := s.insertVariant(tx, productID, in); err != nil {
			return err
		}
	}
	return nil
}

func betterMatch(a, b *model.CustomizedProduct) bool {
	if a.IsActive != b.IsActive {
		return a.IsActive
	}
	return a.ID > b.ID
}

// diffIDs returns the ids to add and to remove to go from old to next.
func diffIDs(old, next []int64) (add, remove []int64) {
	inOld := make(map[int64]bool, len(old))
	for _, id := range old {
		inOld[id] = true
	}
	inNext := make(map[int64]bool, len(next))
	for _, id := range next {
		if inNext[id] {
			continue
		}
		inNext[id] = true
		if !inOld[id] {
			add = append(add, id)
		}
	}
	for _, id := range old {
		if !inNext[id] {
			remove = append(remove, id)
		}
	}
	return add, remove
}

// ── Delete ───────────────────────────────────────────────────────────────────

func (s *catalogService) Delete(ctx context.Context, actorID, id int64) error {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return apierror.NotFoundf("Producto no encontrado")
		}
		return err
	}
	if !p.IsActive {
		return apierror.NotFoundf("Producto no encontrado")
	}

	keep := p.IsImmutable
	err = runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		for _, v := range p.Variants {
			if v.IsImmutable {
				keep = true
			}
			if err := s.retireVariantTx(tx, &v); err != nil {
				return err
			}
		}
		if err := s.products.DeleteAllLinksTx(tx, id); err != nil {
			return err
		}
		if keep {
			if err := s.products.DeactivateTx(tx, id); err != nil {
				return err
			}
		} else if err := s.products.DeleteTx(tx, id); err != nil {
			return err
		}
		return s.events.RecordTx(ctx, tx, EventProductDelete, actorID, fmt.Sprintf("Producto %s eliminado", p.Code))
	})
	if err != nil {
		return txFailure("Error al eliminar el producto", err)
	}

	s.forgetCode(ctx, p.Code)
	log.Info().Int64("product_id", id).Bool("deactivated", keep).Msg("product deleted")
	return nil
}

// ── Read side ────────────────────────────────────────────────────────────────

func (s *catalogService) GetByCode(ctx context.Context, code string) (*dto.ProductResponse, error) {
	var cached dto.ProductResponse
	if ok, err := cache.GetJSON(ctx, s.store, productCodeKey(code), &cached); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("product cache read failed")
	} else if ok {
		return &cached, nil
	}

	p, err := s.products.FindActiveByCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFoundf("Producto no encontrado")
		}
		return nil, err
	}
	collections, types, err := s.products.LinkIDs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	resp := productToResponse(p)
	resp.CollectionIDs, resp.TypeIDs = collections, types

	if err := cache.SetJSON(ctx, s.store, productCodeKey(code), resp, productCodeTTL); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("product cache write failed")
	}
	return &resp, nil
}

func (s *catalogService) List(ctx context.Context, f dto.ProductFilter) (*dto.ProductListResponse, error) {
	orderBy, err := querybuilder.Resolve(repository.ProductOrderColumns, f.OrderBy, "p.id")
	if err != nil {
		return nil, apierror.Validationf("order_by invalido: %s", f.OrderBy)
	}
	products, total, err := s.products.List(ctx, repository.ProductCriteria{
		Code:         f.Code,
		Name:         f.Name,
		ColorID:      f.ColorID,
		OtherID:      f.OtherID,
		SizeID:       f.SizeID,
		CollectionID: f.CollectionID,
		TypeID:       f.TypeID,
		QuantityMin:  f.QuantityMin,
		QuantityMax:  f.QuantityMax,
		PriceMin:     f.PriceMin,
		PriceMax:     f.PriceMax,
		OrderBy:      orderBy,
		OrderAsc:     f.OrderByAsc,
		Limit:        f.Limit,
		Offset:       f.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	resp := &dto.ProductListResponse{Count: total, Products: make([]dto.ProductResponse, len(products))}
	for i := range products {
		resp.Products[i] = productToResponse(&products[i])
	}
	return resp, nil
}

func (s *catalogService) Info(ctx context.Context) (*dto.ProductInfoResponse, error) {
	products, err := s.products.ListActiveSummaries(ctx)
	if err != nil {
		return nil, err
	}
	lookups, err := s.refs.Lookups(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.ProductInfoResponse{Products: make([]dto.ProductSummary, len(products)), Lookups: lookups}
	for i, p := range products {
		resp.Products[i] = dto.ProductSummary{ID: p.ID, Code: p.Code, Name: p.Name}
	}
	return resp, nil
}

func (s *catalogService) Movements(ctx context.Context, productID int64, limit, offset int) ([]dto.StockMovementResponse, int64, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if repository.IsNotFound(err) {
			return nil, 0, apierror.NotFoundf("Producto no encontrado")
		}
		return nil, 0, err
	}
	moves, total, err := s.movements.ListByProduct(ctx, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.StockMovementResponse, len(moves))
	for i, m := range moves {
		out[i] = dto.StockMovementResponse{
			ID:                  m.ID,
			CustomizedProductID: m.CustomizedProductID,
			Kind:                m.Kind,
			Delta:               m.Delta,
			QuantityAfter:       m.QuantityAfter,
			ReferenceKind:       m.ReferenceKind,
			ReferenceID:         m.ReferenceID,
			CreatedAt:           m.CreatedAt,
		}
	}
	return out, total, nil
}

func (s *catalogService) forgetCode(ctx context.Context, codes ...string) {
	forgetProductCodes(ctx, s.store, codes...)
}

// forgetProductCodes drops the cached GetByCode view for every code given.
// Any write that moves stock or immutability of a product must call it after
// commit.
func forgetProductCodes(ctx context.Context, store cache.Store, codes ...string) {
	if store == nil {
		return
	}
	seen := make(map[string]bool, len(codes))
	keys := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		keys = append(keys, productCodeKey(c))
	}
	if len(keys) == 0 {
		return
	}
	if err := store.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("product cache invalidation failed")
	}
}

func productToResponse(p *model.Product) dto.ProductResponse {
	resp := dto.ProductResponse{
		ID:           p.ID,
		Code:         p.Code,
		Name:         p.Name,
		Observations: p.Observations,
		IsActive:     p.IsActive,
		IsImmutable:  p.IsImmutable,
		Variants:     make([]dto.VariantResponse, len(p.Variants)),
	}
	for i := range p.Variants {
		resp.Variants[i] = variantToResponse(&p.Variants[i])
	}
	return resp
}

func variantToResponse(v *model.CustomizedProduct) dto.VariantResponse {
	r := dto.VariantResponse{
		ID:          v.ID,
		ColorID:     v.ColorID,
		OtherID:     v.OtherID,
		SizeID:      v.SizeID,
		Price:       v.Price,
		Quantity:    v.Quantity,
		IsActive:    v.IsActive,
		IsImmutable: v.IsImmutable,
	}
	if v.Color != nil {
		r.ColorName = &v.Color.Name
	}
	if v.Other != nil {
		r.OtherName = &v.Other.Name
	}
	if v.Size != nil {
		r.SizeName = v.Size.Name
	}
	return r
}
