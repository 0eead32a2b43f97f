package service

import (
	"context"
	"fmt"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/cache"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"
)

// Reference cache keys
const (
	keyEventNames   = "ref:event_names"
	keyLookups      = "ref:lookups"
	keyInstallments = "ref:payment_installments"
)

// ReferenceData serves the small, rarely changing tables through the cache
// store. Entries expire after the configured TTL or on Invalidate.
type ReferenceData struct {
	eventNames   *cache.Reference[map[string]int64]
	lookups      *cache.Reference[dto.Lookups]
	installments *cache.Reference[[]model.PaymentMethodInstallment]
}

func NewReferenceData(store cache.Store, repo repository.LookupRepository, ttl time.Duration) *ReferenceData {
	return &ReferenceData{
		eventNames: cache.NewReference(store, keyEventNames, ttl, func(ctx context.Context) (map[string]int64, error) {
			names, err := repo.EventNames(ctx)
			if err != nil {
				return nil, err
			}
			out := make(map[string]int64, len(names))
			for _, n := range names {
				out[n.Name] = n.ID
			}
			return out, nil
		}),
		lookups: cache.NewReference(store, keyLookups, ttl, func(ctx context.Context) (dto.Lookups, error) {
			return loadLookups(ctx, repo)
		}),
		installments: cache.NewReference(store, keyInstallments, ttl, repo.PaymentInstallments),
	}
}

func loadLookups(ctx context.Context, repo repository.LookupRepository) (dto.Lookups, error) {
	var l dto.Lookups
	sizes, err := repo.Sizes(ctx)
	if err != nil {
		return l, err
	}
	colors, err := repo.Colors(ctx)
	if err != nil {
		return l, err
	}
	others, err := repo.Others(ctx)
	if err != nil {
		return l, err
	}
	collections, err := repo.Collections(ctx)
	if err != nil {
		return l, err
	}
	types, err := repo.Types(ctx)
	if err != nil {
		return l, err
	}
	l.Sizes = make([]dto.LookupItem, len(sizes))
	for i, v := range sizes {
		l.Sizes[i] = dto.LookupItem{ID: v.ID, Name: v.Name}
	}
	l.Colors = make([]dto.LookupItem, len(colors))
	for i, v := range colors {
		l.Colors[i] = dto.LookupItem{ID: v.ID, Name: v.Name}
	}
	l.Others = make([]dto.LookupItem, len(others))
	for i, v := range others {
		l.Others[i] = dto.LookupItem{ID: v.ID, Name: v.Name}
	}
	l.Collections = make([]dto.LookupItem, len(collections))
	for i, v := range collections {
		l.Collections[i] = dto.LookupItem{ID: v.ID, Name: v.Name}
	}
	l.Types = make([]dto.LookupItem, len(types))
	for i, v := range types {
		l.Types[i] = dto.LookupItem{ID: v.ID, Name: v.Name}
	}
	return l, nil
}

// EventID resolves an event name to its id.
func (r *ReferenceData) EventID(ctx context.Context, name string) (int64, error) {
	names, err := r.eventNames.Get(ctx)
	if err != nil {
		return 0, err
	}
	id, ok := names[name]
	if !ok {
		return 0, fmt.Errorf("event name %q not registered", name)
	}
	return id, nil
}

// EventNamesByID is the reverse of EventID, for listings.
func (r *ReferenceData) EventNamesByID(ctx context.Context) (map[int64]string, error) {
	names, err := r.eventNames.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(names))
	for name, id := range names {
		out[id] = name
	}
	return out, nil
}

func (r *ReferenceData) Lookups(ctx context.Context) (dto.Lookups, error) {
	return r.lookups.Get(ctx)
}

func (r *ReferenceData) Installments(ctx context.Context) ([]model.PaymentMethodInstallment, error) {
	return r.installments.Get(ctx)
}

// Installment returns the installment with id, or false.
func (r *ReferenceData) Installment(ctx context.Context, id int64) (model.PaymentMethodInstallment, bool, error) {
	all, err := r.Installments(ctx)
	if err != nil {
		return model.PaymentMethodInstallment{}, false, err
	}
	for _, in := range all {
		if in.ID == id {
			return in, true, nil
		}
	}
	return model.PaymentMethodInstallment{}, false, nil
}

// Invalidate drops every reference entry.
func (r *ReferenceData) Invalidate(ctx context.Context) error {
	return cache.InvalidateAll(ctx, r.eventNames, r.lookups, r.installments)
}

// PaymentMethods lists every installment option with its method name.
func (r *ReferenceData) PaymentMethods(ctx context.Context) ([]dto.PaymentMethodResponse, error) {
	all, err := r.Installments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PaymentMethodResponse, len(all))
	for i, in := range all {
		out[i] = dto.PaymentMethodResponse{
			PaymentMethodInstallmentID: in.ID,
			PaymentMethodID:            in.PaymentMethodID,
			Installments:               in.Installments,
		}
		if in.PaymentMethod != nil {
			out[i].PaymentMethodName = in.PaymentMethod.Name
		}
	}
	return out, nil
}
