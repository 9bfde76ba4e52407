package customers

import (
	"context"
	"errors"
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/models"
	"vienna-backend/internal/rpc"
)

var ErrHasOrders = errors.New("customer has linked orders")

// CustomerInput is the upsert body. A nil field on a merge keeps the stored
// value; a blank one clears it.
type CustomerInput struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	PhoneExtra *string `json:"phone_extra"`
	Address    *string `json:"address"`
	Notes      *string `json:"notes"`
}

type Service struct {
	store  Store
	region string
}

func NewService(store Store, region string) *Service {
	return &Service{store: store, region: region}
}

func (s *Service) List(ctx context.Context, q string, limit int) ([]models.Customer, error) {
	return s.store.List(ctx, q, max(1, limit))
}

func (s *Service) phone(p *string) *string {
	if p == nil {
		return nil
	}
	return billing.NullIfBlank(NormalizePhone(*p, s.region))
}

// ByPhone finds a customer by the raw or normalised phone; blank yields nil.
func (s *Service) ByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	raw := strings.TrimSpace(phone)
	if raw == "" {
		return nil, nil
	}
	return s.store.FindByPhone(ctx, candidates(raw, NormalizePhone(raw, s.region))...)
}

func candidates(raw, normalized string) []string {
	if raw == normalized {
		return []string{raw}
	}
	return []string{normalized, raw}
}

func text(p *string) *string {
	if p == nil {
		return nil
	}
	return billing.NullIfBlank(*p)
}

func merge(dst *string, in *string) *string {
	if in == nil {
		return dst
	}
	return billing.NullIfBlank(*in)
}

// UpsertResult reports what Upsert did. Before is set for updates.
type UpsertResult struct {
	Customer *models.Customer
	Before   *models.Customer
	Created  bool
}

// Upsert updates by id, otherwise merges into the customer that already has
// the phone, otherwise inserts.
func (s *Service) Upsert(ctx context.Context, in CustomerInput) (UpsertResult, error) {
	phone := s.phone(in.Phone)

	if id := strings.TrimSpace(in.ID); id != "" {
		existing, err := s.store.Get(ctx, id)
		if err != nil {
			return UpsertResult{}, err
		}
		before := *existing
		existing.Name = text(in.Name)
		existing.Phone = phone
		existing.PhoneExtra = text(in.PhoneExtra)
		existing.Address = text(in.Address)
		existing.Notes = text(in.Notes)
		if err := s.store.Update(ctx, existing); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Customer: existing, Before: &before}, nil
	}

	if phone != nil {
		raw := strings.TrimSpace(*in.Phone)
		existing, err := s.store.FindByPhone(ctx, candidates(raw, *phone)...)
		if err != nil {
			return UpsertResult{}, err
		}
		if existing != nil {
			before := *existing
			existing.Name = merge(existing.Name, in.Name)
			existing.Phone = phone
			existing.PhoneExtra = merge(existing.PhoneExtra, in.PhoneExtra)
			existing.Address = merge(existing.Address, in.Address)
			existing.Notes = merge(existing.Notes, in.Notes)
			if err := s.store.Update(ctx, existing); err != nil {
				return UpsertResult{}, err
			}
			return UpsertResult{Customer: existing, Before: &before}, nil
		}
	}

	c := &models.Customer{
		Name:       text(in.Name),
		Phone:      phone,
		PhoneExtra: text(in.PhoneExtra),
		Address:    text(in.Address),
		Notes:      text(in.Notes),
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Customer: c, Created: true}, nil
}

// Delete removes a customer and returns the deleted row.
func (s *Service) Delete(ctx context.Context, id string) (*models.Customer, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if rpc.IsForeignKeyViolation(err) {
			return nil, ErrHasOrders
		}
		return nil, err
	}
	return existing, nil
}
