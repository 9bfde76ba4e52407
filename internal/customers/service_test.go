package customers

import (
	"context"
	"errors"
	"slices"
	"testing"

	"vienna-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type fakeStore struct {
	rows       map[string]*models.Customer
	phoneQuery []string
	deleteErr  error
	nextID     int
}

func newFakeStore(rows ...models.Customer) *fakeStore {
	f := &fakeStore{rows: map[string]*models.Customer{}}
	for i := range rows {
		r := rows[i]
		f.rows[r.ID] = &r
	}
	return f
}

func (f *fakeStore) List(ctx context.Context, q string, limit int) ([]models.Customer, error) {
	return nil, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*models.Customer, error) {
	r, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) FindByPhone(ctx context.Context, phones ...string) (*models.Customer, error) {
	f.phoneQuery = phones
	for _, r := range f.rows {
		if r.Phone != nil && slices.Contains(phones, *r.Phone) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(ctx context.Context, c *models.Customer) error {
	f.nextID++
	c.ID = "new-" + string(rune('0'+f.nextID))
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeStore) Update(ctx context.Context, c *models.Customer) error {
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, id)
	return nil
}

func str(s string) *string { return &s }

func val(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw, region, want string
	}{
		{"(650) 253-0000", "US", "+16502530000"},
		{" +44 20 7031 3000 ", "IQ", "+442070313000"},
		{" 12 ", "US", "12"},
		{"not a phone", "US", "not a phone"},
		{"   ", "US", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.raw, tc.region); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestUpsertInsertsTrimmed(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, "US")

	res, err := svc.Upsert(context.Background(), CustomerInput{
		Name:    str("  Huda "),
		Phone:   str("650 253 0000"),
		Address: str("   "),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !res.Created || res.Before != nil {
		t.Fatalf("expected an insert, got %+v", res)
	}
	c := res.Customer
	if val(c.Name) != "Huda" || val(c.Phone) != "+16502530000" || c.Address != nil || c.Notes != nil {
		t.Fatalf("unexpected customer %+v", c)
	}
}

func TestUpsertMergesOnPhone(t *testing.T) {
	store := newFakeStore(models.Customer{
		ID:         "c1",
		Name:       str("Old Name"),
		Phone:      str("+16502530000"),
		PhoneExtra: str("111"),
		Address:    str("Street 1"),
	})
	svc := NewService(store, "US")

	res, err := svc.Upsert(context.Background(), CustomerInput{
		Phone:   str("(650) 253-0000"),
		Address: str(""),
		Notes:   str(" gate code 4 "),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.Created || res.Customer.ID != "c1" {
		t.Fatalf("expected merge into c1, got %+v", res)
	}
	if !slices.Equal(store.phoneQuery, []string{"+16502530000", "(650) 253-0000"}) {
		t.Fatalf("phone lookup used %v", store.phoneQuery)
	}
	c := store.rows["c1"]
	if val(c.Name) != "Old Name" || val(c.PhoneExtra) != "111" {
		t.Fatalf("missing fields must keep stored values: %+v", c)
	}
	if c.Address != nil || val(c.Notes) != "gate code 4" {
		t.Fatalf("sent fields must win: address=%s notes=%s", val(c.Address), val(c.Notes))
	}
	if val(res.Before.Address) != "Street 1" {
		t.Fatalf("before state lost: %+v", res.Before)
	}
}

func TestUpsertByID(t *testing.T) {
	store := newFakeStore(models.Customer{ID: "c1", Name: str("A"), Address: str("Street")})
	svc := NewService(store, "US")

	if _, err := svc.Upsert(context.Background(), CustomerInput{ID: "c1", Name: str("B")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	c := store.rows["c1"]
	if val(c.Name) != "B" || c.Address != nil {
		t.Fatalf("update by id replaces every field, got %+v", c)
	}

	if _, err := svc.Upsert(context.Background(), CustomerInput{ID: "missing"}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestByPhone(t *testing.T) {
	store := newFakeStore(models.Customer{ID: "c1", Phone: str("+16502530000")})
	svc := NewService(store, "US")

	c, err := svc.ByPhone(context.Background(), "   ")
	if err != nil || c != nil || store.phoneQuery != nil {
		t.Fatalf("blank phone should not query, got %v %v", c, err)
	}
	c, err = svc.ByPhone(context.Background(), "650-253-0000")
	if err != nil || c == nil || c.ID != "c1" {
		t.Fatalf("expected c1, got %v %v", c, err)
	}
}

func TestDeleteWithOrders(t *testing.T) {
	store := newFakeStore(models.Customer{ID: "c1"})
	store.deleteErr = &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	svc := NewService(store, "US")

	if _, err := svc.Delete(context.Background(), "c1"); !errors.Is(err, ErrHasOrders) {
		t.Fatalf("expected ErrHasOrders, got %v", err)
	}

	store.deleteErr = nil
	deleted, err := svc.Delete(context.Background(), "c1")
	if err != nil || deleted.ID != "c1" {
		t.Fatalf("Delete: %v %v", deleted, err)
	}
	if _, ok := store.rows["c1"]; ok {
		t.Fatal("customer still stored")
	}
}
