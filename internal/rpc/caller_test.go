package rpc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	query  string
	params map[string]any
}

type fakeRunner struct {
	calls   []call
	results []fakeResult
}

type fakeResult struct {
	text  string
	valid bool
	err   error
}

func (f *fakeRunner) QueryText(ctx context.Context, query string, params map[string]any) (string, bool, error) {
	f.calls = append(f.calls, call{query: query, params: params})
	if len(f.results) == 0 {
		return "", false, errors.New("unexpected call")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.text, r.valid, r.err
}

func undefinedFunction() error {
	return &pgconn.PgError{Code: "42883", Message: "function create_procurement(paid_arg => numeric) does not exist"}
}

func TestBuildCall(t *testing.T) {
	got, params, err := BuildCall("create_procurement", Variant{
		{Name: "payment_method", Value: "cash"},
		{Name: "paid_arg", Value: 10},
		{Name: "items_arg", Value: "[]", Cast: "jsonb"},
	})
	if err != nil {
		t.Fatalf("BuildCall: %v", err)
	}
	want := "create_procurement(payment_method => @payment_method, paid_arg => @paid_arg, items_arg => @items_arg::jsonb)"
	if got != want {
		t.Fatalf("BuildCall = %q\nwant %q", got, want)
	}
	if params["payment_method"] != "cash" || params["items_arg"] != "[]" {
		t.Fatalf("unexpected params %v", params)
	}
}

func TestBuildCallRejectsBadIdentifiers(t *testing.T) {
	cases := []struct {
		name string
		fn   string
		v    Variant
	}{
		{"procedure injection", "x); drop table items; --", nil},
		{"upper case arg", "last_bills", Variant{{Name: "Limit"}}},
		{"unknown cast", "last_bills", Variant{{Name: "limit_rows", Cast: "regclass"}}},
		{"duplicate arg", "last_bills", Variant{{Name: "a"}, {Name: "a"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := BuildCall(tc.fn, tc.v); !errors.Is(err, ErrInvalidIdentifier) {
				t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
			}
		})
	}
}

func TestCallFallsThroughRejectedVariants(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: undefinedFunction()},
		{err: errors.New("invalid input syntax for type json")},
		{text: "6a1f3c1e-0000-4000-8000-000000000001", valid: true},
	}}
	c := NewCallerWithRunner(runner, time.Second)

	res, err := c.Call(context.Background(), "create_procurement",
		Variant{{Name: "items_arg", Value: "[]", Cast: "jsonb"}},
		Variant{{Name: "items_arg", Value: "[]", Cast: "text"}},
		Variant{{Name: "items", Value: "[]", Cast: "jsonb"}},
	)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.String() != "6a1f3c1e-0000-4000-8000-000000000001" {
		t.Fatalf("result = %q", res.String())
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(runner.calls))
	}
	if !strings.Contains(runner.calls[2].query, "items => @items::jsonb") {
		t.Fatalf("third attempt should use the third spelling: %s", runner.calls[2].query)
	}
	if !strings.HasPrefix(runner.calls[0].query, "SELECT (create_procurement(") {
		t.Fatalf("unexpected scalar query %s", runner.calls[0].query)
	}
}

func TestCallStopsOnNonArgumentError(t *testing.T) {
	permission := &pgconn.PgError{Code: "42501", Message: "permission denied for table bills"}
	runner := &fakeRunner{results: []fakeResult{{err: permission}}}
	c := NewCallerWithRunner(runner, 0)

	_, err := c.Call(context.Background(), "delete_procurement",
		Variant{{Name: "bill_uuid", Value: "x"}},
		Variant{{Name: "bill_id", Value: "x"}},
	)
	if !errors.Is(err, permission) {
		t.Fatalf("expected the permission error, got %v", err)
	}
	if errors.Is(err, ErrAllVariantsRejected) {
		t.Fatal("permission error must not be reported as exhausted variants")
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(runner.calls))
	}
}

func TestCallReportsLastErrorWhenExhausted(t *testing.T) {
	last := errors.New("Bad Request")
	runner := &fakeRunner{results: []fakeResult{{err: undefinedFunction()}, {err: last}}}
	c := NewCallerWithRunner(runner, 0)

	_, err := c.Call(context.Background(), "update_procurement",
		Variant{{Name: "bill_uuid", Value: "x"}},
		Variant{{Name: "bill_id", Value: "x"}},
	)
	if !errors.Is(err, ErrAllVariantsRejected) || !errors.Is(err, last) {
		t.Fatalf("expected exhausted error wrapping the last one, got %v", err)
	}
}

func TestCallWithoutVariants(t *testing.T) {
	c := NewCallerWithRunner(&fakeRunner{}, 0)
	if _, err := c.Call(context.Background(), "last_items"); !errors.Is(err, ErrNoVariants) {
		t.Fatalf("expected ErrNoVariants, got %v", err)
	}
}

func TestCallValidatesBeforeCalling(t *testing.T) {
	runner := &fakeRunner{}
	c := NewCallerWithRunner(runner, 0)
	_, err := c.Call(context.Background(), "create_sale",
		Variant{{Name: "customer", Value: nil}},
		Variant{{Name: "bad name", Value: nil}},
	)
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatal("no query should run when a later variant is malformed")
	}
}

func TestRowsDecodesSetAndJSONArray(t *testing.T) {
	type row struct {
		ID    string  `json:"id"`
		Total float64 `json:"total"`
	}
	cases := []struct {
		name string
		text string
		want int
	}{
		{"set of rows", `[{"id":"a","total":1},{"id":"b","total":2}]`, 2},
		{"json array function", `[[{"id":"a","total":1},{"id":"b","total":2},{"id":"c","total":3}]]`, 3},
		{"empty", `[]`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{results: []fakeResult{{text: tc.text, valid: true}}}
			c := NewCallerWithRunner(runner, 0)
			var out []row
			if err := c.Rows(context.Background(), "last_bills", &out, Variant{{Name: "limit_rows", Value: 50}}); err != nil {
				t.Fatalf("Rows: %v", err)
			}
			if len(out) != tc.want {
				t.Fatalf("got %d rows, want %d", len(out), tc.want)
			}
			if !strings.Contains(runner.calls[0].query, "FROM last_bills(limit_rows => @limit_rows) AS t") {
				t.Fatalf("unexpected rows query %s", runner.calls[0].query)
			}
		})
	}
}

func TestResultValue(t *testing.T) {
	if v := (Result{Null: true}).Value(); v != nil {
		t.Fatalf("null result should be nil, got %v", v)
	}
	if v := (Result{Text: ""}).Value(); v != nil {
		t.Fatalf("void result should be nil, got %v", v)
	}
	if v, ok := (Result{Text: "abc-123"}).Value().(string); !ok || v != "abc-123" {
		t.Fatalf("plain text should stay a string, got %#v", v)
	}
	if _, ok := (Result{Text: `{"id":"x"}`}).Value().(interface{ MarshalJSON() ([]byte, error) }); !ok {
		t.Fatal("json text should be raw json")
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		bad       bool
		undefined bool
	}{
		{"undefined function", undefinedFunction(), true, false},
		{"bad request text", errors.New("400 Bad Request"), true, false},
		{"undefined column", &pgconn.PgError{Code: "42703", Message: `column "image_url" does not exist`}, true, true},
		{"column message", errors.New(`column orders.driver_name does not exist`), true, true},
		{"timeout", context.DeadlineExceeded, false, false},
		{"fk", &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsBadRequest(tc.err); got != tc.bad {
				t.Fatalf("IsBadRequest = %v, want %v", got, tc.bad)
			}
			if got := IsUndefinedColumn(tc.err); got != tc.undefined {
				t.Fatalf("IsUndefinedColumn = %v, want %v", got, tc.undefined)
			}
		})
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("23503 should be a foreign key violation")
	}
}

func TestResultID(t *testing.T) {
	cases := []struct {
		name string
		res  Result
		want string
	}{
		{"void", Result{Null: true}, ""},
		{"plain text", Result{Text: "6a1f3c1e-0000-4000-8000-000000000001"}, "6a1f3c1e-0000-4000-8000-000000000001"},
		{"json string", Result{Text: `"abc"`}, "abc"},
		{"number", Result{Text: "42"}, "42"},
		{"object with string id", Result{Text: `{"id":"o-1","status":"new"}`}, "o-1"},
		{"object with numeric id", Result{Text: `{"id":17}`}, "17"},
		{"object without id", Result{Text: `{"ok":true}`}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.res.ID(); got != tc.want {
				t.Fatalf("ID() = %q, want %q", got, tc.want)
			}
		})
	}
}
