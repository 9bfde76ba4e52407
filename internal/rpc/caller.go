package rpc

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"vienna-backend/internal/logging"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var allowedCasts = map[string]bool{
	"":        true,
	"json":    true,
	"jsonb":   true,
	"text":    true,
	"uuid":    true,
	"numeric": true,
	"boolean": true,
	"integer": true,
}

// Arg is one named argument of a remote procedure call. Cast, when set, is
// appended as an explicit Postgres type cast on the placeholder.
type Arg struct {
	Name  string
	Value any
	Cast  string
}

// Variant is one spelling of a procedure's argument list.
type Variant []Arg

// Runner executes a query that yields a single text column in a single row.
type Runner interface {
	QueryText(ctx context.Context, query string, params map[string]any) (text string, valid bool, err error)
}

type GormRunner struct {
	DB *gorm.DB
}

func (r GormRunner) QueryText(ctx context.Context, query string, params map[string]any) (string, bool, error) {
	var out sql.NullString
	tx := r.DB.WithContext(ctx)
	var row *sql.Row
	if len(params) == 0 {
		row = tx.Raw(query).Row()
	} else {
		row = tx.Raw(query, params).Row()
	}
	if err := row.Scan(&out); err != nil {
		return "", false, err
	}
	return out.String, out.Valid, nil
}

// Result is the text rendering of a procedure's return value.
type Result struct {
	Text string
	Null bool
}

func (r Result) String() string { return r.Text }

func (r Result) Decode(v any) error {
	if r.Null {
		return nil
	}
	return json.Unmarshal([]byte(r.Text), v)
}

// Value returns the result as raw JSON when it is JSON, otherwise as a string.
// Void procedures yield nil.
func (r Result) Value() any {
	if r.Null || r.Text == "" {
		return nil
	}
	if json.Valid([]byte(r.Text)) {
		return json.RawMessage(r.Text)
	}
	return r.Text
}

// ID reads an entity id from the result: a bare id, a JSON string or number,
// or an object with an "id" field. It is empty when none is present.
func (r Result) ID() string {
	switch v := r.Value().(type) {
	case string:
		return v
	case json.RawMessage:
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if json.Unmarshal(v, &obj) == nil && len(obj.ID) > 0 {
			v = obj.ID
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s
		}
		var n json.Number
		if json.Unmarshal(v, &n) == nil {
			return n.String()
		}
	}
	return ""
}

type Caller struct {
	runner  Runner
	timeout time.Duration
}

func NewCaller(db *gorm.DB, timeout time.Duration) *Caller {
	return NewCallerWithRunner(GormRunner{DB: db}, timeout)
}

func NewCallerWithRunner(runner Runner, timeout time.Duration) *Caller {
	return &Caller{runner: runner, timeout: timeout}
}

// Call invokes fn with each variant in turn and returns the first accepted
// result. A failure that is not about argument shape stops the loop.
func (c *Caller) Call(ctx context.Context, fn string, variants ...Variant) (Result, error) {
	text, valid, err := c.run(ctx, fn, variants, func(call string) string {
		return "SELECT (" + call + ")::text AS result"
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, Null: !valid}, nil
}

// Rows invokes a set- or json-returning fn and decodes its rows into dest,
// which must be a pointer to a slice.
func (c *Caller) Rows(ctx context.Context, fn string, dest any, variants ...Variant) error {
	text, valid, err := c.run(ctx, fn, variants, func(call string) string {
		return "SELECT COALESCE(json_agg(t), '[]'::json)::text AS result FROM " + call + " AS t"
	})
	if err != nil {
		return err
	}
	if !valid {
		text = "[]"
	}
	return decodeRows([]byte(text), dest)
}

func (c *Caller) run(ctx context.Context, fn string, variants []Variant, wrap func(call string) string) (string, bool, error) {
	if !identRe.MatchString(fn) {
		return "", false, fmt.Errorf("%w: procedure %q", ErrInvalidIdentifier, fn)
	}
	if len(variants) == 0 {
		return "", false, ErrNoVariants
	}

	queries := make([]string, len(variants))
	params := make([]map[string]any, len(variants))
	for i, v := range variants {
		call, p, err := BuildCall(fn, v)
		if err != nil {
			return "", false, err
		}
		queries[i] = wrap(call)
		params[i] = p
	}

	var lastErr error
	for i := range variants {
		text, valid, err := c.attempt(ctx, queries[i], params[i])
		if err == nil {
			return text, valid, nil
		}
		lastErr = err
		if !IsBadRequest(err) {
			return "", false, fmt.Errorf("rpc %s: %w", fn, err)
		}
		logging.GetLogger().WithFields(logrus.Fields{
			"procedure": fn,
			"variant":   i,
		}).Debugf("argument variant rejected: %v", err)
	}
	return "", false, fmt.Errorf("%w: %s: %w", ErrAllVariantsRejected, fn, lastErr)
}

func (c *Caller) attempt(ctx context.Context, query string, params map[string]any) (string, bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.runner.QueryText(ctx, query, params)
}

// BuildCall renders fn(name => @name[::cast], ...) in named notation with the
// parameter map gorm expects.
func BuildCall(fn string, v Variant) (string, map[string]any, error) {
	if !identRe.MatchString(fn) {
		return "", nil, fmt.Errorf("%w: procedure %q", ErrInvalidIdentifier, fn)
	}
	parts := make([]string, 0, len(v))
	params := make(map[string]any, len(v))
	for _, a := range v {
		if !identRe.MatchString(a.Name) {
			return "", nil, fmt.Errorf("%w: argument %q", ErrInvalidIdentifier, a.Name)
		}
		if !allowedCasts[a.Cast] {
			return "", nil, fmt.Errorf("%w: cast %q", ErrInvalidIdentifier, a.Cast)
		}
		if _, dup := params[a.Name]; dup {
			return "", nil, fmt.Errorf("%w: duplicate argument %q", ErrInvalidIdentifier, a.Name)
		}
		p := a.Name + " => @" + a.Name
		if a.Cast != "" {
			p += "::" + a.Cast
		}
		parts = append(parts, p)
		params[a.Name] = a.Value
	}
	return fn + "(" + strings.Join(parts, ", ") + ")", params, nil
}

// decodeRows unwraps the single nested array produced when a procedure
// returns a json array instead of a set of rows.
func decodeRows(data []byte, dest any) error {
	var outer []json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return fmt.Errorf("rpc: decode rows: %w", err)
	}
	if len(outer) == 1 {
		inner := bytes.TrimSpace(outer[0])
		if len(inner) > 0 && inner[0] == '[' {
			data = inner
		}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("rpc: decode rows: %w", err)
	}
	return nil
}
