package rpc

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrAllVariantsRejected wraps the last backend error when no argument
	// spelling was accepted.
	ErrAllVariantsRejected = errors.New("rpc: every argument variant was rejected")
	ErrNoVariants          = errors.New("rpc: no argument variants given")
	ErrInvalidIdentifier   = errors.New("rpc: invalid identifier")
)

const (
	codeUndefinedFunction     = "42883"
	codeAmbiguousFunction     = "42725"
	codeDatatypeMismatch      = "42804"
	codeInvalidTextRepr       = "22P02"
	codeInvalidParameterValue = "22023"
	codeUndefinedColumn       = "42703"
	codeForeignKeyViolation   = "23503"
	codeUniqueViolation       = "23505"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsBadRequest reports whether the backend refused the call because of its
// argument shape, in which case another spelling may still be accepted.
func IsBadRequest(err error) bool {
	if err == nil {
		return false
	}
	switch pgCode(err) {
	case codeUndefinedFunction, codeAmbiguousFunction, codeDatatypeMismatch,
		codeInvalidTextRepr, codeInvalidParameterValue:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Bad Request") ||
		strings.Contains(msg, "invalid input") ||
		strings.Contains(msg, "function") ||
		strings.Contains(msg, "does not exist")
}

// IsUndefinedColumn detects an older schema that lacks a column we selected
// or wrote.
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	if pgCode(err) == codeUndefinedColumn {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "column") && strings.Contains(msg, "does not exist")
}

func IsForeignKeyViolation(err error) bool {
	return err != nil && pgCode(err) == codeForeignKeyViolation
}

func IsUniqueViolation(err error) bool {
	return err != nil && pgCode(err) == codeUniqueViolation
}
