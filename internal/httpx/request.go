package httpx

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/rpc"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseBody decodes the request body into dst and runs its validate tags.
func ParseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

// QueryLimit reads a positive integer query parameter, using def when it is
// missing or malformed and capping it at max.
func QueryLimit(c *fiber.Ctx, key string, def, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// Fail turns a service error into the HTTP error the central handler renders.
// Unexpected errors are logged with the calling module and function.
func Fail(module, funcName string, err error, msg string) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case billing.IsValidation(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, rpc.ErrAllVariantsRejected):
		logging.LogError(module, funcName, msg, nil, err)
		return fiber.NewError(fiber.StatusBadGateway, msg+": the database rejected every argument form")
	}
	logging.LogError(module, funcName, msg, nil, err)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

// MatchQuery reports whether q occurs case-insensitively in any field. An
// empty q matches everything.
func MatchQuery(q string, fields ...*string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if f != nil && strings.Contains(strings.ToLower(*f), q) {
			return true
		}
	}
	return false
}
