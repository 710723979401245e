package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"

    "github.com/go-playground/validator/v10"
    "github.com/shopspring/decimal"

    "bankpost/internal/posting"
)

type errorResponse struct {
    Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
    writeJSON(w, status, errorResponse{Error: code})
}

// decodeJSON reads exactly one JSON value and rejects unknown fields.
func decodeJSON(r io.Reader, dst any) error {
    dec := json.NewDecoder(r)
    dec.DisallowUnknownFields()
    if err := dec.Decode(dst); err != nil {
        return err
    }
    if err := dec.Decode(&struct{}{}); err != io.EOF {
        return errors.New("trailing data after request body")
    }
    return nil
}

func newValidator() (*validator.Validate, error) {
    vld := validator.New(validator.WithRequiredStructEnabled())
    if err := vld.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
        value, ok := fl.Field().Interface().(decimal.Decimal)
        if !ok {
            return false
        }
        return value.IsPositive()
    }); err != nil {
        return nil, fmt.Errorf("register positive_decimal: %w", err)
    }
    return vld, nil
}

// statusFor maps a posting error to the response status and error code.
// Anything outside the validation taxonomy is an internal error.
func statusFor(err error) (int, string) {
    switch {
    case errors.Is(err, posting.ErrUnauthorized):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, posting.ErrNotFound):
        return http.StatusNotFound, "not_found"
    case errors.Is(err, posting.ErrInactive):
        return http.StatusNotFound, "inactive"
    case errors.Is(err, posting.ErrLimitExceeded):
        return http.StatusBadRequest, "limit_exceeded"
    case errors.Is(err, posting.ErrInsufficientFunds):
        return http.StatusBadRequest, "insufficient_funds"
    case errors.Is(err, posting.ErrInvalidRequest):
        return http.StatusBadRequest, "invalid_request"
    default:
        return http.StatusInternalServerError, "internal_error"
    }
}
