package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/infra/logging"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	Reason          string `json:"reason,omitempty"`
	RequiresPayment bool   `json:"requiresPayment,omitempty"`
	NeedsUpgrade    bool   `json:"needsUpgrade,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads one JSON object into dst and runs struct validation.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.Validation("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Validation(verrs[0].Field() + " is invalid")
		}
		return domain.Validation("Invalid request body")
	}
	return nil
}

func statusFor(e *domain.Error) int {
	switch e.Kind {
	case domain.KindValidation, domain.KindIntegrity:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindEligibility:
		if e.RequiresPayment() || e.NeedsUpgrade() {
			return http.StatusForbidden
		}
		// promo eligibility
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps err onto the error envelope. Unclassified errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		if logger != nil {
			l := logging.With(r.Context(), logger)
			l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Internal server error"})
		return
	}
	code := statusFor(de)
	if code >= http.StatusInternalServerError && logger != nil {
		l := logging.With(r.Context(), logger)
		l.Warn().Err(err).Str("path", r.URL.Path).Msg("dependency failure")
	}
	writeJSON(w, code, errorBody{
		Message:         de.Message,
		Reason:          string(de.Reason),
		RequiresPayment: de.RequiresPayment(),
		NeedsUpgrade:    de.NeedsUpgrade(),
		Retryable:       de.Retryable,
	})
}
