package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("%w: request body is required", apperrors.ErrInvalidArgument)
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", apperrors.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", apperrors.ErrInvalidArgument, err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// errorStatus maps domain errors to an HTTP status, a client-facing message
// and the offending field when one is known.
func errorStatus(err error) (int, string, string) {
	var (
		validationErr *apperrors.ValidationError
		termsErr      *loan.InvalidTermsError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Message, validationErr.Field
	case errors.As(err, &termsErr):
		return http.StatusBadRequest, termsErr.Error(), termsErr.Field
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error(), ""
	case errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrInvalidPaymentAmount):
		return http.StatusBadRequest, err.Error(), ""
	case errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrLoanFullyPaid),
		errors.Is(err, apperrors.ErrLoanNotPayable),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, customer.ErrUpdateConflict):
		return http.StatusConflict, err.Error(), ""
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized", ""
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "Forbidden", ""
	}
	return http.StatusInternalServerError, "An unexpected error occurred.", ""
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Default().Error("Unhandled internal error", "error", err)
	}
	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{Message: message, Field: field},
	})
}

// logLevelFor keeps client mistakes at warn so error logs stay meaningful.
func logLevelFor(err error) slog.Level {
	if status, _, _ := errorStatus(err); status >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func idFromURL(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s not found in URL path", apperrors.ErrInvalidArgument, param)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q in URL path", apperrors.ErrInvalidArgument, param, raw)
	}
	return id, nil
}
