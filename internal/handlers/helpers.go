package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rentnest/rentnest/internal/middleware"
	"github.com/rentnest/rentnest/internal/otp"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/rentnest/rentnest/internal/quota"
	"github.com/sirupsen/logrus"
)

const maxJSONBody = 1 << 20

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
		return false
	}
	return true
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
	}
	return id, ok
}

// writeError maps service errors onto the JSON error envelope.
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var (
		rateLimited *otp.RateLimitedError
		cooldown    *otp.CooldownError
		dispatch    *otp.DispatchError
		mismatch    *otp.MismatchError
		limit       *quota.LimitReachedError
	)

	switch {
	case errors.Is(err, otp.ErrInvalidFormat):
		respondWithError(w, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number format", nil)
	case errors.As(err, &rateLimited):
		secs := otp.RetryAfterSeconds(rateLimited.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		respondWithError(w, http.StatusTooManyRequests, "OTP_RATE_LIMITED", "Too many OTP requests",
			map[string]any{"retry_after": secs})
	case errors.As(err, &cooldown):
		secs := otp.RetryAfterSeconds(cooldown.RetryAfter)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		respondWithError(w, http.StatusTooManyRequests, "OTP_COOLDOWN", "Please wait before requesting another OTP",
			map[string]any{"retry_after": secs})
	case errors.As(err, &dispatch):
		logger.WithError(err).Error("OTP dispatch failed")
		respondWithError(w, http.StatusBadGateway, "OTP_DISPATCH_FAILED", "Failed to send OTP", nil)
	case errors.Is(err, otp.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "OTP_NOT_FOUND", "No OTP was requested for this number", nil)
	case errors.Is(err, otp.ErrExpired):
		respondWithError(w, http.StatusGone, "OTP_EXPIRED", "OTP has expired", nil)
	case errors.Is(err, otp.ErrAttemptsExceeded):
		respondWithError(w, http.StatusTooManyRequests, "OTP_ATTEMPTS_EXCEEDED", "Too many incorrect attempts, request a new OTP", nil)
	case errors.As(err, &mismatch):
		respondWithError(w, http.StatusUnauthorized, "OTP_MISMATCH", "Invalid OTP",
			map[string]any{"attempts_remaining": mismatch.AttemptsRemaining})
	case errors.As(err, &limit):
		respondWithError(w, http.StatusForbidden, "QUOTA_EXCEEDED", limit.Error(),
			map[string]any{"kind": limit.Kind, "limit": limit.Limit, "used": limit.Used})
	case errors.Is(err, appErr.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, appErr.ErrConflict):
		respondWithError(w, http.StatusConflict, "CONFLICT", reason(err, appErr.ErrConflict, "Resource already exists"), nil)
	case errors.Is(err, appErr.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "FORBIDDEN", reason(err, appErr.ErrForbidden, "Not allowed"), nil)
	case errors.Is(err, appErr.ErrInvalid):
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", reason(err, appErr.ErrInvalid, "Invalid request"), nil)
	case errors.Is(err, appErr.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
	default:
		logger.WithError(err).Error("Request failed")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

// reason strips the sentinel prefix from a wrapped "%w: detail" error.
func reason(err, sentinel error, fallback string) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == sentinel.Error() || msg == "" {
		return fallback
	}
	return msg
}
