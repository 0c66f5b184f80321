package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

type AuthHandler struct {
	cfg    config.AuthConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthHandler{
		cfg:    cfg,
		logger: l.With("component", "AuthHandler"),
		now:    time.Now,
	}
}

// GenerateBearerToken issues an HS256 token whose subject is recorded as the
// actor on payments, charges and disbursements.
//
// @Summary Generate a JWT bearer token
// @Description Issues a signed bearer token for the given username.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Token request"
// @Success 200 {object} dto.TokenResponse "Token successfully generated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateBearerToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode token request", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	now := h.now()
	expiresAt := now.Add(h.cfg.TokenTTL)
	claims := jwt.MapClaims{
		"sub": strings.TrimSpace(req.Username),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if req.Role != "" {
		claims["role"] = req.Role
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to sign token", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Issued bearer token", slog.String("subject", req.Username))
	respondJSON(w, http.StatusOK, dto.TokenResponse{
		Token:     "Bearer " + signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}
