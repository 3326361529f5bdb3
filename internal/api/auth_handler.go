package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/platform/logger"
	"github.com/phrazzld/atlas-api/internal/service/auth"
)

// AuthHandler handles the operator token endpoint: it exchanges the
// configured operator key for a short-lived JWT access token.
type AuthHandler struct {
	jwtService      auth.JWTService
	keyVerifier     auth.KeyVerifier
	operatorKeyHash string
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(jwtService auth.JWTService, keyVerifier auth.KeyVerifier, operatorKeyHash string) (*AuthHandler, error) {
	if jwtService == nil {
		return nil, errors.New("jwt service cannot be nil")
	}
	if keyVerifier == nil {
		return nil, errors.New("key verifier cannot be nil")
	}
	if operatorKeyHash == "" {
		return nil, errors.New("operator key hash cannot be empty")
	}
	return &AuthHandler{
		jwtService:      jwtService,
		keyVerifier:     keyVerifier,
		operatorKeyHash: operatorKeyHash,
	}, nil
}

// Token handles POST /api/auth/token requests.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req TokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Operator key is required")
		return
	}

	if err := h.keyVerifier.Compare(h.operatorKeyHash, req.OperatorKey); err != nil {
		// Repeated failures here are an operational signal, so elevate.
		log.Warn("operator key rejected", "remote_addr", r.RemoteAddr)
		shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid operator key", err,
			shared.WithElevatedLogLevel())
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to issue token")
		return
	}

	log.Info("operator token issued", "expires_at", expiresAt)
	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	})
}
