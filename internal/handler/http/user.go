package http

import (
	"log/slog"
	"net/http"

	"github.com/sodmaq/auth-service/internal/domain"
	apperrors "github.com/sodmaq/auth-service/pkg/errors"
	"github.com/sodmaq/auth-service/pkg/httputil"
	"github.com/sodmaq/auth-service/pkg/middleware"
)

// errNoPrincipal means a protected handler was mounted without the Auth
// middleware.
var errNoPrincipal = apperrors.Unauthorized("you are not logged in, please log in to get access")

// UserHandler serves the authenticated user's own record.
type UserHandler struct {
	logger *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(logger *slog.Logger) *UserHandler {
	return &UserHandler{logger: logger}
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.PrincipalFromContext[*domain.User](r.Context())
	if !ok {
		httputil.WriteError(w, r, errNoPrincipal, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, UserResponse{User: user})
}
