package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/httputil"
	"github.com/platinummonkey/rolodex/pkg/middleware"
)

// maxAvatarBytes bounds an avatar upload held in memory
const maxAvatarBytes = 2 << 20

// UserHandlers handles requests about the authenticated user
type UserHandlers struct {
	sessions SessionService
	avatars  AvatarUploader
	authMW   *middleware.AuthMiddleware
	logger   logrus.FieldLogger
}

// NewUserHandlers creates user handlers. A nil uploader disables avatar uploads.
func NewUserHandlers(sessions SessionService, avatars AvatarUploader, authMW *middleware.AuthMiddleware, logger logrus.FieldLogger) *UserHandlers {
	return &UserHandlers{
		sessions: sessions,
		avatars:  avatars,
		authMW:   authMW,
		logger:   logger,
	}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/users/me", h.authMW.Handler(http.HandlerFunc(h.me))).Methods("GET")
	router.Handle("/users/avatar", h.authMW.Handler(http.HandlerFunc(h.updateAvatar))).Methods("PATCH")
}

// me handles GET /users/me
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	httputil.WriteSuccess(w, newUserResponse(user))
}

// updateAvatar handles PATCH /users/avatar with a multipart "file" field
func (h *UserHandlers) updateAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	if h.avatars == nil {
		httputil.WriteServiceUnavailable(w, "Avatar uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		httputil.WriteValidationError(w, "file: multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteValidationError(w, "file: is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx := httputil.Detach(r)
	url, err := h.avatars.UploadAvatar(ctx, user.ID, file, contentType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.sessions.UpdateAvatar(ctx, user, url)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteSuccess(w, newUserResponse(updated))
}
