package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/httputil"
	"github.com/platinummonkey/rolodex/pkg/middleware"
	"github.com/platinummonkey/rolodex/pkg/session"
)

// AuthHandlers handles signup, login and token lifecycle requests
type AuthHandlers struct {
	sessions SessionService
	authMW   *middleware.AuthMiddleware
	logger   logrus.FieldLogger
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(sessions SessionService, authMW *middleware.AuthMiddleware, logger logrus.FieldLogger) *AuthHandlers {
	return &AuthHandlers{
		sessions: sessions,
		authMW:   authMW,
		logger:   logger,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/signup", h.signup).Methods("POST")
	router.HandleFunc("/auth/login", h.login).Methods("POST")
	router.HandleFunc("/auth/confirmed_email/{token}", h.confirmEmail).Methods("GET")
	router.HandleFunc("/auth/request_email", h.requestEmail).Methods("POST")
	router.HandleFunc("/auth/request_reset_password", h.requestResetPassword).Methods("POST")
	router.HandleFunc("/auth/reset_password/{token}", h.resetPassword).Methods("POST")
	router.HandleFunc("/auth/refresh_token", h.refreshToken).Methods("GET")
	router.Handle("/auth/logout", h.authMW.Handler(http.HandlerFunc(h.logout))).Methods("POST")
}

// signup handles POST /auth/signup
func (h *AuthHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.sessions.Signup(httputil.Detach(r), session.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteCreated(w, SignupResponse{
		User:   newUserResponse(user),
		Detail: SignupDetail,
	})
}

// login handles POST /auth/login with form fields username and password.
// The username field carries the account email.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	form, ok := httputil.RequireFormValues(w, r, "username", "password")
	if !ok {
		return
	}

	pair, err := h.sessions.Login(httputil.Detach(r), form["username"], form["password"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteSuccess(w, pair)
}

// confirmEmail handles GET /auth/confirmed_email/{token}
func (h *AuthHandlers) confirmEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	message, err := h.sessions.ConfirmEmail(httputil.Detach(r), token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteMessage(w, message)
}

// requestEmail handles POST /auth/request_email
func (h *AuthHandlers) requestEmail(w http.ResponseWriter, r *http.Request) {
	var req RequestEmailRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	message, err := h.sessions.RequestConfirmation(httputil.Detach(r), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteMessage(w, message)
}

// requestResetPassword handles POST /auth/request_reset_password
func (h *AuthHandlers) requestResetPassword(w http.ResponseWriter, r *http.Request) {
	var req RequestEmailRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	message, err := h.sessions.RequestPasswordReset(httputil.Detach(r), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteMessage(w, message)
}

// resetPassword handles POST /auth/reset_password/{token}
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	message, err := h.sessions.ResetPassword(httputil.Detach(r), token, req.Password1, req.Password2)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteMessage(w, message)
}

// refreshToken handles GET /auth/refresh_token with the refresh token as bearer credential
func (h *AuthHandlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	pair, err := h.sessions.Refresh(httputil.Detach(r), token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteSuccess(w, pair)
}

// logout handles POST /auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	if err := h.sessions.Logout(httputil.Detach(r), user); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteNoContent(w)
}
