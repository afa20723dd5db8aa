package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/config"
	"github.com/platinummonkey/rolodex/pkg/contacts"
	"github.com/platinummonkey/rolodex/pkg/httputil"
	"github.com/platinummonkey/rolodex/pkg/middleware"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

const (
	// ContactNotFoundMessage is returned when the user owns no contact with the requested ID
	ContactNotFoundMessage = "Contact not found"

	// BirthdayWindowDays is the look-ahead of the upcoming birthdays route
	BirthdayWindowDays = 7

	defaultListLimit = 100
)

// GuardFunc wraps a protected handler for the named route
type GuardFunc func(route string, h http.HandlerFunc) http.Handler

// ContactHandlers handles contact CRUD and queries for the authenticated user
type ContactHandlers struct {
	store  storage.ContactStore
	guard  GuardFunc
	now    func() time.Time
	logger logrus.FieldLogger
}

// NewContactHandlers creates contact handlers
func NewContactHandlers(store storage.ContactStore, guard GuardFunc, now func() time.Time, logger logrus.FieldLogger) *ContactHandlers {
	return &ContactHandlers{
		store:  store,
		guard:  guard,
		now:    now,
		logger: logger,
	}
}

// RegisterRoutes registers contact routes
func (h *ContactHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/contacts", h.guard(config.RouteContactsList, h.listContacts)).Methods("GET")
	router.Handle("/contacts", h.guard(config.RouteContactsCreate, h.createContact)).Methods("POST")
	router.Handle("/contacts/search", h.guard(config.RouteContactsSearch, h.searchContacts)).Methods("GET")
	router.Handle("/contacts/upcoming_birthdays", h.guard(config.RouteContactsBirthdays, h.upcomingBirthdays)).Methods("GET")
	router.Handle("/contacts/{id:[0-9]+}", h.guard(config.RouteContactsGet, h.getContact)).Methods("GET")
	router.Handle("/contacts/{id:[0-9]+}", h.guard(config.RouteContactsUpdate, h.updateContact)).Methods("PUT")
	router.Handle("/contacts/{id:[0-9]+}", h.guard(config.RouteContactsDelete, h.deleteContact)).Methods("DELETE")
}

// listContacts handles GET /contacts?skip=&limit=
func (h *ContactHandlers) listContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	skip, err := httputil.ParseQueryInt(r, "skip", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	list, err := h.store.ListContacts(httputil.Detach(r), user.ID, skip, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// searchContacts handles GET /contacts/search?first_name=&last_name=&email=
func (h *ContactHandlers) searchContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	filter := contacts.SearchFilter{
		FirstName: httputil.ParseQueryString(r, "first_name", ""),
		LastName:  httputil.ParseQueryString(r, "last_name", ""),
		Email:     httputil.ParseQueryString(r, "email", ""),
	}

	list, err := h.store.SearchContacts(httputil.Detach(r), user.ID, filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// upcomingBirthdays handles GET /contacts/upcoming_birthdays
func (h *ContactHandlers) upcomingBirthdays(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	all, err := h.store.AllContacts(httputil.Detach(r), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteSuccess(w, contacts.UpcomingBirthdays(all, h.now(), BirthdayWindowDays))
}

// getContact handles GET /contacts/{id}
func (h *ContactHandlers) getContact(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	contact, err := h.store.GetContact(httputil.Detach(r), user.ID, id)
	h.writeContact(w, r, contact, err)
}

// createContact handles POST /contacts
func (h *ContactHandlers) createContact(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}

	var in contacts.Input
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	contact, err := h.store.CreateContact(httputil.Detach(r), user.ID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.WriteCreated(w, contact)
}

// updateContact handles PUT /contacts/{id}
func (h *ContactHandlers) updateContact(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var in contacts.Input
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	contact, err := h.store.UpdateContact(httputil.Detach(r), user.ID, id, in)
	h.writeContact(w, r, contact, err)
}

// deleteContact handles DELETE /contacts/{id} and returns the removed contact
func (h *ContactHandlers) deleteContact(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, middleware.CredentialsErrorMessage)
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	contact, err := h.store.RemoveContact(httputil.Detach(r), user.ID, id)
	h.writeContact(w, r, contact, err)
}

func (h *ContactHandlers) writeContact(w http.ResponseWriter, r *http.Request, contact *contacts.Contact, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if contact == nil {
		httputil.WriteNotFoundError(w, ContactNotFoundMessage)
		return
	}
	httputil.WriteSuccess(w, contact)
}
