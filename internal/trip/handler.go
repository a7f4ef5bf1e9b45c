package trip

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/La-Sectoblique/septotrip-api/internal/middleware"
	"github.com/La-Sectoblique/septotrip-api/internal/response"
	"github.com/La-Sectoblique/septotrip-api/internal/user"
)

// Handler holds HTTP handlers for trip endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new trip Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createTripRequest struct {
	Name        string     `json:"name"        example:"Road Trip"`
	Description string     `json:"description" example:"Two weeks along the coast"`
	Visibility  Visibility `json:"visibility"  example:"private"`
}

type updateTripRequest struct {
	Name        *string     `json:"name,omitempty"        example:"Road Trip 2"`
	Description *string     `json:"description,omitempty" example:"Three weeks"`
	Visibility  *Visibility `json:"visibility,omitempty"  example:"public"`
}

type addMemberRequest struct {
	Email string `json:"email" example:"bob@example.com"`
}

// Create godoc
//
//	@Summary		Create trip
//	@Description	Create a trip authored by the caller. The caller becomes its first member and the trip's file storage is provisioned.
//	@Tags			trips
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		createTripRequest	true	"Trip"
//	@Success		201		{object}	response.Envelope{data=Trip}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	t, err := h.svc.Create(r.Context(), userID, CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if writeValidation(w, err) {
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, t)
}

// ListMine godoc
//
//	@Summary		List my trips
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Trip}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/trips [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	trips, err := h.svc.ListMine(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, trips)
}

// ListPublic godoc
//
//	@Summary		List public trips
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]Trip}
//	@Failure		500	{object}	response.Envelope
//	@Router			/trips/public [get]
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	trips, err := h.svc.ListPublic(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, trips)
}

// Get godoc
//
//	@Summary		Get trip
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Success		200		{object}	response.Envelope{data=Trip}
//	@Failure		404		{object}	response.Envelope
//	@Router			/trips/{tripID} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())
	response.OK(w, t)
}

// Author godoc
//
//	@Summary		Get trip author
//	@Description	Returns the public profile of the trip's author.
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Success		200		{object}	response.Envelope{data=user.Profile}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/author [get]
func (h *Handler) Author(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())

	p, err := h.svc.Author(r.Context(), t)
	if errors.Is(err, user.ErrNotFound) {
		response.NotFound(w, "author not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, p)
}

// Update godoc
//
//	@Summary		Update trip
//	@Description	Change name, description or visibility. The trip keeps its file storage when renamed.
//	@Tags			trips
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int					true	"Trip ID"
//	@Param			request	body		updateTripRequest	true	"Changed fields"
//	@Success		200		{object}	response.Envelope{data=Trip}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())

	var req updateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), t, UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if writeValidation(w, err) {
		return
	}
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "trip not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, updated)
}

// Delete godoc
//
//	@Summary		Delete trip
//	@Description	Delete a trip with its points and files. Only the author may delete a trip.
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Success		200		{object}	response.Envelope{data=response.Message}
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())
	userID, _ := middleware.UserID(r.Context())

	err := h.svc.Delete(r.Context(), t, userID)
	if errors.Is(err, ErrForbidden) {
		response.Forbidden(w, "only the author can delete a trip")
		return
	}
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "trip not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Done(w, "Trip deleted")
}

// Members godoc
//
//	@Summary		List trip members
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Success		200		{object}	response.Envelope{data=[]user.User}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/members [get]
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())

	members, err := h.svc.Members(r.Context(), t)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, members)
}

// AddMember godoc
//
//	@Summary		Add trip member
//	@Description	Add the user registered under the given email to the trip.
//	@Tags			trips
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int					true	"Trip ID"
//	@Param			request	body		addMemberRequest	true	"Member email"
//	@Success		201		{object}	response.Envelope{data=user.User}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())

	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		response.BadRequest(w, "email is required")
		return
	}

	u, err := h.svc.AddMember(r.Context(), t, req.Email)
	switch {
	case errors.Is(err, user.ErrNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, ErrAlreadyMember):
		response.Conflict(w, "user is already a member of this trip")
	case err != nil:
		response.InternalError(w)
	default:
		response.Created(w, u)
	}
}

// RemoveMember godoc
//
//	@Summary		Remove trip member
//	@Description	The author may remove any member except themselves; other members may only remove themselves.
//	@Tags			trips
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Param			userID	path		int	true	"User ID"
//	@Success		200		{object}	response.Envelope{data=response.Message}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/members/{userID} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	t, _ := FromContext(r.Context())
	callerID, _ := middleware.UserID(r.Context())

	memberID, ok := middleware.IDParam(r, "userID")
	if !ok {
		response.BadRequest(w, "invalid user id")
		return
	}

	err := h.svc.RemoveMember(r.Context(), t, callerID, memberID)
	switch {
	case errors.Is(err, ErrAuthorIsMember):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "only the author can remove other members")
	case errors.Is(err, ErrNotMember):
		response.NotFound(w, "user is not a member of this trip")
	case err != nil:
		response.InternalError(w)
	default:
		response.Done(w, "Member removed")
	}
}

// writeValidation answers 400 for input errors and reports whether it did.
func writeValidation(w http.ResponseWriter, err error) bool {
	if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrInvalidVisibility) {
		response.BadRequest(w, err.Error())
		return true
	}
	return false
}
