package point

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/La-Sectoblique/septotrip-api/internal/middleware"
	"github.com/La-Sectoblique/septotrip-api/internal/response"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
)

type contextKey int

const pointKey contextKey = 0

// FromContext returns the point resolved by Handler.Load.
func FromContext(ctx context.Context) (*Point, bool) {
	p, ok := ctx.Value(pointKey).(*Point)
	return p, ok && p != nil
}

// Handler holds HTTP handlers for point endpoints. Every route runs behind
// trip.RequireAccess.
type Handler struct {
	svc *Service
}

// NewHandler creates a new point Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Load resolves the {pointID} URL parameter within the trip in context.
func (h *Handler) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, _ := trip.FromContext(r.Context())
		id, ok := middleware.IDParam(r, "pointID")
		if !ok {
			response.BadRequest(w, "invalid point id")
			return
		}

		p, err := h.svc.Get(r.Context(), t.ID, id)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "point not found")
			return
		}
		if err != nil {
			response.InternalError(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), pointKey, p)))
	})
}

// Create godoc
//
//	@Summary		Add point
//	@Tags			points
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int		true	"Trip ID"
//	@Param			request	body		Input	true	"Point"
//	@Success		201		{object}	response.Envelope{data=Point}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/points [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())
	userID, _ := middleware.UserID(r.Context())

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	p, err := h.svc.Create(r.Context(), t.ID, userID, in)
	if errors.Is(err, ErrInvalidInput) {
		response.BadRequest(w, "title, longitude and latitude are required and must be in range")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, p)
}

// List godoc
//
//	@Summary		List trip points
//	@Tags			points
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Success		200		{object}	response.Envelope{data=[]Point}
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/points [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())

	points, err := h.svc.List(r.Context(), t.ID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, points)
}

// Get godoc
//
//	@Summary		Get point
//	@Tags			points
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Param			pointID	path		int	true	"Point ID"
//	@Success		200		{object}	response.Envelope{data=Point}
//	@Failure		404		{object}	response.Envelope
//	@Router			/trips/{tripID}/points/{pointID} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := FromContext(r.Context())
	response.OK(w, p)
}

// Update godoc
//
//	@Summary		Update point
//	@Tags			points
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int		true	"Trip ID"
//	@Param			pointID	path		int		true	"Point ID"
//	@Param			request	body		Input	true	"Changed fields"
//	@Success		200		{object}	response.Envelope{data=Point}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/points/{pointID} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := FromContext(r.Context())

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), p, in)
	switch {
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(w, "invalid point")
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "point not found")
	case err != nil:
		response.InternalError(w)
	default:
		response.OK(w, updated)
	}
}

// Delete godoc
//
//	@Summary		Delete point
//	@Description	Delete a point. Files attached to it stay on the trip without a point.
//	@Tags			points
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Param			pointID	path		int	true	"Point ID"
//	@Success		200		{object}	response.Envelope{data=response.Message}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/points/{pointID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := FromContext(r.Context())

	err := h.svc.Delete(r.Context(), p)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "point not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Done(w, "Point deleted")
}
