package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/La-Sectoblique/septotrip-api/internal/response"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLen = 8

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Email     string `json:"email"     example:"ada@example.com"`
	Password  string `json:"password"  example:"correct horse"`
	FirstName string `json:"firstName" example:"Ada"`
	LastName  string `json:"lastName"  example:"Lovelace"`
}

type loginRequest struct {
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"correct horse"`
}

type loginData struct {
	Session string `json:"session" example:"eyJhbGci..."`
	Email   string `json:"email"   example:"ada@example.com"`
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create an account. The client then logs in to obtain a session token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Account details"
//	@Success		201		{object}	response.Envelope{data=response.Message}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !emailRegex.MatchString(strings.TrimSpace(req.Email)) {
		response.BadRequest(w, "invalid email format")
		return
	}
	if len(req.Password) < minPasswordLen {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		response.BadRequest(w, "firstName and lastName are required")
		return
	}

	_, err := h.svc.Register(r.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(w, "user already exists")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, response.Message{Message: "User created, please log in"})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange email and password for a session token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=loginData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid email or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, loginData{Session: token, Email: u.Email})
}
