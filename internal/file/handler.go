package file

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/La-Sectoblique/septotrip-api/internal/access"
	"github.com/La-Sectoblique/septotrip-api/internal/middleware"
	"github.com/La-Sectoblique/septotrip-api/internal/point"
	"github.com/La-Sectoblique/septotrip-api/internal/response"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

type contextKey int

const fileKey contextKey = 0

// FromContext returns the file resolved by Handler.Load.
func FromContext(ctx context.Context) (*File, bool) {
	f, ok := ctx.Value(fileKey).(*File)
	return f, ok && f != nil
}

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc            *Service
	maxUploadBytes int64
}

// NewHandler creates a new file Handler accepting uploads up to maxUploadBytes.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type updateFileRequest struct {
	Name       *string          `json:"name,omitempty"       example:"tickets.pdf"`
	PointID    optionalID       `json:"pointId"              swaggertype:"integer" example:"3"`
	Visibility *trip.Visibility `json:"visibility,omitempty" example:"public"`
}

// optionalID tells an absent id apart from an explicit null.
type optionalID struct {
	set bool
	id  *int64
}

func (o *optionalID) UnmarshalJSON(b []byte) error {
	o.set = true
	if string(b) == "null" {
		o.id = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	o.id = &id
	return nil
}

// Load resolves the {fileID} URL parameter within the trip in context.
// Callers who are not trip members only see public files.
func (h *Handler) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, _ := trip.FromContext(r.Context())
		id, ok := middleware.IDParam(r, "fileID")
		if !ok {
			response.BadRequest(w, "invalid file id")
			return
		}

		f, err := h.svc.Get(r.Context(), t, id, trip.CallerIsMember(r.Context()))
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "file not found")
			return
		}
		if err != nil {
			response.InternalError(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), fileKey, f)))
	})
}

// Upload godoc
//
//	@Summary		Upload file
//	@Description	Store one file on the trip. The metadata is created first; if storing the content then fails the metadata is kept and a retry overwrites the content.
//	@Tags			files
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID		path		int		true	"Trip ID"
//	@Param			file		formData	file	true	"Content"
//	@Param			name		formData	string	false	"Display name, defaults to the uploaded file name"
//	@Param			pointId		formData	int		false	"Point to attach the file to"
//	@Param			visibility	formData	string	false	"public or private (default)"
//	@Success		201			{object}	response.Envelope{data=View}
//	@Failure		400			{object}	response.Envelope
//	@Failure		403			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/trips/{tripID}/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())
	userID, _ := middleware.UserID(r.Context())

	header, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	in := UploadInput{
		Name:       r.FormValue("name"),
		MimeType:   header.Header.Get("Content-Type"),
		Visibility: trip.Visibility(r.FormValue("visibility")),
		Data:       data,
	}
	if in.Name == "" {
		in.Name = header.Filename
	}
	if in.MimeType == "" {
		in.MimeType = http.DetectContentType(data)
	}
	if raw := r.FormValue("pointId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "invalid pointId")
			return
		}
		in.PointID = &id
	}

	v, err := h.svc.Upload(r.Context(), t, userID, in)
	if writeValidation(w, err) {
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, v)
}

// List godoc
//
//	@Summary		List trip files
//	@Description	Private files carry a temporaryAccessToken valid for a few minutes.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Success		200		{object}	response.Envelope{data=[]View}
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/files [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())

	views, err := h.svc.List(r.Context(), t, trip.CallerIsMember(r.Context()))
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, views)
}

// ListByPoint godoc
//
//	@Summary		List point files
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Param			pointID	path		int	true	"Point ID"
//	@Success		200		{object}	response.Envelope{data=[]View}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/points/{pointID}/files [get]
func (h *Handler) ListByPoint(w http.ResponseWriter, r *http.Request) {
	p, _ := point.FromContext(r.Context())

	views, err := h.svc.ListByPoint(r.Context(), p, trip.CallerIsMember(r.Context()))
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, views)
}

// Get godoc
//
//	@Summary		Get file metadata
//	@Description	A private file carries a fresh temporaryAccessToken; a public one carries none.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Param			fileID	path		int	true	"File ID"
//	@Success		200		{object}	response.Envelope{data=View}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/files/{fileID} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	f, _ := FromContext(r.Context())

	v, err := h.svc.Metadata(f)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, v)
}

// Update godoc
//
//	@Summary		Update file metadata
//	@Description	Changing visibility invalidates every token issued before the change. "pointId": null detaches the file from its point.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int					true	"Trip ID"
//	@Param			fileID	path		int					true	"File ID"
//	@Param			request	body		updateFileRequest	true	"Changed fields"
//	@Success		200		{object}	response.Envelope{data=View}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/files/{fileID} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())
	f, _ := FromContext(r.Context())

	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	v, err := h.svc.Update(r.Context(), t, f, UpdateInput{
		Name:       req.Name,
		PointID:    req.PointID.id,
		Visibility: req.Visibility,
		ClearPoint: req.PointID.set && req.PointID.id == nil,
	})
	if writeValidation(w, err) {
		return
	}
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, v)
}

// Content godoc
//
//	@Summary		Download file
//	@Tags			files
//	@Produce		octet-stream
//	@Security		BearerAuth
//	@Param			tripID	path	int	true	"Trip ID"
//	@Param			fileID	path	int	true	"File ID"
//	@Success		200		{file}	binary
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/files/{fileID}/content [get]
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())
	f, _ := FromContext(r.Context())

	data, mimeType, err := h.svc.Content(r.Context(), t, f)
	if IsContentMissing(err) {
		response.NotFound(w, "file content not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Bytes(w, mimeType, data)
}

// ContentByToken godoc
//
//	@Summary		Download file with a temporary token
//	@Description	No session needed. Public files are served directly, even when their trip is private, so anyone who knows the id of a public file can download it. Private files need the temporaryAccessToken from their latest metadata read.
//	@Tags			files
//	@Produce		octet-stream
//	@Param			fileID	path	int		true	"File ID"
//	@Param			token	query	string	false	"Temporary access token"
//	@Success		200		{file}	binary
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/files/{fileID}/content [get]
func (h *Handler) ContentByToken(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IDParam(r, "fileID")
	if !ok {
		response.BadRequest(w, "invalid file id")
		return
	}

	data, mimeType, err := h.svc.ContentByToken(r.Context(), id, r.URL.Query().Get("token"))
	switch {
	case errors.Is(err, ErrNotFound), IsContentMissing(err):
		response.NotFound(w, "file not found")
	case errors.Is(err, access.ErrTokenRequired):
		response.Unauthorized(w, "access token required")
	case errors.Is(err, access.ErrTokenExpired):
		response.Unauthorized(w, "access token expired")
	case errors.Is(err, access.ErrInvalidToken):
		response.Unauthorized(w, "invalid access token")
	case err != nil:
		response.InternalError(w)
	default:
		response.Bytes(w, mimeType, data)
	}
}

// Delete godoc
//
//	@Summary		Delete file
//	@Description	Removes the content and then the metadata.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int	true	"Trip ID"
//	@Param			fileID	path		int	true	"File ID"
//	@Success		200		{object}	response.Envelope{data=response.Message}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/files/{fileID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())
	f, _ := FromContext(r.Context())

	err := h.svc.Delete(r.Context(), t, f)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Done(w, "File deleted")
}

// ReplaceContent godoc
//
//	@Summary		Replace file content
//	@Description	Store new content under an existing file. Also used to retry an upload whose content was never stored.
//	@Tags			files
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			tripID	path		int		true	"Trip ID"
//	@Param			fileID	path		int		true	"File ID"
//	@Param			file	formData	file	true	"Content"
//	@Success		200		{object}	response.Envelope{data=View}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/trips/{tripID}/files/{fileID}/content [put]
func (h *Handler) ReplaceContent(w http.ResponseWriter, r *http.Request) {
	t, _ := trip.FromContext(r.Context())
	f, _ := FromContext(r.Context())

	header, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	v, err := h.svc.ReplaceContent(r.Context(), t, f, header.Header.Get("Content-Type"), data)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "file not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, v)
}

// readUpload parses a multipart body holding exactly one "file" part and
// returns that part. On failure the response has been written.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*multipart.FileHeader, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "file too large")
			return nil, nil, false
		}
		response.BadRequest(w, "invalid multipart body")
		return nil, nil, false
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	headers := r.MultipartForm.File["file"]
	if len(headers) != 1 {
		response.BadRequest(w, "exactly one file is required")
		return nil, nil, false
	}
	header := headers[0]

	src, err := header.Open()
	if err != nil {
		response.BadRequest(w, "unreadable file")
		return nil, nil, false
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		response.BadRequest(w, "unreadable file")
		return nil, nil, false
	}
	return header, data, true
}

func writeValidation(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidVisibility), errors.Is(err, ErrInvalidPoint):
		response.BadRequest(w, err.Error())
		return true
	}
	return false
}
