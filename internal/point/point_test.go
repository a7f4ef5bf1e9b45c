package point

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/La-Sectoblique/septotrip-api/internal/middleware"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
)

type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	points map[int64]*Point
}

func (s *memoryStore) Create(_ context.Context, p Point) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.points[p.ID] = &p
	cp := p
	return &cp, nil
}

func (s *memoryStore) GetByID(_ context.Context, id int64) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) ListByTrip(_ context.Context, tripID int64) ([]Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Point{}
	for id := int64(1); id <= s.nextID; id++ {
		if p, ok := s.points[id]; ok && p.TripID == tripID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memoryStore) Update(_ context.Context, id int64, in Input) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Longitude != nil {
		p.Longitude = *in.Longitude
	}
	if in.Latitude != nil {
		p.Latitude = *in.Latitude
	}
	cp := *p
	return &cp, nil
}

func (s *memoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[id]; !ok {
		return ErrNotFound
	}
	delete(s.points, id)
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestService_Create(t *testing.T) {
	svc := NewService(&memoryStore{points: map[int64]*Point{}})
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
		ok   bool
	}{
		{"valid", Input{Title: ptr("Lighthouse"), Longitude: ptr(-4.77), Latitude: ptr(48.36)}, true},
		{"missing title", Input{Longitude: ptr(1.0), Latitude: ptr(1.0)}, false},
		{"blank title", Input{Title: ptr("  "), Longitude: ptr(1.0), Latitude: ptr(1.0)}, false},
		{"missing coordinates", Input{Title: ptr("x")}, false},
		{"longitude out of range", Input{Title: ptr("x"), Longitude: ptr(181.0), Latitude: ptr(0.0)}, false},
		{"latitude out of range", Input{Title: ptr("x"), Longitude: ptr(0.0), Latitude: ptr(-91.0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Create(ctx, 1, 1, tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), p.TripID)
			assert.Equal(t, "Lighthouse", p.Title)
		})
	}
}

func TestService_GetChecksTrip(t *testing.T) {
	svc := NewService(&memoryStore{points: map[int64]*Point{}})
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, 1, Input{Title: ptr("A"), Longitude: ptr(0.0), Latitude: ptr(0.0)})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 1, p.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, 2, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandler_Routes(t *testing.T) {
	svc := NewService(&memoryStore{points: map[int64]*Point{}})
	h := NewHandler(svc)
	current := &trip.Trip{ID: 1, AuthorID: 1}

	r := chi.NewRouter()
	r.Route("/trips/{tripID}/points", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := middleware.WithUser(r.Context(), 1, "")
				next.ServeHTTP(w, r.WithContext(trip.WithTrip(ctx, current, true)))
			})
		})
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Route("/{pointID}", func(r chi.Router) {
			r.Use(h.Load)
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})

	send := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
		return rec
	}

	rec := send(http.MethodPost, "/trips/1/points", Input{Title: ptr("Lighthouse"), Longitude: ptr(-4.77), Latitude: ptr(48.36)})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusBadRequest, send(http.MethodPost, "/trips/1/points", Input{}).Code)

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/trips/1/points/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, send(http.MethodGet, "/trips/1/points/2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, send(http.MethodGet, "/trips/1/points/x", nil).Code)

	rec = send(http.MethodPatch, "/trips/1/points/1", Input{Title: ptr("Harbour")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Harbour")

	rec = send(http.MethodGet, "/trips/1/points", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []Point `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Len(t, env.Data, 1)

	assert.Equal(t, http.StatusOK, send(http.MethodDelete, "/trips/1/points/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, send(http.MethodGet, "/trips/1/points/1", nil).Code)
}
