package file

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/La-Sectoblique/septotrip-api/internal/access"
	"github.com/La-Sectoblique/septotrip-api/internal/point"
	"github.com/La-Sectoblique/septotrip-api/internal/storage"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
)

type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	files  map[int64]*File
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: map[int64]*File{}}
}

func (s *memoryStore) Create(_ context.Context, f File) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	f.ID = s.nextID
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	s.files[f.ID] = &f
	cp := f
	return &cp, nil
}

func (s *memoryStore) GetByID(_ context.Context, id int64) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memoryStore) filter(keep func(*File) bool, includePrivate bool) []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []File{}
	for _, f := range s.files {
		if keep(f) && (includePrivate || f.Visibility == trip.Public) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) ListByTrip(_ context.Context, tripID int64, includePrivate bool) ([]File, error) {
	return s.filter(func(f *File) bool { return f.TripID == tripID }, includePrivate), nil
}

func (s *memoryStore) ListByPoint(_ context.Context, pointID int64, includePrivate bool) ([]File, error) {
	return s.filter(func(f *File) bool { return f.PointID != nil && *f.PointID == pointID }, includePrivate), nil
}

func (s *memoryStore) Update(_ context.Context, id int64, in UpdateInput) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.PointID != nil {
		f.PointID = in.PointID
	}
	if in.ClearPoint {
		f.PointID = nil
	}
	if in.Visibility != nil {
		f.Visibility = *in.Visibility
		f.VisibilityRevision++
	}
	cp := *f
	return &cp, nil
}

func (s *memoryStore) SetContent(_ context.Context, id int64, mimeType string, size int64) (*File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	f.MimeType = mimeType
	f.Size = size
	cp := *f
	return &cp, nil
}

func (s *memoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

type pointSet map[int64]int64 // point id -> trip id

func (p pointSet) Get(_ context.Context, tripID, id int64) (*point.Point, error) {
	if owner, ok := p[id]; ok && owner == tripID {
		return &point.Point{ID: id, TripID: tripID}, nil
	}
	return nil, point.ErrNotFound
}

type tripSet map[int64]*trip.Trip

func (t tripSet) Get(_ context.Context, id int64) (*trip.Trip, error) {
	if tr, ok := t[id]; ok {
		return tr, nil
	}
	return nil, trip.ErrNotFound
}

type fixture struct {
	svc     *Service
	store   *memoryStore
	backend *storage.MemoryBackend
	tokens  *access.Issuer
	trip    *trip.Trip
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := storage.NewMemoryBackend()
	mgr, err := storage.NewManager(backend, "app")
	require.NoError(t, err)

	roadTrip := &trip.Trip{ID: 42, Name: "Road Trip!!", StorageName: "Road Trip!!", AuthorID: 1}
	require.NoError(t, mgr.ProvisionTripStorage(context.Background(), roadTrip.ID, roadTrip.StorageName))

	store := newMemoryStore()
	store.nextID = 6
	tokens := access.NewIssuer("file-secret", 5*time.Minute)
	svc := NewService(store, mgr, tokens, pointSet{3: 42, 9: 99}, tripSet{42: roadTrip}, zap.NewNop())
	return &fixture{svc: svc, store: store, backend: backend, tokens: tokens, trip: roadTrip}
}

var pdf = []byte{0x50, 0x44, 0x46}

func TestRoadTripScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "tickets.pdf", MimeType: "application/pdf", Data: pdf})
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.ID)
	assert.True(t, fx.backend.HasBucket("app-42-road-trip"))

	f, err := fx.svc.Get(ctx, fx.trip, 7, true)
	require.NoError(t, err)
	data, mimeType, err := fx.svc.Content(ctx, fx.trip, f)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
	assert.Equal(t, "application/pdf", mimeType)

	private := trip.Private
	v, err = fx.svc.Update(ctx, fx.trip, f, UpdateInput{Visibility: &private})
	require.NoError(t, err)
	assert.NotEmpty(t, v.TemporaryAccessToken)

	public := trip.Public
	v, err = fx.svc.Update(ctx, fx.trip, f, UpdateInput{Visibility: &public})
	require.NoError(t, err)
	assert.Empty(t, v.TemporaryAccessToken)

	f, err = fx.svc.Get(ctx, fx.trip, 7, false)
	require.NoError(t, err)
	v, err = fx.svc.Metadata(f)
	require.NoError(t, err)
	assert.Empty(t, v.TemporaryAccessToken)
}

func TestUpload_DefaultsToPrivateWithToken(t *testing.T) {
	fx := newFixture(t)

	v, err := fx.svc.Upload(context.Background(), fx.trip, 1, UploadInput{Name: "a.txt", MimeType: "text/plain", Data: []byte("a")})
	require.NoError(t, err)
	assert.Equal(t, trip.Private, v.Visibility)
	assert.Equal(t, int64(1), v.Size)

	claims, err := fx.tokens.Verify(v.TemporaryAccessToken)
	require.NoError(t, err)
	assert.Equal(t, v.ID, claims.FileID)
}

func TestUpload_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	elsewhere := int64(9)

	_, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: " ", Data: pdf})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a", Visibility: "friends", Data: pdf})
	assert.ErrorIs(t, err, ErrInvalidVisibility)

	_, err = fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a", PointID: &elsewhere, Data: pdf})
	assert.ErrorIs(t, err, ErrInvalidPoint)

	assert.Empty(t, fx.store.files, "rejected uploads must not create metadata")
}

type brokenObjects struct{ ObjectStore }

func (brokenObjects) UploadFile(context.Context, int64, int64, string, string, []byte) error {
	return storage.ErrStorageUnavailable
}

func (brokenObjects) DeleteFile(context.Context, int64, int64, string) error {
	return storage.ErrStorageUnavailable
}

func TestUpload_StorageFailureKeepsMetadata(t *testing.T) {
	fx := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	fx.svc.objects = brokenObjects{}
	fx.svc.log = zap.New(core)

	_, err := fx.svc.Upload(context.Background(), fx.trip, 1, UploadInput{Name: "a.pdf", MimeType: "application/pdf", Data: pdf})
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)

	_, err = fx.store.GetByID(context.Background(), 7)
	assert.NoError(t, err, "metadata row is kept after a failed put")
	assert.Equal(t, 1, logs.FilterField(zap.Int64("file_id", 7)).Len())
}

func TestReplaceContent_RepairsFailedUpload(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	objects := fx.svc.objects

	fx.svc.objects = brokenObjects{}
	_, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a.pdf", MimeType: "application/pdf", Data: pdf})
	require.Error(t, err)

	f, err := fx.svc.Get(ctx, fx.trip, 7, true)
	require.NoError(t, err)
	fx.svc.objects = objects
	_, _, err = fx.svc.Content(ctx, fx.trip, f)
	assert.True(t, IsContentMissing(err))

	v, err := fx.svc.ReplaceContent(ctx, fx.trip, f, "", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", v.MimeType, "keeps the recorded type when none is given")
	assert.Equal(t, int64(8), v.Size)

	data, _, err := fx.svc.Content(ctx, fx.trip, &v.File)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestDelete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a.pdf", MimeType: "application/pdf", Data: pdf})
	require.NoError(t, err)
	f := &v.File

	require.NoError(t, fx.svc.Delete(ctx, fx.trip, f))

	_, _, err = fx.svc.Content(ctx, fx.trip, f)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.True(t, IsContentMissing(err))

	_, err = fx.svc.Get(ctx, fx.trip, f.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_StorageFailureKeepsMetadata(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a.pdf", Data: pdf})
	require.NoError(t, err)

	fx.svc.objects = brokenObjects{}
	assert.ErrorIs(t, fx.svc.Delete(ctx, fx.trip, &v.File), storage.ErrStorageUnavailable)

	_, err = fx.store.GetByID(ctx, v.ID)
	assert.NoError(t, err)
}

func TestGet_HidesPrivateAndForeignFiles(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a.pdf", Data: pdf})
	require.NoError(t, err)

	_, err = fx.svc.Get(ctx, fx.trip, v.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.Get(ctx, &trip.Trip{ID: 99}, v.ID, true)
	assert.ErrorIs(t, err, ErrNotFound)

	views, err := fx.svc.List(ctx, fx.trip, false)
	require.NoError(t, err)
	assert.Empty(t, views)

	views, err = fx.svc.List(ctx, fx.trip, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.NotEmpty(t, views[0].TemporaryAccessToken)
}

func TestUpdate_DetachesPoint(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	pointID := int64(3)

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "on-point", PointID: &pointID, Data: pdf})
	require.NoError(t, err)

	_, err = fx.svc.Update(ctx, fx.trip, &v.File, UpdateInput{PointID: &pointID, ClearPoint: true})
	assert.ErrorIs(t, err, ErrInvalidPoint)

	updated, err := fx.svc.Update(ctx, fx.trip, &v.File, UpdateInput{ClearPoint: true})
	require.NoError(t, err)
	assert.Nil(t, updated.PointID)

	views, err := fx.svc.ListByPoint(ctx, &point.Point{ID: 3, TripID: 42}, true)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestContentByToken_PublicFileOfPrivateTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.trip.Visibility = trip.Private

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "map.png", MimeType: "image/png", Visibility: trip.Public, Data: pdf})
	require.NoError(t, err)
	require.Empty(t, v.TemporaryAccessToken)

	data, _, err := fx.svc.ContentByToken(ctx, v.ID, "")
	require.NoError(t, err, "public files are readable without a session whatever the trip visibility")
	assert.Equal(t, pdf, data)
}

func TestListByPoint(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	pointID := int64(3)

	_, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "on-point", PointID: &pointID, Visibility: trip.Public, Data: pdf})
	require.NoError(t, err)
	_, err = fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "loose", Data: pdf})
	require.NoError(t, err)

	views, err := fx.svc.ListByPoint(ctx, &point.Point{ID: 3, TripID: 42}, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "on-point", views[0].Name)
	assert.Empty(t, views[0].TemporaryAccessToken)
}

func TestContentByToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	v, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a.pdf", MimeType: "application/pdf", Data: pdf})
	require.NoError(t, err)
	token := v.TemporaryAccessToken
	require.NotEmpty(t, token)

	data, mimeType, err := fx.svc.ContentByToken(ctx, v.ID, token)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
	assert.Equal(t, "application/pdf", mimeType)

	_, _, err = fx.svc.ContentByToken(ctx, v.ID, "")
	assert.ErrorIs(t, err, access.ErrTokenRequired)

	_, _, err = fx.svc.ContentByToken(ctx, 1234, token)
	assert.ErrorIs(t, err, ErrNotFound)

	public, private := trip.Public, trip.Private
	f := &v.File
	pub, err := fx.svc.Update(ctx, fx.trip, f, UpdateInput{Visibility: &public})
	require.NoError(t, err)

	_, _, err = fx.svc.ContentByToken(ctx, v.ID, "")
	assert.NoError(t, err, "public files need no token")

	_, err = fx.svc.Update(ctx, fx.trip, &pub.File, UpdateInput{Visibility: &private})
	require.NoError(t, err)

	_, _, err = fx.svc.ContentByToken(ctx, v.ID, token)
	assert.ErrorIs(t, err, access.ErrInvalidToken, "tokens from before a visibility change stop working")
}

func TestPurgeTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "a", Data: pdf})
	require.NoError(t, err)
	b, err := fx.svc.Upload(ctx, fx.trip, 1, UploadInput{Name: "b", Visibility: trip.Public, Data: pdf})
	require.NoError(t, err)

	require.NoError(t, fx.svc.PurgeTrip(ctx, fx.trip))

	for _, v := range []*View{a, b} {
		_, _, err := fx.svc.Content(ctx, fx.trip, &v.File)
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	}

	fx.svc.objects = brokenObjects{}
	err = fx.svc.PurgeTrip(ctx, fx.trip)
	assert.True(t, errors.Is(err, storage.ErrStorageUnavailable))
}
