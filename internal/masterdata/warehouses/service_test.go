package warehouses

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	items     []Warehouse
	createErr error
}

func (m *mockRepository) List(_ context.Context, page, perPage int) ([]Warehouse, int, error) {
	p := shared.NewPagination(page, perPage, len(m.items))
	start := min(p.Offset(), len(m.items))
	end := min(start+p.PerPage, len(m.items))
	return m.items[start:end], len(m.items), nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Warehouse, error) {
	for _, w := range m.items {
		if w.ID == id {
			return w, nil
		}
	}
	return Warehouse{}, ErrNotFound
}

func (m *mockRepository) Create(_ context.Context, w Warehouse) (Warehouse, error) {
	if m.createErr != nil {
		return Warehouse{}, m.createErr
	}
	w.ID = int64(len(m.items) + 1)
	w.CreatedAt = time.Now().UTC()
	m.items = append(m.items, w)
	return w, nil
}

func TestCreateTrimsName(t *testing.T) {
	repo := &mockRepository{}
	svc := NewService(repo)

	w, err := svc.Create(context.Background(), Warehouse{Name: "  Central  "})
	require.NoError(t, err)
	assert.Equal(t, "Central", w.Name)
	assert.Equal(t, int64(1), w.ID)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := NewService(&mockRepository{})

	_, err := svc.Create(context.Background(), Warehouse{Name: "   "})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
}

func TestGetUnknownIsNotFound(t *testing.T) {
	svc := NewService(&mockRepository{})

	_, err := svc.Get(context.Background(), 7)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Get(context.Background(), -1)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	repo := &mockRepository{}
	svc := NewService(repo)
	for _, name := range []string{"North", "South", "East"} {
		_, err := svc.Create(context.Background(), Warehouse{Name: name})
		require.NoError(t, err)
	}

	list, meta, err := svc.List(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "East", list[0].Name)
	assert.Equal(t, 3, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)
}

func TestHandlerRoutes(t *testing.T) {
	repo := &mockRepository{}
	r := chi.NewRouter()
	NewHandler(nil, NewService(repo)).MountRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/warehouses", strings.NewReader(`{"name":"Central"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/warehouses", strings.NewReader(`{}`))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/warehouses/1", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Central"`)

	req = httptest.NewRequest(http.MethodGet, "/warehouses/9", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/warehouses?per_page=1", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"per_page":1`)
}
