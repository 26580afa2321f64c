package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"xingqu-shop/internal/apperror"
	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/repository"
	"xingqu-shop/internal/service"
	"xingqu-shop/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCategoryService struct {
	categories map[uuid.UUID]*domain.Category
}

func newFakeCategoryService() *fakeCategoryService {
	return &fakeCategoryService{categories: make(map[uuid.UUID]*domain.Category)}
}

func (f *fakeCategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCategoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, apperror.New(apperror.CodeNotFound, "category not found")
	}
	return c, nil
}

func (f *fakeCategoryService) Create(ctx context.Context, input service.CategoryInput) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.Slug == input.Slug {
			return nil, apperror.New(apperror.CodeConflict, "category slug already exists")
		}
	}
	c := &domain.Category{ID: uuid.New(), Name: input.Name, Slug: input.Slug, Icon: input.Icon, SortOrder: input.SortOrder}
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeCategoryService) Update(ctx context.Context, id uuid.UUID, input service.CategoryInput) (*domain.Category, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name, c.Slug, c.Icon, c.SortOrder = input.Name, input.Slug, input.Icon, input.SortOrder
	return c, nil
}

func (f *fakeCategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := f.Get(ctx, id); err != nil {
		return err
	}
	delete(f.categories, id)
	return nil
}

func TestCategoryLifecycleOverHTTP(t *testing.T) {
	r := chi.NewRouter()
	NewCategoryHandler(newFakeCategoryService(), zap.NewNop()).RegisterRoutes(r, headerAuth)
	admin := uuid.New()

	body := map[string]interface{}{"name": "汽车用品", "slug": "car-accessories", "icon": "🚗", "sort_order": 1}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodPost, "/api/categories", body, admin, middleware.RoleAdmin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created domain.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "car-accessories", created.Slug)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodPost, "/api/categories", body, admin, middleware.RoleAdmin))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodGet, "/api/categories/"+created.ID.String(), nil, uuid.Nil, ""))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodDelete, "/api/categories/"+created.ID.String(), nil, admin, middleware.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodGet, "/api/categories/"+created.ID.String(), nil, uuid.Nil, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Feature: storefront, Property 22: Catalog writes are admin only
func TestProperty_CatalogWritesAreAdminOnly(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("customers and anonymous callers cannot create categories", prop.ForAll(
		func(anonymous bool, slug string) bool {
			svc := newFakeCategoryService()
			r := chi.NewRouter()
			NewCategoryHandler(svc, zap.NewNop()).RegisterRoutes(r, headerAuth)

			userID := uuid.New()
			if anonymous {
				userID = uuid.Nil
			}
			body := map[string]interface{}{"name": "手办周边", "slug": slug}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, newRequest(t, http.MethodPost, "/api/categories", body, userID, middleware.RoleCustomer))

			want := http.StatusForbidden
			if anonymous {
				want = http.StatusUnauthorized
			}
			return w.Code == want && len(svc.categories) == 0
		},
		gen.Bool(),
		gen.RegexMatch(`[a-z]{1,10}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCategoryRejectsInvalidSlug(t *testing.T) {
	r := chi.NewRouter()
	NewCategoryHandler(newFakeCategoryService(), zap.NewNop()).RegisterRoutes(r, headerAuth)

	body := map[string]interface{}{"name": "挂饰装饰", "slug": "Bad Slug"}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodPost, "/api/categories", body, uuid.New(), middleware.RoleAdmin))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", detail.Code)
	assert.Contains(t, detail.Details, "validation_errors")
}

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) List(ctx context.Context, query service.ProductQuery) (*service.ProductPage, error) {
	args := m.Called(ctx, query)
	page, _ := args.Get(0).(*service.ProductPage)
	return page, args.Error(1)
}

func (m *mockProductService) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*service.ProductListing, error) {
	args := m.Called(ctx, id, includeInactive)
	listing, _ := args.Get(0).(*service.ProductListing)
	return listing, args.Error(1)
}

func (m *mockProductService) Create(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	args := m.Called(ctx, input)
	product, _ := args.Get(0).(*domain.Product)
	return product, args.Error(1)
}

func (m *mockProductService) Update(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error) {
	args := m.Called(ctx, id, input)
	product, _ := args.Get(0).(*domain.Product)
	return product, args.Error(1)
}

func (m *mockProductService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func TestProductListQuery(t *testing.T) {
	svc := new(mockProductService)
	r := chi.NewRouter()
	NewProductHandler(svc, zap.NewNop()).RegisterRoutes(r, headerAuth)

	categoryID := uuid.New()
	svc.On("List", mock.Anything, service.ProductQuery{
		CategoryID: &categoryID,
		Search:     "香薰",
		Sort:       repository.SortPriceAsc,
		Page:       1,
		Limit:      10,
	}).Return(&service.ProductPage{Data: []service.ProductListing{}}, nil).Once()

	target := "/api/products?category_id=" + categoryID.String() + "&search=%E9%A6%99%E8%96%B0&sort=price-asc&page=1&limit=10"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodGet, target, nil, uuid.Nil, ""))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	svc.AssertExpectations(t)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodGet, "/api/products?sort=cheapest", nil, uuid.Nil, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodGet, "/api/products?category_id=nope", nil, uuid.Nil, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminProductListIncludesInactive(t *testing.T) {
	svc := new(mockProductService)
	r := chi.NewRouter()
	NewProductHandler(svc, zap.NewNop()).RegisterRoutes(r, headerAuth)

	svc.On("List", mock.Anything, mock.MatchedBy(func(q service.ProductQuery) bool { return q.IncludeInactive })).
		Return(&service.ProductPage{Data: []service.ProductListing{}}, nil).Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodGet, "/api/admin/products", nil, uuid.New(), middleware.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestCreateProductValidatesPrice(t *testing.T) {
	svc := new(mockProductService)
	r := chi.NewRouter()
	NewProductHandler(svc, zap.NewNop()).RegisterRoutes(r, headerAuth)

	body := map[string]interface{}{
		"title":       "电脑散热支架",
		"price":       "0",
		"stock":       3,
		"category_id": uuid.New(),
		"images":      []string{"/uploads/x.png"},
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodPost, "/api/products", body, uuid.New(), middleware.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body["price"] = "99.90"
	svc.On("Create", mock.Anything, mock.MatchedBy(func(in service.ProductInput) bool {
		return in.Price.Equal(decimal.RequireFromString("99.9")) && len(in.Images) == 1
	})).Return(&domain.Product{ID: uuid.New(), Title: "电脑散热支架"}, nil).Once()

	w = httptest.NewRecorder()
	r.ServeHTTP(w, newRequest(t, http.MethodPost, "/api/products", body, uuid.New(), middleware.RoleAdmin))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	svc.AssertExpectations(t)
}

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 0x49, 0x48, 0x44, 0x52}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newUploadRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "/uploads", 1024, zap.NewNop())
	require.NoError(t, err)
	r := chi.NewRouter()
	NewUploadHandler(store, zap.NewNop()).RegisterRoutes(r, headerAuth)
	return r, dir
}

func uploadRequest(body *bytes.Buffer, contentType string, role string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-Role", role)
	return req
}

func TestUploadStoresImage(t *testing.T) {
	r, dir := newUploadRouter(t)

	body, contentType := multipartBody(t, "file", "photo.png", pngHeader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(body, contentType, middleware.RoleAdmin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success  bool   `json:"success"`
		URL      string `json:"url"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
		Type     string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "/uploads/"+resp.Filename, resp.URL)
	assert.Equal(t, "image/png", resp.Type)
	assert.Equal(t, int64(len(pngHeader)), resp.Size)
	_, err := os.Stat(filepath.Join(dir, resp.Filename))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/upload?filename="+resp.Filename, nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-Role", middleware.RoleAdmin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/upload?filename=../etc/passwd", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-Role", middleware.RoleAdmin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejections(t *testing.T) {
	r, _ := newUploadRouter(t)

	body, contentType := multipartBody(t, "file", "notes.txt", []byte("plain text, not an image"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(body, contentType, middleware.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, contentType = multipartBody(t, "image", "photo.png", pngHeader)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(body, contentType, middleware.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, contentType = multipartBody(t, "file", "photo.png", pngHeader)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(body, contentType, middleware.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
