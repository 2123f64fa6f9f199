package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/backend"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/editor"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/middleware"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCatalog keeps products in memory
type fakeCatalog struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]*domain.Product
	created  []domain.ProductPayload
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		nextID: 100,
		products: map[int64]*domain.Product{
			12: {ID: 12, Name: "Taladro", BrandID: 2, CategoryID: 10, Cost: 1000, Stock: 3, Status: domain.StatusActive},
		},
	}
}

func (c *fakeCatalog) CreateProduct(ctx context.Context, payload domain.ProductPayload) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if payload.Name == "duplicado" {
		return nil, &backend.APIError{Status: http.StatusConflict, Message: "Ya existe un producto con ese nombre"}
	}
	c.created = append(c.created, payload)
	c.nextID++
	product := &domain.Product{
		ID: c.nextID, Name: payload.Name, BrandID: payload.BrandID, CategoryID: payload.CategoryID,
		Price: payload.Price, Cost: payload.Cost, Stock: payload.Stock, Status: payload.Status,
		Downloads: payload.Downloads,
	}
	c.products[product.ID] = product
	return product, nil
}

func (c *fakeCatalog) UpdateProduct(ctx context.Context, payload domain.ProductPayload) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product := &domain.Product{ID: *payload.ID, Name: payload.Name, BrandID: payload.BrandID, CategoryID: payload.CategoryID}
	c.products[product.ID] = product
	return product, nil
}

func (c *fakeCatalog) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	product, ok := c.products[id]
	if !ok {
		return nil, fmt.Errorf("failed to load product %d: %w", id, backend.ErrNotFound)
	}
	copied := *product
	return &copied, nil
}

func (c *fakeCatalog) CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error) {
	return []domain.CategoryOption{{ID: "10", Name: "Taladros"}, {ID: "11", Name: "Sierras"}}, nil
}

func (c *fakeCatalog) CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error) {
	return domain.CategoryOption{ID: id, Name: "Otra"}, nil
}

type fakeMedia struct {
	mu     sync.Mutex
	nextID int64
	fail   bool
}

func (m *fakeMedia) UploadFiles(ctx context.Context, files []domain.LocalFile) ([]domain.UploadedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("media service unavailable")
	}
	out := make([]domain.UploadedFile, 0, len(files))
	for _, f := range files {
		m.nextID++
		out = append(out, domain.UploadedFile{ID: 900 + m.nextID, URL: "https://cdn.libamaq.com/" + f.Name})
	}
	return out, nil
}

type describerFunc func(ctx context.Context, name, entityType string) (string, error)

func (f describerFunc) GenerateDescription(ctx context.Context, name, entityType string) (string, error) {
	return f(ctx, name, entityType)
}

// fakeAuth trusts the X-Actor header
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get("X-Actor"); actor != "" {
			r = r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, actor))
		}
		next.ServeHTTP(w, r)
	})
}

func passthrough(next http.Handler) http.Handler { return next }

type testAPI struct {
	router  chi.Router
	catalog *fakeCatalog
	media   *fakeMedia
}

func newTestAPI(t *testing.T) *testAPI {
	catalog := newFakeCatalog()
	media := &fakeMedia{}
	sessions, err := session.NewManager(session.ManagerDeps{
		Engine: editor.Deps{
			Catalog:  catalog,
			Media:    media,
			Previews: preview.NewMemoryStore(),
			Describer: describerFunc(func(ctx context.Context, name, entityType string) (string, error) {
				return "Descripción de " + name, nil
			}),
		},
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	NewEditorHandler(sessions, 0, zap.NewNop()).RegisterRoutes(router, fakeAuth, passthrough)
	return &testAPI{router: router, catalog: catalog, media: media}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "42")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func (a *testAPI) upload(t *testing.T, path string, files ...upload) *httptest.ResponseRecorder {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name))
		header.Set("Content-Type", f.contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Actor", "42")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) open(t *testing.T, body interface{}) SessionResponse {
	w := a.do(t, http.MethodPost, "/api/editor/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeSession(t, w)
}

func (a *testAPI) fillDraft(t *testing.T, id string, name string) {
	for _, f := range [][2]string{
		{"name", name}, {"brandId", "2"}, {"categoryId", "10"},
		{"price", "100"}, {"minimumPrice", "90"}, {"ecommercePrice", "110"},
		{"cost", "60"}, {"discount", "0"}, {"stock", "5"},
	} {
		w := a.do(t, http.MethodPatch, "/api/editor/sessions/"+id+"/fields", UpdateFieldRequest{Field: f[0], Value: f[1]})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) SessionResponse {
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n0000")

// Feature: product-editor, Property 13: Sessions are only visible to the actor that opened them
func TestProperty_SessionsAreScopedToActor(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)

	properties := gopter.NewProperties(nil)
	properties.Property("another actor always gets 404", prop.ForAll(
		func(actor string, route string) bool {
			if actor == "42" {
				return true
			}
			parts := strings.SplitN(route, " ", 2)
			req := httptest.NewRequest(parts[0], "/api/editor/sessions/"+s.ID+parts[1], strings.NewReader(`{"field":"name","value":"x"}`))
			req.Header.Set("X-Actor", actor)
			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)
			return w.Code == http.StatusNotFound
		},
		gen.Identifier(),
		gen.OneConstOf("GET ", "DELETE ", "PATCH /fields", "POST /validate", "POST /submit", "POST /reset"),
	))
	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestEditorHandler_RequiresActor(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/editor/sessions", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEditorHandler_CreateFlow(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, map[string]interface{}{})
	assert.Equal(t, editor.ModeCreate, s.State.Mode)
	assert.Equal(t, editor.PricingManual, s.State.Pricing)

	api.fillDraft(t, s.ID, "Esmeril")

	w := api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/functionalities", FunctionalityRequest{Value: "Motor de 750 W"})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/functionalities", FunctionalityRequest{Value: "   "})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/technical-data", KeyValueRequest{Key: "Voltaje", Value: "127 V"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeSession(t, w).State.TechnicalData, 1)

	w = api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(101), resp.Product.ID)
	assert.Equal(t, editor.ModeEdit, resp.Session.State.Mode)

	require.Len(t, api.catalog.created, 1)
	created := api.catalog.created[0]
	assert.Equal(t, "42", created.CreatedBy)
	assert.Equal(t, 5, created.Stock)
	assert.Equal(t, []string{"Motor de 750 W"}, created.Functionalities)
}

func TestEditorHandler_OpenExistingProduct(t *testing.T) {
	api := newTestAPI(t)

	s := api.open(t, OpenSessionRequest{ProductID: int64Ptr(12)})

	assert.Equal(t, editor.ModeEdit, s.State.Mode)
	assert.Equal(t, "1450.00", s.State.Draft.Price)
	assert.Equal(t, "11.11", s.State.Draft.Discount)

	w := api.do(t, http.MethodPatch, "/api/editor/sessions/"+s.ID+"/fields", UpdateFieldRequest{Field: "price", Value: "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/editor/sessions", OpenSessionRequest{ProductID: int64Ptr(99)})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/api/editor/sessions", map[string]int{"productId": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditorHandler_SubmitValidationIs422(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)

	w := api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/validate", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	detail := decodeError(t, w)
	assert.Contains(t, detail.Details, "validation_errors")
	assert.Empty(t, api.catalog.created)
}

func TestEditorHandler_PersistenceErrorKeepsServerMessage(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)
	api.fillDraft(t, s.ID, "duplicado")

	w := api.do(t, http.MethodPost, "/api/editor/sessions/"+s.ID+"/submit", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Ya existe un producto con ese nombre", decodeError(t, w).Message)

	w = api.do(t, http.MethodGet, "/api/editor/sessions/"+s.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicado", decodeSession(t, w).State.Draft.Name, "the draft survives a failed submit")
}

func TestEditorHandler_ImagesAndPreview(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)
	base := "/api/editor/sessions/" + s.ID

	w := api.upload(t, base+"/images", upload{"frente.png", "image/png", pngBytes})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	media := decodeSession(t, w).State.Media
	require.Len(t, media, 1)
	assert.True(t, media[0].Pending)
	assert.True(t, strings.HasPrefix(media[0].URL, base+"/previews/"), media[0].URL)

	req := httptest.NewRequest(http.MethodGet, media[0].URL, nil)
	req.Header.Set("X-Actor", "42")
	pw := httptest.NewRecorder()
	api.router.ServeHTTP(pw, req)
	require.Equal(t, http.StatusOK, pw.Code)
	assert.Equal(t, "image/png", pw.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, pw.Body.Bytes())

	w = api.upload(t, base+"/images", upload{"manual.pdf", "application/pdf", []byte("%PDF-1.4")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodDelete, base+"/images/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeSession(t, w).State.Media)

	pw = httptest.NewRecorder()
	api.router.ServeHTTP(pw, req)
	assert.Equal(t, http.StatusNotFound, pw.Code, "removed images release their preview")
}

func TestEditorHandler_ImageLimit(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)

	files := make([]upload, 0, 6)
	for i := 0; i < 6; i++ {
		files = append(files, upload{fmt.Sprintf("img%d.png", i), "image/png", pngBytes})
	}
	w := api.upload(t, "/api/editor/sessions/"+s.ID+"/images", files...)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(t, http.MethodGet, "/api/editor/sessions/"+s.ID, nil)
	assert.Empty(t, decodeSession(t, w).State.Media)
}

func TestEditorHandler_Documents(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)
	base := "/api/editor/sessions/" + s.ID

	w := api.upload(t, base+"/downloads", upload{"Manual de Usuario.pdf", "application/pdf", []byte("%PDF-1.4")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	downloads := decodeSession(t, w).State.Downloads
	require.Len(t, downloads, 1)
	assert.Equal(t, "Manual de Usuario", downloads[0].Key)
	assert.Equal(t, "https://cdn.libamaq.com/Manual de Usuario.pdf", downloads[0].Value)

	w = api.upload(t, base+"/downloads", upload{"Manual de Usuario.pdf", "application/pdf", []byte("%PDF-1.4")})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPut, base+"/downloads/0", KeyValueRequest{Key: "Manual", Value: downloads[0].Value})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Manual", decodeSession(t, w).State.Downloads[0].Key)

	api.media.fail = true
	w = api.upload(t, base+"/downloads", upload{"garantia.pdf", "application/pdf", []byte("%PDF-1.4")})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = api.do(t, http.MethodDelete, base+"/downloads/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeSession(t, w).State.Downloads)
}

func TestEditorHandler_BadRequests(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)
	base := "/api/editor/sessions/" + s.ID

	w := api.do(t, http.MethodDelete, base+"/functionalities/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, collection := range []string{"functionalities", "technical-data", "downloads", "images"} {
		w = api.do(t, http.MethodDelete, base+"/"+collection+"/3", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, collection)
		assert.Equal(t, "index out of range: 3 (len 0)", decodeError(t, w).Message, collection)
	}

	w = api.do(t, http.MethodPatch, base+"/fields", UpdateFieldRequest{Field: "weight", Value: "3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, base+"/fields", map[string]string{"value": "3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Details, "validation_errors")

	w = api.do(t, http.MethodPatch, base+"/fields", UpdateFieldRequest{Field: "status", Value: "ARCHIVED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.upload(t, base+"/images")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditorHandler_ResetDescriptionAndClose(t *testing.T) {
	api := newTestAPI(t)
	s := api.open(t, nil)
	base := "/api/editor/sessions/" + s.ID

	w := api.do(t, http.MethodPatch, base+"/fields", UpdateFieldRequest{Field: "name", Value: "Rotomartillo"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, base+"/description", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Descripción de Rotomartillo", decodeSession(t, w).State.Draft.Description)

	w = api.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeSession(t, w).State.Draft.Name)

	w = api.do(t, http.MethodPatch, base+"/fields", UpdateFieldRequest{Field: "brandId", Value: "2"})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodPost, base+"/categories/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeSession(t, w).State.Categories.Options, 2)

	w = api.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func int64Ptr(v int64) *int64 { return &v }
