package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/export"
	"expensedash/internal/log"
	"expensedash/internal/receipts"
	"expensedash/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	*memory.Store
	inserts   atomic.Int64
	failWrite bool
	pingErr   error
}

func (f *fakeStore) Insert(ctx context.Context, collection string, doc core.Document) (string, error) {
	f.inserts.Add(1)
	if f.failWrite {
		return "", errors.New("quota exceeded")
	}
	return f.Store.Insert(ctx, collection, doc)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *fakeStore) {
	t.Helper()
	store := &fakeStore{Store: memory.New()}
	ctrl := dashboard.New(store, dashboard.NewSnapshots(store, 0), "expenses", nil)
	opts := Options{
		Addr:       ":0",
		Controller: ctrl,
		Store:      store,
		Logger:     log.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(srv *Server, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func timHortonsJSON() []byte {
	return []byte(`{"date":"2024-05-10","merchant":"Tim Hortons","category":"Food & Beverage","amount":"4.50","payment_method":"Debit"}`)
}

func TestHealthAndReady(t *testing.T) {
	srv, store := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	store.pingErr = errors.New("down")
	rr := do(srv, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestIndexAddOnlyMode(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(srv, http.MethodGet, "/", nil, "")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "No expenses yet")
	assert.Contains(t, body, `hx-post="/expenses"`)
	assert.NotContains(t, body, `id="filters"`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestAPIAddAndView(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(srv, http.MethodPost, "/api/expenses", timHortonsJSON(), "application/json")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotEmpty(t, created["id"])

	rr = do(srv, http.MethodGet, "/api/view", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view viewJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))

	assert.Equal(t, "dashboard", view.Mode)
	assert.Equal(t, "4.50", view.Total)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, created["id"], view.Rows[0].ID)
	assert.Equal(t, "Tim Hortons", view.Rows[0].Merchant)
	assert.Equal(t, "Food & Beverage", view.Rows[0].Category)
	assert.Equal(t, "CAD", view.Rows[0].Currency)
	assert.Equal(t, []string{"All", "2024-05"}, view.Options.Months)
}

func TestAPIAddValidationError(t *testing.T) {
	srv, store := newTestServer(t, nil)

	body := []byte(`{"date":"2024-05-10","merchant":"","category":"Food & Beverage","amount":"4.50","payment_method":"Debit"}`)
	rr := do(srv, http.MethodPost, "/api/expenses", body, "application/json")

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(core.KindValidation), resp.Kind)
	assert.Contains(t, resp.Fields, "merchant")
	assert.Zero(t, store.inserts.Load())
}

func TestAPIAddWriteFailure(t *testing.T) {
	srv, store := newTestServer(t, nil)
	store.failWrite = true

	rr := do(srv, http.MethodPost, "/api/expenses", timHortonsJSON(), "application/json")

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), string(core.KindWrite))
	assert.NotContains(t, rr.Body.String(), "quota exceeded")
}

func TestAPIRemove(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := do(srv, http.MethodPost, "/api/expenses", timHortonsJSON(), "application/json")
	var created map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = do(srv, http.MethodDelete, "/api/expenses/"+created["id"], nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"removed":true}`, rr.Body.String())

	rr = do(srv, http.MethodDelete, "/api/expenses/"+created["id"], nil, "")
	assert.JSONEq(t, `{"removed":false}`, rr.Body.String())
}

func TestFormAddRendersDashboard(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	form := url.Values{
		"date":           {"2024-05-10"},
		"merchant":       {"Tim Hortons"},
		"category":       {"Food & Beverage"},
		"amount":         {"4,50"},
		"payment_method": {"Debit"},
	}

	rr := do(srv, http.MethodPost, "/expenses", []byte(form.Encode()), "application/x-www-form-urlencoded")

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Tim Hortons")
	assert.Contains(t, body, "CAD 4.50")
	assert.Contains(t, body, `id="filters"`)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "form:reset")
}

func TestFormAddInvalidShowsError(t *testing.T) {
	srv, store := newTestServer(t, nil)
	form := url.Values{"merchant": {"Cafe"}, "amount": {"abc"}, "category": {"Food & Beverage"}, "payment_method": {"Cash"}}

	rr := do(srv, http.MethodPost, "/expenses", []byte(form.Encode()), "application/x-www-form-urlencoded")

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `class="error"`)
	assert.Contains(t, rr.Body.String(), "amount")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), `"type":"error"`)
	assert.Zero(t, store.inserts.Load())
}

func TestDashboardPartialUnknownFilter(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	do(srv, http.MethodPost, "/api/expenses", timHortonsJSON(), "application/json")

	rr := do(srv, http.MethodGet, "/api/view?category=Rent&month=2024-05", nil, "")
	var view viewJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "All", view.Filter.Category)
	assert.Equal(t, "2024-05", view.Filter.Month)
	assert.Len(t, view.Rows, 1)

	rr = do(srv, http.MethodGet, "/ui/dashboard?category=Food+%26+Beverage", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "<html")
}

func TestExport(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	do(srv, http.MethodPost, "/api/expenses", timHortonsJSON(), "application/json")

	rr := do(srv, http.MethodGet, "/export.xlsx", nil, "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "expenses.xlsx")
	assert.NotZero(t, rr.Body.Len())
}

func TestWriteRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(o *Options) { o.WriteLimit = 2 })

	for i := 0; i < 2; i++ {
		rr := do(srv, http.MethodPost, "/api/refresh", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(srv, http.MethodPost, "/api/refresh", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Reads are never limited.
	rr = do(srv, http.MethodGet, "/api/view", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReceiptUpload(t *testing.T) {
	local, err := receipts.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	srv, _ := newTestServer(t, func(o *Options) { o.Uploader = receipts.NewUploader(local, "") })

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 20, 10))))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rr := do(srv, http.MethodPost, "/api/receipts", body.Bytes(), mw.FormDataContentType())

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var r receipts.Receipt
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &r))
	assert.True(t, strings.HasPrefix(r.URI, "file://"))
	assert.Equal(t, "image/png", r.ContentType)
}

func TestReceiptUploadDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rr := do(srv, http.MethodPost, "/api/receipts", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[core.Kind]int{
		core.KindValidation:    http.StatusUnprocessableEntity,
		core.KindWrite:         http.StatusBadGateway,
		core.KindConnection:    http.StatusServiceUnavailable,
		core.KindNotFound:      http.StatusNotFound,
		core.KindConfiguration: http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(core.Errorf(kind, "op", "x")), kind)
	}
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout,
		statusFor(core.E(core.KindConnection, "dashboard.load", context.DeadlineExceeded)),
		"a timed-out refill is a timeout, not an outage")
}
