package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"queenpos/backend/internal/domain"
	"queenpos/backend/internal/service"
	"queenpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@queenfood.com",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@queenfood.com",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_UnknownEmailDoesNotLeak(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"email":    "ghost@queenfood.com",
		"password": "whatever",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestHandleSignup_PendingUntilApproved(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"name":     "Salesman One",
		"email":    "s1@queenfood.com",
		"password": "pass1234",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	loginPayload, _ := json.Marshal(map[string]string{
		"email":    "s1@queenfood.com",
		"password": "pass1234",
	})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(loginPayload))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRec := httptest.NewRecorder()

	handler.ServeHTTP(loginRec, loginReq)

	if loginRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 while pending, got %d (body: %s)", loginRec.Code, loginRec.Body.String())
	}
}

func TestHandleSignup_DuplicateConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"name":     "Salesman One",
		"email":    "dup@queenfood.com",
		"password": "pass1234",
	})
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = fmt.Sprintf("192.0.2.%d:1234", i+1)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != want {
			t.Fatalf("signup #%d expected %d, got %d (body: %s)", i+1, want, rec.Code, rec.Body.String())
		}
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleCheckout_FullPath(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		Lines: []domain.CartLine{
			{ProductID: "1", Quantity: 2},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Sale.InvoiceNo == "" {
		t.Fatalf("expected invoice number on persisted sale")
	}
	if resp.Sale.Total != 64.4 {
		t.Fatalf("expected total 64.40 for 2x28 at vat 15, got %.2f", resp.Sale.Total)
	}

	// The invoice document is reachable at /sales/{id}/invoice.
	invReq := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+resp.Sale.ID+"/invoice", nil)
	invReq.Header.Set("Authorization", "Bearer "+token)
	invRec := httptest.NewRecorder()

	handler.ServeHTTP(invRec, invReq)

	if invRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for invoice, got %d (body: %s)", invRec.Code, invRec.Body.String())
	}
}

func TestHandleCheckout_EmptyCartUnprocessable(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.CheckoutRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty cart, got %d", rec.Code)
	}
}

func TestHandleDistributeStock_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.DistributeStockRequest{
		SalesmanID: "usr-s1",
		ProductID:  "2",
		Quantity:   10,
		SellPrice:  30,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/distribute", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// No token at all gets 401 before the handler runs.
	anonReq := httptest.NewRequest(http.MethodPost, "/api/v1/stock/distribute", bytes.NewReader(payload))
	anonReq.Header.Set("Content-Type", "application/json")
	anonReq.Header.Set("X-CSRF-Token", csrf)
	anonRec := httptest.NewRecorder()

	handler.ServeHTTP(anonRec, anonReq)
	if anonRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", anonRec.Code)
	}
}

func TestHandleDistributeStock_InsufficientConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.DistributeStockRequest{
		SalesmanID: "usr-s1",
		ProductID:  "3",
		Quantity:   1000,
		SellPrice:  90,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/distribute", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for over-distribution, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReportSummary_ForbiddenForSalesman(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	// Provision and approve a salesman through the API.
	signupPayload, _ := json.Marshal(map[string]string{
		"name":     "Salesman One",
		"email":    "s1@queenfood.com",
		"password": "pass1234",
	})
	signupReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(signupPayload))
	signupReq.Header.Set("Content-Type", "application/json")
	signupRec := httptest.NewRecorder()
	handler.ServeHTTP(signupRec, signupReq)
	if signupRec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", signupRec.Code)
	}

	var signupBody struct {
		User domain.User `json:"user"`
	}
	if err := json.NewDecoder(signupRec.Body).Decode(&signupBody); err != nil {
		t.Fatalf("decode signup body: %v", err)
	}

	approvePayload, _ := json.Marshal(domain.ApproveUserRequest{UserID: signupBody.User.ID})
	approveReq := httptest.NewRequest(http.MethodPost, "/api/v1/users/approve", bytes.NewReader(approvePayload))
	approveReq.Header.Set("Content-Type", "application/json")
	approveReq.Header.Set("Authorization", "Bearer "+adminToken)
	approveReq.Header.Set("X-CSRF-Token", csrf)
	approveRec := httptest.NewRecorder()
	handler.ServeHTTP(approveRec, approveReq)
	if approveRec.Code != http.StatusOK {
		t.Fatalf("approve failed: %d (body: %s)", approveRec.Code, approveRec.Body.String())
	}

	loginPayload, _ := json.Marshal(map[string]string{
		"email":    "s1@queenfood.com",
		"password": "pass1234",
	})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(loginPayload))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRec := httptest.NewRecorder()
	handler.ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("salesman login failed: %d", loginRec.Code)
	}
	var loginResp domain.LoginResponse
	if err := json.NewDecoder(loginRec.Body).Decode(&loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/summary", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for salesman on reports, got %d", rec.Code)
	}
}

func TestHandleCartLines_AddAndRemove(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(cartLineRequest{ProductID: "1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/lines", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Lines []domain.CartLine `json:"lines"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Lines) != 1 || body.Lines[0].Quantity != 1 {
		t.Fatalf("expected single line qty 1, got %+v", body.Lines)
	}
	if body.Lines[0].UnitPrice != 28 {
		t.Fatalf("expected catalog price 28, got %.2f", body.Lines[0].UnitPrice)
	}

	removePayload, _ := json.Marshal(cartLineRequest{Lines: body.Lines, ProductID: "1"})
	removeReq := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/lines", bytes.NewReader(removePayload))
	removeReq.Header.Set("Content-Type", "application/json")
	removeReq.Header.Set("Authorization", "Bearer "+token)
	removeRec := httptest.NewRecorder()

	handler.ServeHTTP(removeRec, removeReq)

	if removeRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for remove, got %d", removeRec.Code)
	}
	if err := json.NewDecoder(removeRec.Body).Decode(&body); err != nil {
		t.Fatalf("decode remove body: %v", err)
	}
	if len(body.Lines) != 0 {
		t.Fatalf("expected empty cart after remove, got %+v", body.Lines)
	}
}
