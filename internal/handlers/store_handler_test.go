package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"raplifeBack/internal/billing"
	"raplifeBack/internal/catalog"
	"raplifeBack/internal/models"
	"raplifeBack/internal/purchase"
	"raplifeBack/internal/purchase/fsm"
)

type noopLedger struct{ calls int }

func (l *noopLedger) ApplyPurchase(context.Context, int, models.PurchaseItem, billing.Outcome, string, time.Time) (bool, error) {
	l.calls++
	return true, nil
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

const handlerCatalogYAML = `
items:
  - id: cash_50000
    kind: cash
    title: Stack of Cash
    price: "$4.99"
    cash_amount: 50000
`

func newStoreHandler(t *testing.T) (*StoreHandler, *noopLedger) {
	t.Helper()
	cat, err := catalog.Parse([]byte(handlerCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	ledger := &noopLedger{}
	manager := purchase.NewManager(billing.NewSimulator(1, cat.List()), ledger, nil, noopLogger{})
	return &StoreHandler{Catalog: cat, Manager: manager}, ledger
}

func authedRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return r.WithContext(context.WithValue(r.Context(), "user_id", 1))
}

func decodeAttempt(t *testing.T, rec *httptest.ResponseRecorder) purchase.Attempt {
	t.Helper()
	var att purchase.Attempt
	if err := json.NewDecoder(rec.Body).Decode(&att); err != nil {
		t.Fatalf("decode attempt: %v", err)
	}
	return att
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	h, ledger := newStoreHandler(t)

	rec := httptest.NewRecorder()
	h.SelectItem(rec, authedRequest(http.MethodPost, "/store/attempt", `{"product_id":"cash_50000"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status %d: %s", rec.Code, rec.Body.String())
	}
	if att := decodeAttempt(t, rec); att.Status != fsm.StatusSelected {
		t.Fatalf("select: status %s", att.Status)
	}

	rec = httptest.NewRecorder()
	h.ConfirmAttempt(rec, authedRequest(http.MethodPost, "/store/attempt/confirm", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ProcessAttempt(rec, authedRequest(http.MethodPost, "/store/attempt/process", `{"purchase_token":"tok"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("process: status %d: %s", rec.Code, rec.Body.String())
	}
	att := decodeAttempt(t, rec)
	if att.Status != fsm.StatusSucceeded || att.TransactionID == "" {
		t.Fatalf("process: %+v", att)
	}
	if ledger.calls != 1 {
		t.Fatalf("ledger calls = %d, want 1", ledger.calls)
	}
}

func TestSelectUnknownProduct(t *testing.T) {
	h, _ := newStoreHandler(t)
	rec := httptest.NewRecorder()
	h.SelectItem(rec, authedRequest(http.MethodPost, "/store/attempt", `{"product_id":"nope"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestProcessOutOfOrderConflicts(t *testing.T) {
	h, _ := newStoreHandler(t)

	rec := httptest.NewRecorder()
	h.SelectItem(rec, authedRequest(http.MethodPost, "/store/attempt", `{"product_id":"cash_50000"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ProcessAttempt(rec, authedRequest(http.MethodPost, "/store/attempt/process", `{}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("process without confirm: status %d, want 409", rec.Code)
	}
}

func TestProcessSurvivesClientDisconnect(t *testing.T) {
	h, ledger := newStoreHandler(t)

	rec := httptest.NewRecorder()
	h.SelectItem(rec, authedRequest(http.MethodPost, "/store/attempt", `{"product_id":"cash_50000"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("select: status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ConfirmAttempt(rec, authedRequest(http.MethodPost, "/store/attempt/confirm", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: status %d", rec.Code)
	}

	// The client hangs up before billing finishes. The attempt must still
	// settle instead of failing on the dead request context.
	r := authedRequest(http.MethodPost, "/store/attempt/process", `{"purchase_token":"tok"}`)
	ctx, cancel := context.WithCancel(r.Context())
	cancel()
	rec = httptest.NewRecorder()
	h.ProcessAttempt(rec, r.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("process: status %d: %s", rec.Code, rec.Body.String())
	}
	if att := decodeAttempt(t, rec); att.Status != fsm.StatusSucceeded {
		t.Fatalf("status = %s, want %s", att.Status, fsm.StatusSucceeded)
	}
	if ledger.calls != 1 {
		t.Fatalf("ledger calls = %d, want 1", ledger.calls)
	}
}

func TestUnauthorizedWithoutPlayer(t *testing.T) {
	h, _ := newStoreHandler(t)
	rec := httptest.NewRecorder()
	h.SelectItem(rec, httptest.NewRequest(http.MethodPost, "/store/attempt", strings.NewReader(`{"product_id":"cash_50000"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
