package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"zelton/internal/auth"
	"zelton/internal/intents"
	"zelton/internal/metrics"
	"zelton/internal/payments"
	"zelton/internal/ratelimiter"
	"zelton/internal/watch"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type backendStub struct {
	mu     sync.Mutex
	states map[string]string
}

func (b *backendStub) set(orderID, state string) {
	b.mu.Lock()
	b.states[orderID] = state
	b.mu.Unlock()
}

func (b *backendStub) VerifyPayment(_ context.Context, orderID string) (payments.VerifyResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.states[orderID]
	if !ok {
		state = "PENDING"
	}
	return payments.VerifyResponse{Success: true, State: state}, nil
}

type fakeUploader struct {
	publicID string
	body     []byte
}

func (f *fakeUploader) Upload(_ context.Context, file io.Reader, publicID string) (string, error) {
	f.publicID = publicID
	f.body, _ = io.ReadAll(file)
	return "https://res.cloudinary.com/zelton/image/upload/payment_proofs/" + publicID, nil
}

type testApp struct {
	app     *application
	handler http.Handler
	backend *backendStub
	auth    *auth.JWTAuthenticator
	proofs  *fakeUploader
}

func newTestApplication(t *testing.T, rl ratelimiter.Config) *testApp {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()

	store, err := intents.NewFileStore(filepath.Join(t.TempDir(), "intents.json"))
	if err != nil {
		t.Fatal(err)
	}

	backend := &backendStub{states: make(map[string]string)}
	pm := payments.NewPaymentManager()
	pm.RegisterVerifier(payments.KindRent, backend)
	pm.RegisterVerifier(payments.KindSubscription, backend)

	registry := prometheus.NewRegistry()
	watcher := watch.New(pm, store, nil, metrics.New(registry), logger, watch.Config{
		Interval:    5 * time.Millisecond,
		MaxAttempts: 50,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = watcher.Close(ctx)
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	jwtAuth := auth.NewJWTAuthenticator("test-secret", "zelton-app", "zelton", time.Hour)
	proofs := &fakeUploader{}

	app := &application{
		config: config{
			env: "test",
			auth: authConfig{
				basic: basicConfig{user: "ops", passHash: string(hash)},
			},
			poll:        pollConfig{retention: time.Hour},
			rateLimiter: rl,
		},
		logger:        logger,
		watcher:       watcher,
		proofs:        proofs,
		authenticator: jwtAuth,
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(rl.RequestsPerTimeFrame, rl.TimeFrame),
		registry:      registry,
	}

	return &testApp{app: app, handler: app.mount(), backend: backend, auth: jwtAuth, proofs: proofs}
}

func (ta *testApp) do(t *testing.T, payer, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if payer != "" {
		token, err := ta.auth.GenerateToken(payer)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) doJSON(t *testing.T, payer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return ta.do(t, payer, method, path, r, "application/json")
}

func decodeStatus(t *testing.T, rr *httptest.ResponseRecorder) watch.Status {
	t.Helper()
	var env struct {
		Data watch.Status `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env.Data
}

func checkResponseCode(t *testing.T, expected int, rr *httptest.ResponseRecorder) {
	t.Helper()
	if rr.Code != expected {
		t.Fatalf("expected response code %d, got %d: %s", expected, rr.Code, rr.Body.String())
	}
}

func (ta *testApp) waitResolved(t *testing.T, payer, orderID string) watch.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rr := ta.doJSON(t, payer, http.MethodGet, "/v1/payments/"+orderID, "")
		checkResponseCode(t, http.StatusOK, rr)
		if st := decodeStatus(t, rr); st.State == watch.StateResolved {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("payment %s never resolved", orderID)
	return watch.Status{}
}

const watchBody = `{"amount": 1250000, "plan_or_unit_ref": "unit-12B", "payer_email": "tenant@example.com"}`

func TestWatchPaymentFlow(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{})

	rr := ta.doJSON(t, "tenant-1", http.MethodPost, "/v1/payments/watch", watchBody)
	checkResponseCode(t, http.StatusAccepted, rr)

	st := decodeStatus(t, rr)
	if !strings.HasPrefix(st.OrderID, "RENT_") {
		t.Fatalf("generated order id %q lacks RENT_ prefix", st.OrderID)
	}
	if st.State != watch.StateInFlight || st.Intent.PayerID != "tenant-1" {
		t.Fatalf("unexpected status %+v", st)
	}

	t.Run("other payers cannot see it", func(t *testing.T) {
		rr := ta.doJSON(t, "tenant-2", http.MethodGet, "/v1/payments/"+st.OrderID, "")
		checkResponseCode(t, http.StatusNotFound, rr)
	})

	t.Run("retry while polling conflicts", func(t *testing.T) {
		rr := ta.doJSON(t, "tenant-1", http.MethodPost, "/v1/payments/"+st.OrderID+"/retry", "")
		checkResponseCode(t, http.StatusConflict, rr)
	})

	ta.backend.set(st.OrderID, "COMPLETED")
	final := ta.waitResolved(t, "tenant-1", st.OrderID)
	if final.Result == nil || final.Result.Outcome != payments.Completed {
		t.Fatalf("result = %+v, want COMPLETED", final.Result)
	}

	t.Run("completed payments cannot be retried", func(t *testing.T) {
		rr := ta.doJSON(t, "tenant-1", http.MethodPost, "/v1/payments/"+st.OrderID+"/retry", "")
		checkResponseCode(t, http.StatusConflict, rr)
	})
}

func TestWatchPaymentValidation(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing amount", `{"plan_or_unit_ref": "unit-1"}`, http.StatusBadRequest},
		{"negative amount", `{"amount": -5, "plan_or_unit_ref": "unit-1"}`, http.StatusBadRequest},
		{"unknown kind", `{"amount": 100, "kind": "deposit", "plan_or_unit_ref": "unit-1"}`, http.StatusBadRequest},
		{"bad order id", `{"order_id": "RENT 1/2", "amount": 100, "plan_or_unit_ref": "unit-1"}`, http.StatusBadRequest},
		{"unknown field", `{"amount": 100, "plan_or_unit_ref": "unit-1", "tip": 5}`, http.StatusBadRequest},
		{"subscription", `{"order_id": "SUB_1_abcd1234", "kind": "subscription", "amount": 49900, "plan_or_unit_ref": "plan-pro"}`, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ta.doJSON(t, "owner-1", http.MethodPost, "/v1/payments/watch", tt.body)
			checkResponseCode(t, tt.code, rr)
		})
	}

	t.Run("order id owned by someone else", func(t *testing.T) {
		body := `{"order_id": "SUB_1_abcd1234", "kind": "subscription", "amount": 49900, "plan_or_unit_ref": "plan-pro"}`
		rr := ta.doJSON(t, "owner-2", http.MethodPost, "/v1/payments/watch", body)
		checkResponseCode(t, http.StatusConflict, rr)
	})

	t.Run("order id reused with different details", func(t *testing.T) {
		body := `{"order_id": "SUB_1_abcd1234", "kind": "subscription", "amount": 100, "plan_or_unit_ref": "plan-pro"}`
		rr := ta.doJSON(t, "owner-1", http.MethodPost, "/v1/payments/watch", body)
		checkResponseCode(t, http.StatusConflict, rr)

		rr = ta.doJSON(t, "owner-1", http.MethodGet, "/v1/payments/SUB_1_abcd1234", "")
		checkResponseCode(t, http.StatusOK, rr)
		if st := decodeStatus(t, rr); st.Intent.Amount != 49900 {
			t.Fatalf("amount = %d, want 49900", st.Intent.Amount)
		}
	})
}

func TestCancelAndRetry(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{})

	body := `{"order_id": "RENT_9_cafe0001", "amount": 500000, "plan_or_unit_ref": "unit-3A", "interval_seconds": 300}`
	rr := ta.doJSON(t, "tenant-9", http.MethodPost, "/v1/payments/watch", body)
	checkResponseCode(t, http.StatusAccepted, rr)

	rr = ta.doJSON(t, "tenant-9", http.MethodDelete, "/v1/payments/RENT_9_cafe0001", "")
	checkResponseCode(t, http.StatusNoContent, rr)

	rr = ta.doJSON(t, "tenant-9", http.MethodDelete, "/v1/payments/RENT_9_cafe0001", "")
	checkResponseCode(t, http.StatusConflict, rr)

	rr = ta.doJSON(t, "tenant-9", http.MethodGet, "/v1/payments/RENT_9_cafe0001", "")
	checkResponseCode(t, http.StatusOK, rr)
	if st := decodeStatus(t, rr); st.State != watch.StateCanceled {
		t.Fatalf("state = %s, want canceled", st.State)
	}

	ta.backend.set("RENT_9_cafe0001", "FAILED")
	rr = ta.doJSON(t, "tenant-9", http.MethodPost, "/v1/payments/RENT_9_cafe0001/retry", `{"interval_seconds": 1, "max_attempts": 3}`)
	checkResponseCode(t, http.StatusAccepted, rr)

	deadline := time.Now().Add(3 * time.Second)
	for {
		st, err := ta.app.watcher.Status("RENT_9_cafe0001")
		if err != nil {
			t.Fatal(err)
		}
		if st.State == watch.StateResolved {
			if st.Result.Outcome != payments.Failed {
				t.Fatalf("outcome = %s, want FAILED", st.Result.Outcome)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("retried payment never resolved")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestVerifyPayment(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{})
	ta.backend.set("SUB_5_feed0001", "completed")

	verify := func(payer, orderID string) *httptest.ResponseRecorder {
		return ta.doJSON(t, payer, http.MethodGet, "/v1/payments/"+orderID+"/verify", "")
	}

	body := `{"order_id": "SUB_5_feed0001", "kind": "subscription", "amount": 49900, "plan_or_unit_ref": "plan-pro"}`
	checkResponseCode(t, http.StatusAccepted, ta.doJSON(t, "owner-5", http.MethodPost, "/v1/payments/watch", body))
	ta.waitResolved(t, "owner-5", "SUB_5_feed0001")

	rr := verify("owner-5", "SUB_5_feed0001")
	checkResponseCode(t, http.StatusOK, rr)

	var env struct {
		Data VerifyPaymentResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Outcome != payments.Completed || env.Data.Kind != payments.KindSubscription {
		t.Fatalf("unexpected verify response %+v", env.Data)
	}

	t.Run("other payers cannot verify it", func(t *testing.T) {
		checkResponseCode(t, http.StatusNotFound, verify("owner-6", "SUB_5_feed0001"))
	})

	t.Run("unknown orders are not forwarded", func(t *testing.T) {
		ta.backend.set("RENT_5_feed0002", "COMPLETED")
		checkResponseCode(t, http.StatusNotFound, verify("owner-5", "RENT_5_feed0002"))
	})

	t.Run("forgotten orders stay hidden", func(t *testing.T) {
		if n := ta.app.watcher.Prune(0); n != 1 {
			t.Fatalf("pruned %d entries, want 1", n)
		}
		checkResponseCode(t, http.StatusNotFound, verify("owner-6", "SUB_5_feed0001"))
		checkResponseCode(t, http.StatusNotFound, verify("owner-5", "SUB_5_feed0001"))
	})
}

func TestUploadPaymentProof(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{})

	body := `{"order_id": "RENT_6_beef0001", "amount": 800000, "plan_or_unit_ref": "unit-6C", "interval_seconds": 300}`
	checkResponseCode(t, http.StatusAccepted, ta.doJSON(t, "tenant-6", http.MethodPost, "/v1/payments/watch", body))

	formWith := func(contentType string, content []byte) (*bytes.Buffer, string) {
		buf := new(bytes.Buffer)
		mw := multipart.NewWriter(buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="proof"; filename="receipt.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
		mw.Close()
		return buf, mw.FormDataContentType()
	}
	form := func(contentType string) (*bytes.Buffer, string) {
		return formWith(contentType, []byte("\x89PNG fake"))
	}

	buf, ct := form("image/png")
	rr := ta.do(t, "tenant-6", http.MethodPost, "/v1/payments/RENT_6_beef0001/proof", buf, ct)
	checkResponseCode(t, http.StatusCreated, rr)
	if !strings.HasPrefix(ta.proofs.publicID, "proof_RENT_6_beef0001_") {
		t.Fatalf("public id = %q", ta.proofs.publicID)
	}
	if string(ta.proofs.body) != "\x89PNG fake" {
		t.Fatalf("uploaded body = %q", ta.proofs.body)
	}

	buf, ct = form("text/plain")
	rr = ta.do(t, "tenant-6", http.MethodPost, "/v1/payments/RENT_6_beef0001/proof", buf, ct)
	checkResponseCode(t, http.StatusBadRequest, rr)

	buf, ct = form("image/png")
	rr = ta.do(t, "tenant-7", http.MethodPost, "/v1/payments/RENT_6_beef0001/proof", buf, ct)
	checkResponseCode(t, http.StatusNotFound, rr)

	t.Run("oversized body", func(t *testing.T) {
		ta.proofs.publicID = ""
		buf, ct := formWith("image/png", bytes.Repeat([]byte{0xAB}, maxProofBytes+1))
		rr := ta.do(t, "tenant-6", http.MethodPost, "/v1/payments/RENT_6_beef0001/proof", buf, ct)
		checkResponseCode(t, http.StatusBadRequest, rr)
		if ta.proofs.publicID != "" {
			t.Fatalf("oversized proof was uploaded as %q", ta.proofs.publicID)
		}
	})

	t.Run("uploads not configured", func(t *testing.T) {
		ta.app.proofs = nil
		buf, ct := form("image/png")
		rr := ta.do(t, "tenant-6", http.MethodPost, "/v1/payments/RENT_6_beef0001/proof", buf, ct)
		checkResponseCode(t, http.StatusServiceUnavailable, rr)
	})
}

func TestAuthMiddleware(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{})

	t.Run("bearer required", func(t *testing.T) {
		rr := ta.doJSON(t, "", http.MethodGet, "/v1/payments/RENT_1_x", "")
		checkResponseCode(t, http.StatusUnauthorized, rr)
	})

	t.Run("foreign token", func(t *testing.T) {
		other := auth.NewJWTAuthenticator("other-secret", "zelton-app", "zelton", time.Hour)
		token, _ := other.GenerateToken("tenant-1")
		req := httptest.NewRequest(http.MethodGet, "/v1/payments/RENT_1_x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		ta.handler.ServeHTTP(rr, req)
		checkResponseCode(t, http.StatusUnauthorized, rr)
	})

	t.Run("basic auth on health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		rr := httptest.NewRecorder()
		ta.handler.ServeHTTP(rr, req)
		checkResponseCode(t, http.StatusUnauthorized, rr)
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Fatal("missing WWW-Authenticate header")
		}

		req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		req.SetBasicAuth("ops", "wrong")
		rr = httptest.NewRecorder()
		ta.handler.ServeHTTP(rr, req)
		checkResponseCode(t, http.StatusUnauthorized, rr)

		req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
		req.SetBasicAuth("ops", "s3cret")
		rr = httptest.NewRecorder()
		ta.handler.ServeHTTP(rr, req)
		checkResponseCode(t, http.StatusOK, rr)
	})

	t.Run("metrics behind basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
		req.SetBasicAuth("ops", "s3cret")
		rr := httptest.NewRecorder()
		ta.handler.ServeHTTP(rr, req)
		checkResponseCode(t, http.StatusOK, rr)
		if !strings.Contains(rr.Body.String(), "payment_active_polls") {
			t.Fatal("payment metrics not exposed")
		}
	})
}

func TestRateLimiterMiddleware(t *testing.T) {
	ta := newTestApplication(t, ratelimiter.Config{
		RequestsPerTimeFrame: 2,
		TimeFrame:            time.Minute,
		Enabled:              true,
	})

	for i := 0; i < 2; i++ {
		rr := ta.doJSON(t, "", http.MethodGet, "/v1/payments/RENT_1_x", "")
		checkResponseCode(t, http.StatusUnauthorized, rr)
	}

	rr := ta.doJSON(t, "", http.MethodGet, "/v1/payments/RENT_1_x", "")
	checkResponseCode(t, http.StatusTooManyRequests, rr)
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}
