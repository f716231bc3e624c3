package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp VerifyResponse
		want Outcome
	}{
		{"completed", VerifyResponse{Success: true, State: "COMPLETED"}, Completed},
		{"failed", VerifyResponse{Success: true, State: "FAILED"}, Failed},
		{"pending", VerifyResponse{Success: true, State: "PENDING"}, Pending},
		{"lowercase", VerifyResponse{Success: true, State: " completed "}, Completed},
		{"unknown state", VerifyResponse{Success: true, State: "AUTHORIZED"}, Pending},
		{"unsuccessful completed", VerifyResponse{Success: false, State: "COMPLETED"}, Pending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.resp); got != tt.want {
				t.Errorf("Classify(%+v) = %s, want %s", tt.resp, got, tt.want)
			}
		})
	}
}

func TestRESTVerifier(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		switch {
		case strings.Contains(r.URL.Path, "boom"):
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream down")
		case strings.Contains(r.URL.Path, "missing"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"success":true,"state":"FAILED"}`)
		case strings.Contains(r.URL.Path, "garbage"):
			fmt.Fprint(w, "<html>")
		default:
			fmt.Fprint(w, `{"success":true,"state":"COMPLETED"}`)
		}
	}))
	defer srv.Close()

	v := NewRESTVerifier(srv.URL+"/", "", "secret", time.Second)

	resp, err := v.VerifyPayment(context.Background(), "RENT_1_ab cd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Classify(resp) != Completed {
		t.Errorf("expected COMPLETED, got %+v", resp)
	}
	if gotPath != "/payments/verify/RENT_1_ab%20cd" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}

	if _, err := v.VerifyPayment(context.Background(), "boom"); err == nil {
		t.Error("expected error on 5xx")
	}
	if _, err := v.VerifyPayment(context.Background(), "garbage"); err == nil {
		t.Error("expected error on undecodable body")
	}

	resp, err = v.VerifyPayment(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error on 4xx with body: %v", err)
	}
	if resp.Success {
		t.Error("4xx response must not be treated as successful")
	}

	if _, err := v.VerifyPayment(context.Background(), "  "); err == nil {
		t.Error("expected error for empty order id")
	}
}

type stubVerifier struct {
	resp VerifyResponse
	err  error
}

func (s stubVerifier) VerifyPayment(context.Context, string) (VerifyResponse, error) {
	return s.resp, s.err
}

func TestPaymentManager(t *testing.T) {
	m := NewPaymentManager()
	m.RegisterVerifier(KindRent, stubVerifier{resp: VerifyResponse{Success: true, State: "PENDING"}})
	errDown := errors.New("down")
	m.RegisterVerifier(KindSubscription, stubVerifier{err: errDown})

	if !m.Supports(KindRent) || m.Supports(Kind("deposit")) {
		t.Fatal("unexpected Supports result")
	}

	resp, err := m.ForKind(KindRent).VerifyPayment(context.Background(), "x")
	if err != nil || resp.State != "PENDING" {
		t.Errorf("rent verify = %+v, %v", resp, err)
	}
	if _, err := m.VerifyPayment(context.Background(), KindSubscription, "x"); !errors.Is(err, errDown) {
		t.Errorf("expected errDown, got %v", err)
	}
	if _, err := m.VerifyPayment(context.Background(), Kind("deposit"), "x"); err == nil {
		t.Error("expected error for unregistered kind")
	}
}

func TestNewOrderID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := NewOrderID(OrderPrefix(KindSubscription), now)
	if !regexp.MustCompile(`^SUB_1700000000_[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("unexpected order id %q", id)
	}
	if other := NewOrderID("sub", now); other == id {
		t.Error("order ids must be unique")
	}
	if id := NewOrderID("", now); !strings.HasPrefix(id, "TXN_") {
		t.Errorf("expected TXN prefix, got %q", id)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 1250000: "12500.00", 99999: "999.99", -150: "-1.50"}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}
