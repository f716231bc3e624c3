package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRentVerifyPath         = "/payments/verify/{orderId}"
	DefaultSubscriptionVerifyPath = "/owner-subscriptions/verify-payment/{orderId}/"
)

// RESTVerifier queries the property-management backend's verify endpoint.
type RESTVerifier struct {
	BaseURL    string
	Path       string // must contain {orderId}
	Token      string
	httpClient *http.Client
}

func NewRESTVerifier(baseURL, path, token string, timeout time.Duration) *RESTVerifier {
	if path == "" {
		path = DefaultRentVerifyPath
	}
	return &RESTVerifier{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Path:       path,
		Token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (v *RESTVerifier) verifyURL(orderID string) string {
	return v.BaseURL + strings.ReplaceAll(v.Path, "{orderId}", url.PathEscape(orderID))
}

func (v *RESTVerifier) VerifyPayment(ctx context.Context, orderID string) (VerifyResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return VerifyResponse{}, fmt.Errorf("verify requires order id")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, v.verifyURL(orderID), nil)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("verify request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if v.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+v.Token)
	}

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= http.StatusInternalServerError {
		return VerifyResponse{}, fmt.Errorf("verify failed: http=%d body=%s", resp.StatusCode, string(raw))
	}

	// The backend answers 4xx with a body for unknown or rejected orders, so
	// decode anyway and only treat undecodable bodies as transport errors.
	var res VerifyResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return VerifyResponse{}, fmt.Errorf("verify decode: http=%d err=%w body=%s", resp.StatusCode, err, string(raw))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		res.Success = false
	}

	return res, nil
}
