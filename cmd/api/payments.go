package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"zelton/internal/payments"
	"zelton/internal/poller"
	"zelton/internal/watch"

	"github.com/go-chi/chi/v5"
)

// WatchPaymentRequest registers an initiated payment for status polling.
// OrderID is generated when empty.
type WatchPaymentRequest struct {
	OrderID         string `json:"order_id" validate:"omitempty,orderid"`
	Kind            string `json:"kind" validate:"omitempty,oneof=rent subscription"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3"`
	PayerName       string `json:"payer_name" validate:"omitempty,max=120"`
	PayerEmail      string `json:"payer_email" validate:"omitempty,email"`
	PushToken       string `json:"push_token" validate:"omitempty,startswith=ExponentPushToken"`
	PlanOrUnitRef   string `json:"plan_or_unit_ref" validate:"required,max=120"`
	IntervalSeconds int    `json:"interval_seconds" validate:"omitempty,min=1,max=300"`
	MaxAttempts     int    `json:"max_attempts" validate:"omitempty,min=1,max=360"`
}

type RetryPaymentRequest struct {
	IntervalSeconds int `json:"interval_seconds" validate:"omitempty,min=1,max=300"`
	MaxAttempts     int `json:"max_attempts" validate:"omitempty,min=1,max=360"`
}

type VerifyPaymentResponse struct {
	OrderID string           `json:"order_id"`
	Kind    payments.Kind    `json:"kind"`
	Outcome payments.Outcome `json:"outcome"`
}

func watchOptions(intervalSeconds, maxAttempts int) watch.Options {
	return watch.Options{
		Interval:    time.Duration(intervalSeconds) * time.Second,
		MaxAttempts: maxAttempts,
	}
}

// ownedStatus loads the watched payment and hides payments of other payers.
func (app *application) ownedStatus(r *http.Request, orderID string) (watch.Status, error) {
	st, err := app.watcher.Status(orderID)
	if err != nil {
		return watch.Status{}, err
	}
	if st.Intent.PayerID != getPayerFromContext(r) {
		return watch.Status{}, watch.ErrNotFound
	}
	return st, nil
}

// watchPaymentHandler godoc
//
//	@Summary		Watch a payment
//	@Description	Persists an initiated payment and polls the backend until it completes, fails or times out
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		WatchPaymentRequest	true	"Payment intent"
//	@Success		202		{object}	watch.Status
//	@Failure		400		{object}	error	"Bad Request"
//	@Failure		401		{object}	error	"Unauthorized"
//	@Failure		409		{object}	error	"Order id belongs to a different payment"
//	@Failure		500		{object}	error	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/payments/watch [post]
func (app *application) watchPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload WatchPaymentRequest
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	kind := payments.Kind(payload.Kind)
	if kind == "" {
		kind = payments.KindRent
	}
	orderID := payload.OrderID
	if orderID == "" {
		orderID = payments.NewOrderID(payments.OrderPrefix(kind), time.Now())
	}

	payerID := getPayerFromContext(r)
	prev, err := app.watcher.Lookup(r.Context(), orderID)
	switch {
	case err == nil && prev.PayerID != payerID:
		app.conflictResponse(w, r, errors.New("order id is already in use"))
		return
	case err != nil && !errors.Is(err, watch.ErrNotFound):
		app.internalServerError(w, r, err)
		return
	}

	intent := payments.Intent{
		OrderID:       orderID,
		Kind:          kind,
		Amount:        payload.Amount,
		Currency:      strings.ToUpper(payload.Currency),
		PayerID:       payerID,
		PayerName:     payload.PayerName,
		PayerEmail:    payload.PayerEmail,
		PushToken:     payload.PushToken,
		PlanOrUnitRef: payload.PlanOrUnitRef,
	}

	st, err := app.watcher.Start(r.Context(), intent, watchOptions(payload.IntervalSeconds, payload.MaxAttempts))
	if err != nil {
		switch {
		case errors.Is(err, watch.ErrInvalidIntent), errors.Is(err, watch.ErrUnsupportedKind):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, watch.ErrIntentMismatch):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusAccepted, st); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getPaymentStatusHandler godoc
//
//	@Summary		Get payment status
//	@Description	Returns the latest state of a watched payment
//	@Tags			payments
//	@Produce		json
//	@Param			orderID	path		string	true	"Order ID"
//	@Success		200		{object}	watch.Status
//	@Failure		401		{object}	error	"Unauthorized"
//	@Failure		404		{object}	error	"Not Found"
//	@Security		ApiKeyAuth
//	@Router			/payments/{orderID} [get]
func (app *application) getPaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	st, err := app.ownedStatus(r, chi.URLParam(r, "orderID"))
	if err != nil {
		app.notFoundResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, st); err != nil {
		app.internalServerError(w, r, err)
	}
}

// cancelPaymentWatchHandler godoc
//
//	@Summary		Stop watching a payment
//	@Description	Cancels the running poll and discards the persisted intent. No outcome is delivered.
//	@Tags			payments
//	@Param			orderID	path	string	true	"Order ID"
//	@Success		204
//	@Failure		401	{object}	error	"Unauthorized"
//	@Failure		404	{object}	error	"Not Found"
//	@Security		ApiKeyAuth
//	@Router			/payments/{orderID} [delete]
func (app *application) cancelPaymentWatchHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if _, err := app.ownedStatus(r, orderID); err != nil {
		app.notFoundResponse(w, r, err)
		return
	}

	if err := app.watcher.Cancel(r.Context(), orderID); err != nil {
		if errors.Is(err, watch.ErrNotFound) {
			app.conflictResponse(w, r, errors.New("payment is not being polled"))
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// retryPaymentHandler godoc
//
//	@Summary		Retry a payment status check
//	@Description	Polls a payment again after it failed, timed out or was canceled
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			orderID	path		string				true	"Order ID"
//	@Param			payload	body		RetryPaymentRequest	false	"Poll overrides"
//	@Success		202		{object}	watch.Status
//	@Failure		400		{object}	error	"Bad Request"
//	@Failure		404		{object}	error	"Not Found"
//	@Failure		409		{object}	error	"Payment already completed"
//	@Security		ApiKeyAuth
//	@Router			/payments/{orderID}/retry [post]
func (app *application) retryPaymentHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	st, err := app.ownedStatus(r, orderID)
	if err != nil {
		app.notFoundResponse(w, r, err)
		return
	}
	if st.State == watch.StateInFlight {
		app.conflictResponse(w, r, errors.New("payment is still being polled"))
		return
	}

	var payload RetryPaymentRequest
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &payload); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		if err := Validate.Struct(payload); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	st, err = app.watcher.Retry(r.Context(), orderID, watchOptions(payload.IntervalSeconds, payload.MaxAttempts))
	if err != nil {
		switch {
		case errors.Is(err, watch.ErrNotRetryable):
			app.conflictResponse(w, r, err)
		case errors.Is(err, watch.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusAccepted, st); err != nil {
		app.internalServerError(w, r, err)
	}
}

// verifyPaymentHandler godoc
//
//	@Summary		Check a payment once
//	@Description	Asks the backend for the state of a payment watched by the caller without starting a poll
//	@Tags			payments
//	@Produce		json
//	@Param			orderID	path		string	true	"Order ID"
//	@Success		200		{object}	VerifyPaymentResponse
//	@Failure		400		{object}	error	"Bad Request"
//	@Failure		404		{object}	error	"Not Found"
//	@Failure		502		{object}	error	"Backend unavailable"
//	@Security		ApiKeyAuth
//	@Router			/payments/{orderID}/verify [get]
func (app *application) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	intent, err := app.watcher.Lookup(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, watch.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	if intent.PayerID != getPayerFromContext(r) {
		app.notFoundResponse(w, r, watch.ErrNotFound)
		return
	}
	kind := intent.Kind

	outcome, err := app.watcher.Verify(r.Context(), kind, orderID)
	if err != nil {
		if errors.Is(err, watch.ErrUnsupportedKind) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.logger.Warnw("one-shot verify failed", "order_id", orderID, "kind", kind, "error", err)
		writeJSONError(w, http.StatusBadGateway, poller.ReasonNetwork+": unable to verify payment status")
		return
	}

	resp := VerifyPaymentResponse{OrderID: orderID, Kind: kind, Outcome: outcome}
	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}
