package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"zelton/internal/watch"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/go-chi/chi/v5"
)

const (
	proofFolder   = "payment_proofs"
	maxProofBytes = 5 << 20 // whole request body, multipart framing included
)

type proofUploader interface {
	Upload(ctx context.Context, file io.Reader, publicID string) (string, error)
}

type cloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// Upload stores file under proofFolder and returns its secure URL.
func (u *cloudinaryUploader) Upload(ctx context.Context, file io.Reader, publicID string) (string, error) {
	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:    proofFolder,
		PublicID:  publicID,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

type PaymentProofResponse struct {
	OrderID string `json:"order_id"`
	URL     string `json:"url"`
}

var proofContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// uploadPaymentProofHandler godoc
//
//	@Summary		Upload payment proof
//	@Description	Uploads a receipt or screenshot for a payment, e.g. a bank transfer made outside the gateway
//	@Tags			payments
//	@Accept			mpfd
//	@Produce		json
//	@Param			orderID	path		string	true	"Order ID"
//	@Param			proof	formData	file	true	"JPEG, PNG or PDF, max 5MB"
//	@Success		201		{object}	PaymentProofResponse
//	@Failure		400		{object}	error	"Unable to parse form or retrieve file"
//	@Failure		404		{object}	error	"Not Found"
//	@Failure		500		{object}	error	"Upload failed"
//	@Failure		503		{object}	error	"Proof uploads not configured"
//	@Security		ApiKeyAuth
//	@Router			/payments/{orderID}/proof [post]
func (app *application) uploadPaymentProofHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if app.proofs == nil {
		app.serviceUnavailableResponse(w, r, errors.New("proof uploads are not configured"))
		return
	}
	if _, err := app.ownedStatus(r, orderID); err != nil {
		if errors.Is(err, watch.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes)
	if err := r.ParseMultipartForm(maxProofBytes); err != nil {
		app.badRequestResponse(w, r, errors.New("unable to parse form, file size limit is 5MB"))
		return
	}

	file, fileHeader, err := r.FormFile("proof")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("unable to retrieve file"))
		return
	}
	defer file.Close()

	if !proofContentTypes[fileHeader.Header.Get("Content-Type")] {
		app.badRequestResponse(w, r, errors.New("only JPEG, PNG and PDF files are allowed"))
		return
	}

	publicID := fmt.Sprintf("proof_%s_%d", orderID, time.Now().UnixNano())
	url, err := app.proofs.Upload(r.Context(), file, publicID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("payment proof uploaded", "order_id", orderID, "url", url)

	if err := app.jsonResponse(w, http.StatusCreated, PaymentProofResponse{OrderID: orderID, URL: url}); err != nil {
		app.internalServerError(w, r, err)
	}
}
