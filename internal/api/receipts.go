package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/expensedesk/expensedesk/internal/observability"
	"github.com/expensedesk/expensedesk/internal/storage"
)

var allowedReceiptTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/heic":      true,
}

type receiptResponse struct {
	ExpenseID   int64  `json:"expense_id"`
	ReceiptFile string `json:"receipt_file"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

func handleUploadReceipt(deps Dependencies, settings handlerSettings, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) || !requireReceipts(deps, w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_ID", err.Error(), false)
		return
	}
	current, err := deps.Gateway.GetExpense(r.Context(), id)
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}

	maxBytes := settings.receiptMaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, sourceRequest, "RECEIPT_TOO_LARGE", "receipt exceeds "+strconv.FormatInt(maxBytes, 10)+" bytes", false)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_BODY", "could not read receipt body", false)
		return
	}
	if len(body) == 0 {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "RECEIPT_REQUIRED", "receipt body is empty", false)
		return
	}

	contentType := receiptContentType(r.Header.Get("Content-Type"), body)
	if !allowedReceiptTypes[contentType] {
		writeError(r.Context(), w, http.StatusUnsupportedMediaType, sourceRequest, "UNSUPPORTED_MEDIA_TYPE", "receipts must be PDF or image files", false)
		return
	}

	fileName := strings.TrimSpace(r.URL.Query().Get("filename"))
	key, err := storage.BuildReceiptPath(id, uuid.NewString(), fileName)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_RECEIPT_NAME", err.Error(), false)
		return
	}
	info, err := deps.Receipts.Put(r.Context(), key, bytes.NewReader(body), int64(len(body)), storage.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"expense-id":        strconv.FormatInt(id, 10),
			"original-filename": fileName,
		},
	})
	if err != nil {
		writeStorageError(deps, w, r, err)
		return
	}

	attached, err := deps.Gateway.AttachReceipt(r.Context(), id, key)
	if err != nil || !attached {
		_ = deps.Receipts.Delete(r.Context(), key)
		if err != nil {
			writeGatewayError(deps, w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusNotFound, sourceDatabase, "NOT_FOUND", "expense was not found", false)
		return
	}
	if current.ReceiptFile != "" && current.ReceiptFile != key {
		if err := deps.Receipts.Delete(r.Context(), current.ReceiptFile); err != nil && deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "failed to delete replaced receipt", slog.String("object_key", current.ReceiptFile), slog.Any("error", err))
		}
	}
	observability.ObserveReceiptUpload(int64(len(body)))

	writeData(r.Context(), w, http.StatusCreated, receiptResponse{
		ExpenseID:   id,
		ReceiptFile: key,
		SizeBytes:   info.Size,
		ContentType: contentType,
	})
}

func handleDownloadReceipt(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireGateway(deps, w, r) || !requireReceipts(deps, w, r) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, sourceRequest, "INVALID_ID", err.Error(), false)
		return
	}
	item, err := deps.Gateway.GetExpense(r.Context(), id)
	if err != nil {
		writeGatewayError(deps, w, r, err)
		return
	}
	if item.ReceiptFile == "" {
		writeError(r.Context(), w, http.StatusNotFound, sourceStorage, "RECEIPT_NOT_FOUND", "expense has no receipt", false)
		return
	}

	info, err := deps.Receipts.Stat(r.Context(), item.ReceiptFile)
	if err != nil {
		writeStorageError(deps, w, r, err)
		return
	}
	reader, err := deps.Receipts.Get(r.Context(), item.ReceiptFile)
	if err != nil {
		writeStorageError(deps, w, r, err)
		return
	}
	defer func() { _ = reader.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+strings.Trim(info.ETag, `"`)+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func receiptContentType(header string, body []byte) string {
	if mediaType, _, err := mime.ParseMediaType(header); err == nil && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mediaType
}

func requireReceipts(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Receipts == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, sourceStorage, "RECEIPTS_NOT_CONFIGURED", "receipt storage is not configured", false)
		return false
	}
	return true
}

func writeStorageError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(r.Context(), w, http.StatusNotFound, sourceStorage, "OBJECT_NOT_FOUND", "stored object was not found", false)
		return
	case errors.Is(err, storage.ErrInvalidKey):
		writeError(r.Context(), w, http.StatusBadRequest, sourceStorage, "INVALID_OBJECT_KEY", "object key is not valid", false)
		return
	}
	if deps.Logger != nil {
		deps.Logger.ErrorContext(r.Context(), "object store call failed", slog.String("route", r.Pattern), slog.Any("error", err))
	}
	if errors.Is(err, storage.ErrAccessDenied) {
		writeError(r.Context(), w, http.StatusServiceUnavailable, sourceStorage, "STORAGE_ACCESS_DENIED", "object storage rejected the service credentials", false)
		return
	}
	writeError(r.Context(), w, http.StatusServiceUnavailable, sourceStorage, "STORAGE_UNAVAILABLE", "object storage is unavailable", true)
}
