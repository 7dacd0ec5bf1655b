package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"welth/internal/log"
	"welth/internal/receipt"
)

const maxReceiptSize = 5 << 20

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	if s.svc.Scanner == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Receipt scanning is not configured").Write(w)
		return
	}

	// Room for the multipart envelope on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize+64<<10)
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Receipt image must be 5MB or smaller").Write(w)
			return
		}
		writeError(w, r, log.OpScan, badRequest("expected multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, log.OpScan, badRequest("missing file field"))
		return
	}
	defer file.Close()

	if header.Size > maxReceiptSize {
		ErrorResponse(http.StatusRequestEntityTooLarge, "Receipt image must be 5MB or smaller").Write(w)
		return
	}
	image, err := io.ReadAll(io.LimitReader(file, maxReceiptSize+1))
	if err != nil {
		writeError(w, r, log.OpScan, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		ErrorResponse(http.StatusUnsupportedMediaType, "Receipt must be an image").Write(w)
		return
	}

	scanned, err := s.svc.Scanner.Scan(r.Context(), image, mimeType)
	if err != nil {
		s.appMetrics.receiptScanFailures.Add(1)
		if errors.Is(err, receipt.ErrEmptyImage) {
			writeError(w, r, log.OpScan, badRequest("receipt image is empty"))
			return
		}
		writeError(w, r, log.OpScan, err)
		return
	}

	s.appMetrics.receiptsScanned.Add(1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Receipt scanned",
		log.FieldOperation, log.OpScan,
		log.FieldUserID, userID,
		log.FieldAmount, scanned.Amount.String())
	NewJSONResponse().Data(scanned).Write(w)
}
