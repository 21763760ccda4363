package handler

import (
	"net/http"
	"strings"

	"github.com/nanba/pharmacy-backend/internal/prescription/service"
	"github.com/nanba/pharmacy-backend/internal/prescription/upload"
	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/httputil"
	"github.com/nanba/pharmacy-backend/pkg/logger"
)

// VerifyHandler lets staff run the pipeline without placing an order
type VerifyHandler struct {
	verifier *service.Verifier
	intake   *upload.Intake
	logger   *logger.Logger
}

// NewVerifyHandler creates a new verify handler
func NewVerifyHandler(verifier *service.Verifier, intake *upload.Intake, log *logger.Logger) *VerifyHandler {
	return &VerifyHandler{
		verifier: verifier,
		intake:   intake,
		logger:   log,
	}
}

// Preview handles POST /admin/prescriptions/verify
// Accepts multipart form with either:
// - file: a png, jpg, jpeg or pdf prescription
// - text: an already transcribed prescription
func (h *VerifyHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if err := httputil.ParseMultipart(w, r, h.intake.MaxSize()); err != nil {
		httputil.Error(w, err)
		return
	}

	file, header, err := httputil.OptionalFile(r, "file")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if file == nil {
		text := strings.TrimSpace(r.FormValue("text"))
		if text == "" {
			httputil.Error(w, errors.BadRequest("file or text is required"))
			return
		}
		httputil.JSON(w, http.StatusOK, h.verifier.VerifyText(r.Context(), text))
		return
	}
	defer file.Close()

	// previews are not kept: nothing references the file afterwards
	up, err := h.intake.Read(header.Filename, file)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if up == nil {
		httputil.Error(w, errors.BadRequest("file must be a non-empty png, jpg, jpeg or pdf"))
		return
	}

	httputil.JSON(w, http.StatusOK, h.verifier.VerifyUpload(r.Context(), up))
}
