package httputil

import (
	stderrors "errors"
	"mime/multipart"
	"net/http"

	"github.com/nanba/pharmacy-backend/pkg/errors"
)

// formOverhead is the slack allowed on top of the file limit for the other
// form fields and multipart boundaries
const formOverhead = 1 << 20

// ParseMultipart bounds the request body and parses it as multipart form data.
// A body over the limit yields 413, anything unparsable 400.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxFileSize int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+formOverhead)

	if err := r.ParseMultipartForm(maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.PayloadTooLarge("request body", 0)
		}
		return errors.BadRequest("invalid multipart form")
	}
	return nil
}

// OptionalFile returns the uploaded file under field, or nils when the form
// carries none. The caller closes the file.
func OptionalFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, errors.BadRequest("invalid file upload")
	}
	return file, header, nil
}
