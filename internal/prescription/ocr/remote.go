package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// RemoteEngine sends uploads to an OCR HTTP service.
//
// The service accepts a multipart "file" field on POST /api/v1/ocr and
// answers {"texts": ["...", ...]} with fragments in reading order.
type RemoteEngine struct {
	serviceURL string
	httpClient *http.Client
}

// NewRemoteEngine creates a new engine that calls the given service URL.
func NewRemoteEngine(serviceURL string, timeout time.Duration) *RemoteEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteEngine{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *RemoteEngine) Name() string { return "remote" }

func (e *RemoteEngine) CanProcess(ext string) bool {
	switch ext {
	case "png", "jpg", "jpeg", "pdf":
		return true
	}
	return false
}

func (e *RemoteEngine) Extract(ctx context.Context, data []byte, ext string) ([]string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "prescription."+ext)
	if err != nil {
		return nil, fmt.Errorf("remote ocr: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("remote ocr: write file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("remote ocr: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serviceURL+"/api/v1/ocr", body)
	if err != nil {
		return nil, fmt.Errorf("remote ocr: create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote ocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("remote ocr: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote ocr: service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed remoteOCRResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("remote ocr: parse response: %w", err)
	}

	return parsed.Texts, nil
}

type remoteOCRResponse struct {
	Texts []string `json:"texts"`
}
