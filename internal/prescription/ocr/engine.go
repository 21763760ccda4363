// Package ocr extracts text fragments from prescription uploads. Engines are
// tried in registration order; the first one that succeeds wins.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nanba/pharmacy-backend/pkg/logger"
)

var (
	// ErrUnsupportedFormat is returned when no engine handles the extension
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoText lets an engine defer to the next one, e.g. a PDF without a text layer
	ErrNoText = errors.New("no text found")
)

// Engine defines the interface for text extraction.
type Engine interface {
	// Name returns the engine name for logging
	Name() string

	// CanProcess returns true if this engine handles files with the given
	// lower-cased extension (without the dot)
	CanProcess(ext string) bool

	// Extract returns recognized text fragments in reading order
	Extract(ctx context.Context, data []byte, ext string) ([]string, error)
}

// Result is the output of a successful extraction
type Result struct {
	Engine    string
	Fragments []string
}

// Registry holds all registered engines and dispatches with fallback
type Registry struct {
	engines []Engine
	logger  *logger.Logger
}

// NewRegistry creates a new engine registry
func NewRegistry(log *logger.Logger, engines ...Engine) *Registry {
	return &Registry{engines: engines, logger: log}
}

// FindEngines returns all engines that can handle ext, in registration order.
func (r *Registry) FindEngines(ext string) []Engine {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var result []Engine
	for _, e := range r.engines {
		if e.CanProcess(ext) {
			result = append(result, e)
		}
	}
	return result
}

// Names lists registered engines
func (r *Registry) Names() []string {
	names := make([]string, len(r.engines))
	for i, e := range r.engines {
		names[i] = e.Name()
	}
	return names
}

// Extract runs the engines for ext until one succeeds. If every engine
// fails, the last error is returned.
func (r *Registry) Extract(ctx context.Context, data []byte, ext string) (*Result, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	engines := r.FindEngines(ext)
	if len(engines) == 0 {
		return nil, fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}

	var lastErr error
	for _, e := range engines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fragments, err := safeExtract(ctx, e, data, ext)
		if err != nil {
			r.logger.Warn().Err(err).Str("engine", e.Name()).Str("ext", ext).Msg("engine failed, trying next")
			lastErr = err
			continue
		}

		return &Result{Engine: e.Name(), Fragments: fragments}, nil
	}

	return nil, lastErr
}

func safeExtract(ctx context.Context, e Engine, data []byte, ext string) (fragments []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fragments = nil
			err = fmt.Errorf("%s: engine panicked: %v", e.Name(), rec)
		}
	}()
	return e.Extract(ctx, data, ext)
}

// lines splits engine output into trimmed, non-empty lines
func lines(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
