package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/internal/prescription/license"
	"github.com/nanba/pharmacy-backend/internal/prescription/ocr"
	"github.com/nanba/pharmacy-backend/internal/prescription/upload"
	"github.com/nanba/pharmacy-backend/pkg/logger"
)

// Extractor turns file bytes into text fragments
type Extractor interface {
	Extract(ctx context.Context, data []byte, ext string) (*ocr.Result, error)
}

// Loader reads stored uploads back by reference
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Verifier runs the prescription pipeline: extract text, find the license,
// consult the registry, derive the verdict. It never returns an error;
// every failure becomes an Error verdict on the attempt.
type Verifier struct {
	extractor Extractor
	lookup    license.Lookup
	loader    Loader
	clock     func() time.Time
	location  *time.Location
	timeout   time.Duration
	log       *logger.Logger
}

// Option configures a Verifier
type Option func(*Verifier)

// WithClock overrides time.Now
func WithClock(clock func() time.Time) Option {
	return func(v *Verifier) { v.clock = clock }
}

// WithLocation sets the timezone whose calendar date counts as today
func WithLocation(loc *time.Location) Option {
	return func(v *Verifier) {
		if loc != nil {
			v.location = loc
		}
	}
}

// WithTimeout bounds text extraction; zero means no limit
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// NewVerifier creates a new verifier
func NewVerifier(extractor Extractor, lookup license.Lookup, loader Loader, log *logger.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		extractor: extractor,
		lookup:    lookup,
		loader:    loader,
		clock:     time.Now,
		location:  time.Local,
		log:       log.WithComponent("verifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify loads the upload stored under ref and runs the pipeline on it.
func (v *Verifier) Verify(ctx context.Context, ref string) (attempt domain.Attempt) {
	attempt = domain.Attempt{SourceRef: ref}
	defer v.recoverInto(&attempt)

	data, err := v.loader.Load(ctx, ref)
	if err != nil {
		return v.fail(attempt, err)
	}
	return v.run(ctx, attempt, data, upload.Ext(ref))
}

// VerifyUpload runs the pipeline on an upload already held in memory,
// stored or not.
func (v *Verifier) VerifyUpload(ctx context.Context, up *upload.Upload) (attempt domain.Attempt) {
	attempt = domain.Attempt{SourceRef: up.Ref}
	defer v.recoverInto(&attempt)

	return v.run(ctx, attempt, up.Data, up.Ext)
}

// VerifyText runs only the decision stage over already-recognized text.
// Staff use it to preview how a transcription would be judged.
func (v *Verifier) VerifyText(ctx context.Context, text string) (attempt domain.Attempt) {
	attempt = domain.Attempt{ExtractedText: license.Normalize([]string{text})}
	defer v.recoverInto(&attempt)

	attempt.Outcome = v.decide(ctx, attempt.ExtractedText)
	attempt.VerifiedAt = v.clock()
	return attempt
}

func (v *Verifier) run(ctx context.Context, attempt domain.Attempt, data []byte, ext string) domain.Attempt {
	extractCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	result, err := v.extractor.Extract(extractCtx, data, ext)
	if err != nil {
		if errors.Is(extractCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("text extraction timed out after %s", v.timeout)
		}
		return v.fail(attempt, err)
	}

	attempt.Engine = result.Engine
	attempt.ExtractedText = license.Normalize(result.Fragments)
	attempt.Outcome = v.decide(ctx, attempt.ExtractedText)
	attempt.VerifiedAt = v.clock()

	v.log.Info().
		Str("ref", attempt.SourceRef).
		Str("engine", attempt.Engine).
		Str("verdict", string(attempt.Verdict)).
		Str("reason", attempt.Reason).
		Str("license", attempt.DetectedLicense).
		Msg("prescription verified")

	return attempt
}

func (v *Verifier) decide(ctx context.Context, text string) domain.Outcome {
	today := v.clock().In(v.location)

	outcome, err := license.Decide(ctx, text, v.lookup, today)
	if err != nil {
		v.log.Warn().Err(err).
			Str("license", outcome.DetectedLicense).
			Msg("registry lookup failed, treating as unregistered")
	}
	return outcome
}

func (v *Verifier) fail(attempt domain.Attempt, err error) domain.Attempt {
	attempt.Outcome = domain.Failed(err)
	attempt.VerifiedAt = v.clock()

	v.log.Warn().Err(err).Str("ref", attempt.SourceRef).Msg("prescription extraction failed")
	return attempt
}

func (v *Verifier) recoverInto(attempt *domain.Attempt) {
	if rec := recover(); rec != nil {
		*attempt = v.fail(*attempt, fmt.Errorf("verification panicked: %v", rec))
	}
}
