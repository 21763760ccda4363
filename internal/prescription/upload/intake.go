package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"golang.org/x/crypto/blake2b"
)

// DefaultMaxSize caps a single prescription upload
const DefaultMaxSize int64 = 10 << 20

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"pdf":  "application/pdf",
}

// Allowed reports whether filename carries an accepted extension. Only the
// last extension counts and the comparison ignores case.
func Allowed(filename string) (ext string, ok bool) {
	ext = Ext(filename)
	_, ok = contentTypes[ext]
	return ext, ok
}

// Ext returns the lower-cased last extension of filename without the dot
func Ext(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// Key derives the storage key from content: blake2b-256 of the bytes plus
// the extension, sharded by the first hash byte.
func Key(data []byte, ext string) string {
	sum := blake2b.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return fmt.Sprintf("prescriptions/%s/%s.%s", digest[:2], digest, ext)
}

// Upload is an accepted prescription file
type Upload struct {
	Ref          string
	Ext          string
	OriginalName string
	Size         int64
	Data         []byte
}

// Intake validates and stores prescription uploads.
type Intake struct {
	store   Store
	maxSize int64
	logger  *logger.Logger
}

// NewIntake creates a new intake backed by store
func NewIntake(store Store, maxSize int64, log *logger.Logger) *Intake {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Intake{store: store, maxSize: maxSize, logger: log}
}

// Accept stores the file and returns its reference. A missing file or a
// disallowed extension yields (nil, nil): the order carries no prescription.
// Oversized files and storage failures are returned as errors.
func (i *Intake) Accept(ctx context.Context, filename string, r io.Reader) (*Upload, error) {
	up, err := i.Read(filename, r)
	if err != nil || up == nil {
		return up, err
	}

	if err := i.store.Put(ctx, up.Ref, up.Data, contentTypes[up.Ext]); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	i.logger.Debug().Str("ref", up.Ref).Int64("size", up.Size).Msg("prescription stored")
	return up, nil
}

// Read applies the same checks as Accept and keeps the file in memory only.
// Ref is the key the file would be stored under.
func (i *Intake) Read(filename string, r io.Reader) (*Upload, error) {
	if r == nil || strings.TrimSpace(filename) == "" {
		return nil, nil
	}

	ext, ok := Allowed(filename)
	if !ok {
		i.logger.Info().Str("filename", filename).Msg("prescription skipped: extension not allowed")
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, i.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > i.maxSize {
		return nil, errors.PayloadTooLarge("prescription", i.maxSize)
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &Upload{
		Ref:          Key(data, ext),
		Ext:          ext,
		OriginalName: filename,
		Size:         int64(len(data)),
		Data:         data,
	}, nil
}

// MaxSize returns the upload size limit in bytes
func (i *Intake) MaxSize() int64 {
	return i.maxSize
}

// Load reads a stored upload back
func (i *Intake) Load(ctx context.Context, ref string) ([]byte, error) {
	return i.store.Get(ctx, ref)
}
