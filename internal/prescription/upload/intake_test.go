package upload

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/nanba/pharmacy-backend/pkg/errors"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
		ok       bool
	}{
		{"rx.png", "png", true},
		{"RX.JPG", "jpg", true},
		{"scan.Jpeg", "jpeg", true},
		{"prescription.pdf", "pdf", true},
		{"archive.pdf.exe", "exe", false},
		{"photo.png.gif", "gif", false},
		{"noextension", "", false},
		{`C:\Users\me\rx.PDF`, "pdf", true},
		{"../../etc/passwd", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			ext, ok := Allowed(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestKey(t *testing.T) {
	a := Key([]byte("same bytes"), "png")
	b := Key([]byte("same bytes"), "png")
	c := Key([]byte("other bytes"), "png")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, ValidKey(a))
	assert.True(t, strings.HasSuffix(a, ".png"))
}

func TestValidKey_RejectsTraversal(t *testing.T) {
	assert.False(t, ValidKey("../secret.png"))
	assert.False(t, ValidKey("prescriptions/ab/../../x.png"))
	assert.False(t, ValidKey(""))
}

func TestIntake_Accept(t *testing.T) {
	store := newMemStore()
	intake := NewIntake(store, 1024, logger.Nop())

	up, err := intake.Accept(context.Background(), "Rx Scan.PNG", bytes.NewReader([]byte("image-bytes")))
	require.NoError(t, err)
	require.NotNil(t, up)

	assert.Equal(t, "png", up.Ext)
	assert.Equal(t, int64(11), up.Size)
	assert.Equal(t, Key([]byte("image-bytes"), "png"), up.Ref)

	stored, err := intake.Load(context.Background(), up.Ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), stored)
}

func TestIntake_SameNameDifferentContentDoesNotCollide(t *testing.T) {
	store := newMemStore()
	intake := NewIntake(store, 1024, logger.Nop())

	first, err := intake.Accept(context.Background(), "prescription.jpg", strings.NewReader("first"))
	require.NoError(t, err)
	second, err := intake.Accept(context.Background(), "prescription.jpg", strings.NewReader("second"))
	require.NoError(t, err)

	assert.NotEqual(t, first.Ref, second.Ref)
	assert.Len(t, store.objects, 2)
}

func TestIntake_NoFile(t *testing.T) {
	intake := NewIntake(newMemStore(), 1024, logger.Nop())

	tests := []struct {
		name     string
		filename string
		body     *strings.Reader
	}{
		{"empty filename", "", strings.NewReader("x")},
		{"disallowed extension", "notes.txt", strings.NewReader("x")},
		{"empty body", "rx.png", strings.NewReader("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, err := intake.Accept(context.Background(), tt.filename, tt.body)
			assert.NoError(t, err)
			assert.Nil(t, up)
		})
	}

	up, err := intake.Accept(context.Background(), "rx.png", nil)
	assert.NoError(t, err)
	assert.Nil(t, up)
}

func TestIntake_TooLarge(t *testing.T) {
	intake := NewIntake(newMemStore(), 4, logger.Nop())

	_, err := intake.Accept(context.Background(), "rx.pdf", strings.NewReader("12345"))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErr.StatusCode)
}

func TestIntake_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.putErr = errors.New("disk full")
	intake := NewIntake(store, 0, logger.Nop())

	_, err := intake.Accept(context.Background(), "rx.pdf", strings.NewReader("%PDF"))
	assert.ErrorContains(t, err, "disk full")
}

func TestIntake_ReadDoesNotStore(t *testing.T) {
	store := newMemStore()
	intake := NewIntake(store, 4, logger.Nop())

	up, err := intake.Read("scan.jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	require.NotNil(t, up)
	assert.Equal(t, Key([]byte("jpeg"), "jpeg"), up.Ref)
	assert.Equal(t, []byte("jpeg"), up.Data)
	assert.Empty(t, store.objects)

	_, err = intake.Load(context.Background(), up.Ref)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = intake.Read("scan.jpeg", strings.NewReader("jpeg!"))
	assert.True(t, apperrors.Is(err, apperrors.ErrPayloadTooLarge))

	up, err = intake.Read("scan.gif", strings.NewReader("gif"))
	assert.NoError(t, err)
	assert.Nil(t, up)
}
