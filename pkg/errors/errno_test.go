package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCode(t *testing.T) {
	assert.Equal(t, 2005001, MakeCode(20, 5, 1))
	assert.Equal(t, 0, MakeCode(0, 0, 0))
	assert.Equal(t, 9910999, MakeCode(99, 10, 999))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	code := MakeCode(98, 7, 1)
	Register(&Errno{Code: code, HTTP: http.StatusInternalServerError, Message: "test error"})

	assert.Panics(t, func() {
		Register(&Errno{Code: code, HTTP: http.StatusInternalServerError, Message: "duplicate"})
	})

	e, ok := Lookup(code)
	require.True(t, ok)
	assert.Equal(t, "test error", e.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	cause := fmt.Errorf("socket closed")

	wrapped := ErrIngestInProgress.WithCause(cause)
	assert.True(t, stderrors.Is(wrapped, ErrIngestInProgress))
	assert.False(t, stderrors.Is(wrapped, ErrGuidelineNotFound))

	// A custom message keeps the identity.
	reworded := ErrIngestInProgress.WithMessage("already running")
	assert.True(t, stderrors.Is(reworded, ErrIngestInProgress))

	// Unwrap exposes the cause.
	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestWithMessagefFormats(t *testing.T) {
	e := ErrEmbeddingDimMismatch.WithMessagef("provider %s returned dimension %d, configured %d", "ollama", 768, 1024)
	assert.Contains(t, e.Error(), "dimension 768")
	assert.Equal(t, ErrEmbeddingDimMismatch.Code, e.Code)
	assert.Equal(t, ErrEmbeddingDimMismatch.HTTPStatus(), e.HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := fmt.Errorf("boom")
	e := FromError(plain)
	assert.Equal(t, ErrInternal.Code, e.Code)
	assert.True(t, stderrors.Is(e, plain))

	same := FromError(ErrInvalidParam)
	assert.Same(t, ErrInvalidParam, same)
}

func TestHTTPStatusDefaults(t *testing.T) {
	e := &Errno{Code: 1, Message: "no http set"}
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())

	assert.Equal(t, http.StatusConflict, ErrIngestInProgress.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, ErrGuidelineNotFound.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, ErrInvalidParam.HTTPStatus())
}

func TestCodeHelpers(t *testing.T) {
	assert.True(t, IsCode(ErrInternal, ErrInternal.Code))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrInternal.Code))
	assert.Equal(t, ErrInternal.Code, GetCode(ErrInternal))
	assert.Equal(t, -1, GetCode(fmt.Errorf("plain")))
}
