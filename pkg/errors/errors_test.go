package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_MessageIncludesCause(t *testing.T) {
	err := Persistence("delete treatments", stderrors.New("connection reset"))
	assert.Equal(t, "delete treatments: connection reset", err.Error())

	err = NotFound("patient 42", nil)
	assert.Equal(t, "patient 42 not found", err.Error())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("update patient 7: %w", NotFound("patient 7", nil))
	assert.Equal(t, ErrNotFound, CodeOf(wrapped))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrInternal, CodeOf(nil))
}

func TestIs_WalksNestedAppErrors(t *testing.T) {
	inner := Decode("treatments.labTest", stderrors.New("invalid character"))
	outer := Persistence("list patients", inner)

	assert.True(t, Is(outer, ErrPersistence))
	assert.True(t, Is(outer, ErrDecode))
	assert.False(t, Is(outer, ErrNotFound))
	assert.True(t, stderrors.Is(outer, inner))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "not_found", ErrNotFound.String())
	assert.Equal(t, "decode", ErrDecode.String())
	assert.Equal(t, "internal", ErrorCode(1).String())
}
