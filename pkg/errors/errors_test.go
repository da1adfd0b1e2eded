package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrStateLoad, "cannot load state")
	assert.Equal(t, "[STATE_LOAD] cannot load state", err.Error())

	wrapped := Wrap(stderrors.New("disk on fire"), ErrStateWrite, "commit failed")
	assert.Equal(t, "[STATE_WRITE] commit failed: disk on fire", wrapped.Error())
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrStateWrite, "never happens"))
	assert.Nil(t, Wrapf(nil, ErrStateWrite, "never %s", "happens"))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrapf(cause, ErrTransferCopy, "copy of %s failed", "a.md")

	assert.True(t, stderrors.Is(err, cause))
}

func TestIsErrorCodeThroughWrapping(t *testing.T) {
	inner := New(ErrStateCorrupt, "bad json")
	outer := Wrap(inner, ErrStateLoad, "load failed")

	assert.True(t, IsErrorCode(outer, ErrStateLoad))
	assert.False(t, IsErrorCode(outer, ErrStateLocked))
	assert.True(t, IsErrorCode(inner, ErrStateCorrupt))
	assert.False(t, IsErrorCode(stderrors.New("plain"), ErrStateLoad))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrGitTimeout, GetErrorCode(New(ErrGitTimeout, "slow remote")))
	assert.Equal(t, ErrUnknown, GetErrorCode(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrMappingScan, "scan failed").WithDetail("path", "/src")
	assert.Equal(t, "/src", err.Details["path"])
}
