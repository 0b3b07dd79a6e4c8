package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageError(t *testing.T) {
	base := New("disk full")
	err := NewStorageError("add", base)

	assert.True(t, Is(err, ErrStorage))
	assert.True(t, Is(err, base))
	assert.True(t, IsStorageError(err))
	assert.Contains(t, err.Error(), "add")
	assert.Contains(t, err.Error(), "disk full")

	wrapped := Wrap(err, "turn for %s", "u1")
	assert.True(t, Is(wrapped, ErrStorage))
	assert.True(t, IsStorageError(wrapped))

	var se *StorageError
	assert.True(t, As(wrapped, &se))
	assert.Equal(t, "add", se.Op)
}

func TestNewStorageErrorNil(t *testing.T) {
	assert.Nil(t, NewStorageError("add", nil))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))

	err := Wrap(ErrNotFound, "memory %s", "abc")
	assert.Equal(t, "memory abc: resource not found", err.Error())
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, IsStorageError(err))
	assert.False(t, Is(fmt.Errorf("plain"), ErrStorage))
}
