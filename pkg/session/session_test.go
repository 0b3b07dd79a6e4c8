package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithScope(context.Background(), NewScope("u1", "s1"))
	s, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "s1", s.SessionID)
	assert.True(t, s.Valid())
	assert.False(t, NewScope("u1", "").Valid())
}
