package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextWithClient(t *testing.T) {
	ctx := ContextWithClient(context.Background(), "10.0.0.1", "curl/8.0")
	assert.Equal(t, "10.0.0.1", ClientIPFromContext(ctx))
	assert.Equal(t, "curl/8.0", UserAgentFromContext(ctx))

	assert.Empty(t, ClientIPFromContext(context.Background()))
	assert.Empty(t, UserAgentFromContext(context.Background()))
}
