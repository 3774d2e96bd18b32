package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartErr(t *testing.T) {
	assert.NoError(t, startErr(nil))
	assert.NoError(t, startErr(http.ErrServerClosed))
	assert.NoError(t, startErr(fmt.Errorf("serve: %w", http.ErrServerClosed)))

	bind := errors.New("listen tcp :8080: bind: address already in use")
	assert.ErrorIs(t, startErr(bind), bind)
}
