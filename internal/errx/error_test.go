package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, "engine failed: boom", New(base, http.StatusBadGateway, "engine failed").Error())
	assert.Equal(t, "boom", New(base, http.StatusBadGateway, "").Error())
	assert.Equal(t, "no messages", BadRequest("no messages").Error())
}

func TestStatusThroughWrapping(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("handler: %w", New(base, http.StatusTooManyRequests, "limited"))

	status, ok := Status(wrapped)
	assert.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.ErrorIs(t, wrapped, base)

	_, ok = Status(base)
	assert.False(t, ok)
}
