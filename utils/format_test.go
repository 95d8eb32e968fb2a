package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Minute, "10:00"},
		{9*time.Minute + 59*time.Second, "9:59"},
		{61 * time.Second, "1:01"},
		{999 * time.Millisecond, "0:00"},
		{0, ExpiredLabel},
		{-time.Second, ExpiredLabel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRemaining(tt.in), tt.in.String())
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "10:00", FormatTimeRemaining(now.Add(10*time.Minute), now))
	assert.Equal(t, ExpiredLabel, FormatTimeRemaining(now, now))
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "0 Bytes", FormatFileSize(0))
	assert.Equal(t, "512 Bytes", FormatFileSize(512))
	assert.Equal(t, "1 KB", FormatFileSize(1024))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "10 MB", FormatFileSize(10<<20))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "₹7.50", FormatCurrency(7.5, "INR"))
	assert.Equal(t, "GBP 1.00", FormatCurrency(1, "GBP"))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 20))
	assert.Equal(t, "abcde...", TruncateText("abcdefgh", 5))
}

func TestAppErrorHelpers(t *testing.T) {
	base := NewCodedError(KindInvalidInput, "FileTooLarge", "File size must be less than 10 MB")
	wrapped := fmt.Errorf("upload: %w", base)

	assert.Equal(t, KindInvalidInput, KindOf(wrapped))
	assert.Equal(t, "FileTooLarge", CodeOf(wrapped))
	assert.True(t, IsKind(wrapped, KindInvalidInput))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, "File size must be less than 10 MB", UserMessage(wrapped))

	plain := errors.New("boom")
	assert.Equal(t, KindServerRejected, KindOf(plain))
	assert.Equal(t, "", CodeOf(plain))
	assert.Equal(t, "boom", UserMessage(plain))

	cause := errors.New("dial tcp: refused")
	netErr := NewError(KindNetworkError, "Network error", cause)
	require.ErrorIs(t, netErr, cause)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(KindOf(netErr)))
}
