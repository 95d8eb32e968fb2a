package utils

import (
	"fmt"
	"math"
	"time"
)

// ExpiredLabel is shown instead of a countdown once a session has expired.
const ExpiredLabel = "Expired"

// FormatFileSize renders bytes with a binary unit, two decimals at most.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return fmt.Sprintf("%s %s", trimFloat(v), sizes[i])
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// FormatRemaining renders a countdown as m:ss, or "Expired" at or past zero.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return ExpiredLabel
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatTimeRemaining renders the countdown to expiresAt as seen at now.
func FormatTimeRemaining(expiresAt, now time.Time) string {
	return FormatRemaining(expiresAt.Sub(now))
}

// FormatCurrency renders a major-unit amount with the currency symbol.
func FormatCurrency(amount float64, currency string) string {
	symbol := currency + " "
	switch currency {
	case "INR":
		symbol = "₹"
	case "USD":
		symbol = "$"
	case "EUR":
		symbol = "€"
	}
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

// TruncateText shortens text to maxLength runes followed by "...".
func TruncateText(text string, maxLength int) string {
	r := []rune(text)
	if len(r) <= maxLength {
		return text
	}
	return string(r[:maxLength]) + "..."
}
