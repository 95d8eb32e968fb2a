package models

import "time"

// Session is the backend-issued binding between a kiosk visit and a printer.
// It is read-only to the kiosk and lapses at ExpiresAt.
type Session struct {
	SessionID    string      `json:"sessionId"`
	PrinterName  string      `json:"printerName"`
	PricePerPage float64     `json:"pricePerPage"`
	ColorOptions []ColorMode `json:"colorOptions"`
	ExpiresAt    time.Time   `json:"expiresAt"`
}

// Supports reports whether the printer offers mode. An empty option list
// means the backend did not restrict modes.
func (s Session) Supports(mode ColorMode) bool {
	if len(s.ColorOptions) == 0 {
		return mode.Valid()
	}
	for _, m := range s.ColorOptions {
		if m == mode {
			return true
		}
	}
	return false
}
