package models

import (
	"fmt"
	"math"
	"strings"
)

// ColorMode is how a document is printed.
type ColorMode string

const (
	ColorModeBW    ColorMode = "BW"
	ColorModeColor ColorMode = "Color"
)

// Per-page prices in minor currency units (paise).
const (
	PricePerPageBW    int64 = 250
	PricePerPageColor int64 = 500
)

// ParseColorMode accepts the wire values plus a few common spellings.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bw", "b/w", "mono", "monochrome", "black-white":
		return ColorModeBW, nil
	case "color", "colour":
		return ColorModeColor, nil
	}
	return "", fmt.Errorf("unknown color mode %q", s)
}

func (m ColorMode) Valid() bool {
	return m == ColorModeBW || m == ColorModeColor
}

func (m ColorMode) Label() string {
	if m == ColorModeColor {
		return "Color"
	}
	return "Black & White"
}

// PricePerPageMinor is the fixed price of one page in minor units.
// Anything that is not Color is billed as monochrome.
func PricePerPageMinor(mode ColorMode) int64 {
	if mode == ColorModeColor {
		return PricePerPageColor
	}
	return PricePerPageBW
}

// CalculateCostMinor is pages * price(mode) in minor units.
func CalculateCostMinor(pages int, mode ColorMode) int64 {
	if pages <= 0 {
		return 0
	}
	return int64(pages) * PricePerPageMinor(mode)
}

// CalculateCost is the client-side estimate in major units.
func CalculateCost(pages int, mode ColorMode) float64 {
	return FromMinorUnits(CalculateCostMinor(pages, mode))
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts minor units to a major-unit amount.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
