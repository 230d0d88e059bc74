package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/bagtrack/bagtrack-backend/pkg/errors"
)

// Barcode layout: one prefix letter, YYMMDD, four-digit daily suffix
const (
	DayLayout    = "060102"
	SuffixWidth  = 4
	MaxSuffix    = 9999
	BarcodeWidth = 1 + len(DayLayout) + SuffixWidth
)

var barcodePattern = regexp.MustCompile(`^[IG]\d{6}\d{4}$`)

// Prefix returns the barcode letter for a unit kind
func (k Kind) Prefix() string {
	switch k {
	case KindImportBag:
		return "I"
	case KindGradedBag:
		return "G"
	default:
		return ""
	}
}

// KindForPrefix is the inverse of Kind.Prefix
func KindForPrefix(p byte) (Kind, bool) {
	switch p {
	case 'I':
		return KindImportBag, true
	case 'G':
		return KindGradedBag, true
	default:
		return "", false
	}
}

// DayPrefix is the shared head of every barcode of kind issued on day,
// e.g. "I250123". It is also the serialization key for issuance.
func DayPrefix(kind Kind, day time.Time) string {
	return kind.Prefix() + day.Format(DayLayout)
}

// FormatBarcode composes a barcode. The suffix must be in 1..MaxSuffix.
func FormatBarcode(kind Kind, day time.Time, suffix int) string {
	return fmt.Sprintf("%s%0*d", DayPrefix(kind, day), SuffixWidth, suffix)
}

// Barcode is a parsed barcode
type Barcode struct {
	Kind   Kind
	Day    string // YYMMDD as printed
	Suffix int
}

// ParseBarcode validates and splits a barcode
func ParseBarcode(s string) (Barcode, error) {
	if !barcodePattern.MatchString(s) {
		return Barcode{}, errors.Validation(map[string]string{
			"barcode": "must match <I|G><YYMMDD><NNNN>",
		})
	}
	kind, _ := KindForPrefix(s[0])
	day := s[1 : 1+len(DayLayout)]
	if _, err := time.Parse(DayLayout, day); err != nil {
		return Barcode{}, errors.Validation(map[string]string{
			"barcode": "embedded date is not a calendar date",
		})
	}
	suffix, _ := strconv.Atoi(s[1+len(DayLayout):])
	if suffix == 0 {
		return Barcode{}, errors.Validation(map[string]string{
			"barcode": "suffix starts at 0001",
		})
	}
	return Barcode{Kind: kind, Day: day, Suffix: suffix}, nil
}

// SuffixOf extracts the numeric suffix from a stored barcode
func SuffixOf(barcode string) (int, error) {
	if len(barcode) != BarcodeWidth {
		return 0, fmt.Errorf("barcode %q has width %d", barcode, len(barcode))
	}
	n, err := strconv.Atoi(barcode[BarcodeWidth-SuffixWidth:])
	if err != nil {
		return 0, fmt.Errorf("barcode %q has non-numeric suffix: %w", barcode, err)
	}
	return n, nil
}
