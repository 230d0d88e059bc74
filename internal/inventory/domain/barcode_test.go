package domain_test

import (
	"testing"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBarcode(t *testing.T) {
	day := time.Date(2025, 1, 23, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		kind   domain.Kind
		suffix int
		want   string
	}{
		{domain.KindImportBag, 1, "I2501230001"},
		{domain.KindImportBag, 42, "I2501230042"},
		{domain.KindGradedBag, 9999, "G2501239999"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.FormatBarcode(tt.kind, day, tt.suffix))
		})
	}
}

func TestParseBarcode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    domain.Barcode
		wantErr bool
	}{
		{name: "import bag", input: "I2501230001", want: domain.Barcode{Kind: domain.KindImportBag, Day: "250123", Suffix: 1}},
		{name: "graded bag", input: "G2412319999", want: domain.Barcode{Kind: domain.KindGradedBag, Day: "241231", Suffix: 9999}},
		{name: "unknown prefix", input: "X2501230001", wantErr: true},
		{name: "lowercase prefix", input: "i2501230001", wantErr: true},
		{name: "too short", input: "I250123001", wantErr: true},
		{name: "too long", input: "I25012300001", wantErr: true},
		{name: "not a date", input: "I2513400001", wantErr: true},
		{name: "zero suffix", input: "I2501230000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseBarcode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuffixOf(t *testing.T) {
	n, err := domain.SuffixOf("I2501230107")
	require.NoError(t, err)
	assert.Equal(t, 107, n)

	_, err = domain.SuffixOf("I25012301")
	assert.Error(t, err)
}

func TestKindPrefixRoundTrip(t *testing.T) {
	for _, k := range []domain.Kind{domain.KindImportBag, domain.KindGradedBag} {
		got, ok := domain.KindForPrefix(k.Prefix()[0])
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := domain.KindForPrefix('Z')
	assert.False(t, ok)
}
