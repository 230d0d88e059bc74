package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	start := time.Date(2025, 1, 23, 10, 0, 0, 0, time.UTC)
	c := NewManual(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	next := time.Date(2025, 1, 24, 0, 0, 0, 0, time.UTC)
	c.Set(next)
	assert.Equal(t, next, c.Now())
}

func TestLocalDate_CrossesDayInWarehouseZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	assert.NoError(t, err)

	// 20:00 UTC is already 01:30 the next day in Kolkata
	utc := time.Date(2025, 1, 22, 20, 0, 0, 0, time.UTC)
	day := LocalDate(utc, kolkata)

	assert.Equal(t, "2025-01-23", day.Format("2006-01-02"))
	assert.Equal(t, 0, day.Hour())
}
