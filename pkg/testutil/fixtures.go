package testutil

import (
	"time"

	"github.com/bagtrack/bagtrack-backend/pkg/clock"
)

// WarehouseZone is the zone the fixtures run the warehouse in
const WarehouseZone = "Asia/Kolkata"

// WarehouseLocation loads WarehouseZone or panics
func WarehouseLocation() *time.Location {
	loc, err := time.LoadLocation(WarehouseZone)
	if err != nil {
		panic(err)
	}
	return loc
}

// ClockAt returns a manual clock at the given warehouse-local wall time
func ClockAt(year int, month time.Month, day, hour, min int) *clock.Manual {
	return clock.NewManual(time.Date(year, month, day, hour, min, 0, 0, WarehouseLocation()))
}

// Party and master-data ids used across tests. They are opaque to the service.
const (
	PartyAcme    = "party-acme"
	PartyGlobex  = "party-globex"
	Weight50kg   = "weight-50kg"
	Weight25kg   = "weight-25kg"
	ItemCotton   = "item-cotton"
	GradeA       = "grade-a"
	GradeB       = "grade-b"
	SectionNorth = "section-north"
)
