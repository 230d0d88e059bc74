// Package domain holds the unit model shared by the inventory repositories,
// services and handlers.
package domain

import (
	"time"
)

// Kind identifies the type of physical unit
type Kind string

const (
	KindImportBag Kind = "import_bag"
	KindGradedBag Kind = "graded_bag"
)

// Valid reports whether k is a known unit kind
func (k Kind) Valid() bool {
	return k == KindImportBag || k == KindGradedBag
}

// Status is the lifecycle state of an import bag
type Status string

const (
	StatusUnopened Status = "unopened"
	StatusOpened   Status = "opened"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusUnopened || s == StatusOpened
}

// ChangeSource records what caused a status write
type ChangeSource string

const (
	SourceScan    ChangeSource = "scan"
	SourceConfirm ChangeSource = "confirm"
	SourceManual  ChangeSource = "manual"
)

// DateLayout is the storage and wire form of created_on
const DateLayout = "2006-01-02"

// UnitBase carries the fields every unit has
type UnitBase struct {
	ID        string    `db:"id" json:"id"`
	Kind      Kind      `db:"kind" json:"kind"`
	Barcode   string    `db:"barcode" json:"barcode"`
	CreatedOn string    `db:"created_on" json:"created_on"`
	PartyID   string    `db:"party_id" json:"party_id"`
	WeightID  string    `db:"weight_id" json:"weight_id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Unit is either an *ImportBag or a *GradedBag
type Unit interface {
	Core() *UnitBase
	isUnit()
}

// Core returns the shared fields
func (b *UnitBase) Core() *UnitBase { return b }

// ImportBag is a bag as received from a party. Only import bags have a status.
type ImportBag struct {
	UnitBase
	ImportID string `json:"import_id"`
	Status   Status `json:"status"`
}

func (*ImportBag) isUnit() {}

// GradedBag is a bag produced by grading. It has no status dimension.
type GradedBag struct {
	UnitBase
	ItemID    string  `json:"item_id"`
	GradeID   string  `json:"grade_id"`
	SectionID *string `json:"section_id,omitempty"`
}

func (*GradedBag) isUnit() {}

// Import records an arrival of goods from a party; import bags hang off it
type Import struct {
	ID         string    `db:"id" json:"id"`
	PartyID    string    `db:"party_id" json:"party_id"`
	Reference  *string   `db:"reference" json:"reference,omitempty"`
	ReceivedOn string    `db:"received_on" json:"received_on"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StatusChange is one audited status write
type StatusChange struct {
	ID         string       `db:"id" json:"id"`
	UnitID     string       `db:"unit_id" json:"unit_id"`
	FromStatus Status       `db:"from_status" json:"from_status"`
	ToStatus   Status       `db:"to_status" json:"to_status"`
	Source     ChangeSource `db:"source" json:"source"`
	ChangedBy  string       `db:"changed_by" json:"changed_by"`
	ChangedAt  time.Time    `db:"changed_at" json:"changed_at"`
}

// StockCategory buckets units in the stock read model
type StockCategory string

const (
	StockImport    StockCategory = "import"
	StockInProcess StockCategory = "in_process"
	StockGraded    StockCategory = "graded"
)

// StockLevel is one row of the stock read model. ItemID and GradeID are empty
// for import and in-process stock.
type StockLevel struct {
	Category   StockCategory `db:"category" json:"category"`
	PartyID    string        `db:"party_id" json:"party_id"`
	ItemID     string        `db:"item_id" json:"item_id,omitempty"`
	GradeID    string        `db:"grade_id" json:"grade_id,omitempty"`
	WeightID   string        `db:"weight_id" json:"weight_id"`
	Bags       int           `db:"bags" json:"bags"`
	ComputedAt time.Time     `db:"computed_at" json:"computed_at"`
}
