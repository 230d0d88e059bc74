package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Unit events
	EventUnitsCreated      = "inventory.units.created"
	EventUnitStatusChanged = "inventory.unit.status_changed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeDeadLetter      = "inventory.dlx"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// UnitsCreatedEvent is published once per committed create or bulk create
type UnitsCreatedEvent struct {
	Kind      string   `json:"kind"`
	PartyID   string   `json:"party_id"`
	ImportID  string   `json:"import_id,omitempty"`
	CreatedOn string   `json:"created_on"`
	UnitIDs   []string `json:"unit_ids"`
	Barcodes  []string `json:"barcodes"`
}

// UnitStatusChangedEvent is published after a committed status transition
type UnitStatusChangedEvent struct {
	UnitID     string    `json:"unit_id"`
	Barcode    string    `json:"barcode"`
	PartyID    string    `json:"party_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Source     string    `json:"source"`
	ChangedBy  string    `json:"changed_by"`
	TerminalID string    `json:"terminal_id,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
