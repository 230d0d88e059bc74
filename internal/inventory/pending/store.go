// Package pending holds scan confirmations that are waiting for an operator
// decision, keyed by scanning terminal.
package pending

import (
	"context"
	"time"
)

// Confirmation is a scan of an already opened bag awaiting confirm or cancel
type Confirmation struct {
	TerminalID string    `json:"terminal_id"`
	OperatorID string    `json:"operator_id"`
	UnitID     string    `json:"unit_id"`
	Barcode    string    `json:"barcode"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Store keeps at most one confirmation per terminal. Expired entries behave
// as if they were never stored.
type Store interface {
	// Put stores c, replacing any confirmation already held for the terminal
	Put(ctx context.Context, c Confirmation) error
	// Get returns the live confirmation for the terminal, or nil
	Get(ctx context.Context, terminalID string) (*Confirmation, error)
	// Delete discards the terminal's confirmation and reports whether a live one existed
	Delete(ctx context.Context, terminalID string) (bool, error)
}
