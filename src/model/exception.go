package model

import "time"

// Exception records a best-effort failure that did not fail the request it
// happened in (margin recompute, ledger append, cache write).
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "lifecycle"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "margin"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Close"

	UserID *uint `gorm:"index" json:"user_id,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error
	Level string `gorm:"size:20;index" json:"level"`

	// JSON encoded request context
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
