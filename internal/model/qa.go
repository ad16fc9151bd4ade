package model

import "time"

// QADocument is an indexed context snippet for the report Q&A assistant.
// One document is written per completed audit run.
type QADocument struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
