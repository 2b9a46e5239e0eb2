package server

import (
	"time"

	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

type EvaluateRequest struct {
	Partner   string `json:"partner"`
	Primary   []byte `json:"primary"`
	Secondary []byte `json:"secondary,omitempty"`
	// Threshold is a decimal string; empty uses the server default.
	Threshold string `json:"threshold,omitempty"`
}

type EvaluateResponse struct {
	RunID              string              `json:"run_id"`
	Partner            string              `json:"partner"`
	State              string              `json:"state"`
	InvoiceNumber      string              `json:"invoice_number,omitempty"`
	WithinThreshold    bool                `json:"within_threshold"`
	ParsedOK           bool                `json:"parsed_ok"`
	ComparisonPossible bool                `json:"comparison_possible"`
	DeltaSum           string              `json:"delta_sum"`
	Threshold          string              `json:"threshold"`
	Message            string              `json:"message"`
	Reaction           string              `json:"reaction,omitempty"`
	Rows               []entity.DeltaRow   `json:"rows,omitempty"`
	Diagnostics        []entity.Diagnostic `json:"diagnostics,omitempty"`
}

type ListRunsRequest struct {
	Partner string `json:"partner,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type RunSummary struct {
	ID                 string    `json:"id"`
	Partner            string    `json:"partner"`
	InvoiceNumber      string    `json:"invoice_number"`
	State              string    `json:"state"`
	DeltaSum           string    `json:"delta_sum"`
	NumRows            int       `json:"num_rows"`
	ParsedOK           bool      `json:"parsed_ok"`
	ComparisonPossible bool      `json:"comparison_possible"`
	WithinThreshold    bool      `json:"within_threshold"`
	Message            string    `json:"message"`
	CreatedAt          time.Time `json:"created_at"`
}

type ListRunsResponse struct {
	Runs []RunSummary `json:"runs"`
}
