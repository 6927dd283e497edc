// Package protocol defines the JSON-RPC 2.0 methods served by misud and
// their parameter and result types.
package protocol

import (
	"time"

	"github.com/misu-units/misu/pkg/quantity"
)

const (
	MethodEval      = "units.eval"
	MethodParse     = "units.parse"
	MethodConvert   = "units.convert"
	MethodCategory  = "units.category"
	MethodFormat    = "units.format"
	MethodList      = "units.list"
	MethodRepresent = "units.represent"

	MethodWorksheetSet    = "worksheet.set"
	MethodWorksheetGet    = "worksheet.get"
	MethodWorksheetList   = "worksheet.list"
	MethodWorksheetDelete = "worksheet.delete"

	MethodHealth = "health"
)

// Error codes. The -320xx range is application defined.
const (
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
	CodeIncompatibleUnits = -32001
	CodeUncategorized     = -32002
	CodeParse             = -32003
	CodeUnknownUnit       = -32004
	CodeNotFound          = -32005
)

type EvalParams struct {
	Expr string `json:"expr"`
	// Format is an optional number spec such as ".3f".
	Format string `json:"format,omitempty"`
}

// QuantityResult is a quantity both rendered and in wire form. Category is
// empty when the dimension has none.
type QuantityResult struct {
	Text     string            `json:"text"`
	Quantity quantity.Quantity `json:"quantity"`
	Category string            `json:"category,omitempty"`
}

// ParseParams feeds the calculator grammar, e.g. "2 kg / 4 s".
type ParseParams struct {
	Input string `json:"input"`
}

type ParseResult struct {
	Magnitude float64        `json:"magnitude"`
	Units     string         `json:"units,omitempty"`
	Reduced   string         `json:"reduced"`
	Value     QuantityResult `json:"value"`
}

type ConvertParams struct {
	Expr string `json:"expr"`
	To   string `json:"to"`
}

type ConvertResult struct {
	Values []float64 `json:"values"`
	Text   string    `json:"text"`
}

type CategoryParams struct {
	Expr string `json:"expr"`
}

type CategoryResult struct {
	Category string `json:"category"`
}

type FormatParams struct {
	Expr string `json:"expr"`
	Spec string `json:"spec"`
}

type FormatResult struct {
	Text string `json:"text"`
}

type ListParams struct {
	// Category restricts the listing to units of one category.
	Category string `json:"category,omitempty"`
	// Prefixed includes generated SI-prefixed units.
	Prefixed bool `json:"prefixed,omitempty"`
}

type UnitInfo struct {
	Symbols  []string `json:"symbols"`
	Text     string   `json:"text"`
	Category string   `json:"category,omitempty"`
	Stem     string   `json:"stem,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

type ListResult struct {
	Units      []UnitInfo `json:"units"`
	Categories []string   `json:"categories"`
}

// RepresentParams changes how quantities with Unit's dimension render for
// every later request.
type RepresentParams struct {
	Unit   string  `json:"unit"`
	As     string  `json:"as"`
	Symbol string  `json:"symbol,omitempty"`
	Format string  `json:"format,omitempty"`
	Offset float64 `json:"offset,omitempty"`
}

type RepresentResult struct {
	Text string `json:"text"`
}

type WorksheetSetParams struct {
	Name string `json:"name"`
	Expr string `json:"expr"`
}

type WorksheetNameParams struct {
	Name string `json:"name"`
}

type WorksheetEntry struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Expr      string         `json:"expr"`
	Value     QuantityResult `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type WorksheetListResult struct {
	Entries []WorksheetEntry `json:"entries"`
}

type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Uptime     int64  `json:"uptime"`
	Units      int    `json:"units"`
	Categories int    `json:"categories"`
	Rules      int    `json:"rules"`
}
