// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestType classifies a dossier; it selects the complexity formula.
type RequestType string

// Request types.
const (
	SparePart RequestType = "SparePart"
	Market    RequestType = "Market"
	Equipment RequestType = "Equipment"
)

// RequestTypes lists every known type in display order.
var RequestTypes = []RequestType{SparePart, Market, Equipment} //nolint:gochecknoglobals // enum listing

// ParseRequestType accepts the English names (any case) and the labels used
// by the buyers' office ("Pièce de rechange", "Marché", "Equipement").
// An empty string means SparePart.
func ParseRequestType(s string) (RequestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sparepart", "spare_part", "spare-part", "pièce de rechange", "piece de rechange":
		return SparePart, nil
	case "market", "marché", "marche":
		return Market, nil
	case "equipment", "equipement", "équipement":
		return Equipment, nil
	}
	return "", ErrInvalidType
}

// Status is the lifecycle state of a dossier.
type Status string

// Lifecycle states.
const (
	StatusDraft     Status = "Draft"
	StatusActive    Status = "Active"
	StatusClosed    Status = "Closed"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{StatusDraft, StatusActive, StatusClosed, StatusCancelled} //nolint:gochecknoglobals // enum listing

// ParseStatus accepts the English names (any case) and the office labels
// "Brouillon", "Affecté", "Fermé", "Annulé".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft", "brouillon":
		return StatusDraft, nil
	case "active", "affecté", "affecte":
		return StatusActive, nil
	case "closed", "fermé", "ferme":
		return StatusClosed, nil
	case "cancelled", "canceled", "annulé", "annule":
		return StatusCancelled, nil
	}
	return "", ErrInvalidStatus
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanTransition reports whether a dossier may move from one state to another.
// Draft -> Active|Cancelled, Active -> Closed|Cancelled; terminal states are final.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusActive || to == StatusCancelled
	case StatusActive:
		return to == StatusClosed || to == StatusCancelled
	default:
		return false
	}
}

// Request is a procurement dossier.
type Request struct {
	Code             string
	Description      string
	Type             RequestType
	Articles         int
	ForeignSuppliers int
	TotalSuppliers   int
	EffortLevel      int // 1..5 for Market, 0 when not given
	Buyer            string
	Status           Status
	// Complexity is scored once at creation and never recomputed so that
	// workload sums stay stable.
	Complexity      float64
	AssignedAt      time.Time
	ClosedAt        *time.Time
	TenderType      string
	Currency        string
	EstimatedAmount decimal.Decimal
}

// Assigned reports whether the dossier has a buyer.
func (r *Request) Assigned() bool {
	return r.Buyer != ""
}

// Buyer is a member of the buying team; Name is the identifier.
type Buyer struct {
	Name  string
	Email string
}

// Tender procedure types.
const (
	TenderOpen       = "AO Ouvert"
	TenderRestricted = "AO Restreint"
	TenderOther      = "Autre"
)

// Currencies accepted for the estimated amount.
var Currencies = []string{"MAD", "EUR", "USD", "GBP", "Autre"} //nolint:gochecknoglobals // enum listing

// DefaultCurrency is used when a dossier does not name one.
const DefaultCurrency = "MAD"

// ValidCurrency reports whether c is one of Currencies.
func ValidCurrency(c string) bool {
	for _, known := range Currencies {
		if c == known {
			return true
		}
	}
	return false
}

// ValidTenderType reports whether t is a known tender procedure (empty allowed).
func ValidTenderType(t string) bool {
	switch t {
	case "", TenderOpen, TenderRestricted, TenderOther:
		return true
	}
	return false
}
