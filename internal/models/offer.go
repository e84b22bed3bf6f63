package models

import (
	"time"
)

// OfferStatus tracks an investor offer through its lifecycle.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusClosed   OfferStatus = "closed"
)

// OfferTerms are the loan terms an investor proposes against a pitch.
type OfferTerms struct {
	Principal         float64 `json:"principal"`
	InterestAnnualPct float64 `json:"interest_annual_pct"`
	TenureMonths      int     `json:"tenure_months"`
}

// Offer represents one investor's proposed terms against a pitch.
//
// CompositeScore is a derived view computed per ranking request; it is never
// persisted, since ranking weights may change between calls.
type Offer struct {
	ID                string      `bson:"_id" json:"id"`
	PitchID           string      `bson:"pitch_id" json:"pitch_id"`
	InvestorID        string      `bson:"investor_id" json:"investor_id"`
	Principal         float64     `bson:"principal" json:"principal"`
	InterestAnnualPct float64     `bson:"interest_annual_pct" json:"interest_annual_pct"`
	TenureMonths      int         `bson:"tenure_months" json:"tenure_months"`
	Status            OfferStatus `bson:"status" json:"status"`
	IsFinal           bool        `bson:"is_final" json:"is_final"`
	CompositeScore    *float64    `bson:"-" json:"composite_score,omitempty"`
	CreatedAt         time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `bson:"updated_at" json:"updated_at"`
}
