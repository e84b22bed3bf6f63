package models

import (
	"time"
)

// PitchStatus tracks where a loan request is in its life.
type PitchStatus string

const (
	PitchStatusPending   PitchStatus = "pending"
	PitchStatusApproved  PitchStatus = "approved"
	PitchStatusRejected  PitchStatus = "rejected"
	PitchStatusOfferSent PitchStatus = "offer_sent"
)

// ExtractedInfo holds the structured fields pulled out of the borrower's
// informal request by the pitch generation service. All values are opaque
// strings; the service decides their format.
type ExtractedInfo struct {
	LoanAmount   string `bson:"loan_amount" json:"loan_amount"`
	Purpose      string `bson:"purpose" json:"purpose"`
	BusinessType string `bson:"business_type" json:"business_type"`
}

// Pitch represents one borrower loan request.
//
// FinalOfferID is set only when an investor has finalized an offer for this
// pitch (status offer_sent or approved). The conditional update that sets it
// is what guarantees at most one final offer per pitch.
type Pitch struct {
	ID              string         `bson:"_id" json:"id"`
	BorrowerID      string         `bson:"borrower_id" json:"borrower_id"`
	OriginalRequest string         `bson:"original_request" json:"original_request"`
	GeneratedPitch  string         `bson:"generated_pitch" json:"generated_pitch"`
	Extracted       *ExtractedInfo `bson:"extracted,omitempty" json:"extracted,omitempty"`
	Status          PitchStatus    `bson:"status" json:"status"`
	FinalOfferID    *string        `bson:"final_offer,omitempty" json:"final_offer,omitempty"`
	CreatedAt       time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at" json:"updated_at"`
}

// Open reports whether the pitch still accepts competitive offers.
func (p *Pitch) Open() bool {
	return p.Status == PitchStatusPending || p.Status == PitchStatusOfferSent
}
