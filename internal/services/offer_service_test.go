package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mastAk7/finvest/internal/domain"
	"github.com/mastAk7/finvest/internal/models"
	"github.com/mastAk7/finvest/internal/ranking"
)

func terms(principal, interest float64, tenure int) models.OfferTerms {
	return models.OfferTerms{Principal: principal, InterestAnnualPct: interest, TenureMonths: tenure}
}

func seedPitch(t *testing.T, testDb *mongo.Database, borrowerID string) *models.Pitch {
	t.Helper()
	pitch, err := NewPitchService(testDb, testServiceConfig()).CreatePitch(context.Background(), borrowerID, "need 50k for my tea stall")
	require.NoError(t, err)
	return pitch
}

func TestOfferService_SubmitOffer(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_submit")
	svc := NewOfferService(testDb, testServiceConfig(), nil)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	offer, err := svc.SubmitOffer(ctx, pitch.ID, "investor-1", terms(50000, 12, 24))
	require.NoError(t, err)
	assert.NotEmpty(t, offer.ID)
	assert.Equal(t, models.OfferStatusPending, offer.Status)
	assert.False(t, offer.IsFinal)

	// Resubmission by the same investor overwrites the same offer document
	replacement, err := svc.SubmitOffer(ctx, pitch.ID, "investor-1", terms(60000, 11, 36))
	require.NoError(t, err)
	assert.Equal(t, offer.ID, replacement.ID)
	assert.Equal(t, 60000.0, replacement.Principal)
	assert.Equal(t, 36, replacement.TenureMonths)

	// A different investor gets a separate offer
	other, err := svc.SubmitOffer(ctx, pitch.ID, "investor-2", terms(40000, 10, 12))
	require.NoError(t, err)
	assert.NotEqual(t, offer.ID, other.ID)

	all, err := svc.ListOffersByPitch(ctx, pitch.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOfferService_SubmitOffer_Validation(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_val")
	svc := NewOfferService(testDb, testServiceConfig(), nil)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	cases := []struct {
		name  string
		terms models.OfferTerms
	}{
		{"zero principal", terms(0, 12, 24)},
		{"negative principal", terms(-5, 12, 24)},
		{"interest above 100", terms(50000, 101, 24)},
		{"negative interest", terms(50000, -1, 24)},
		{"zero tenure", terms(50000, 12, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitOffer(ctx, pitch.ID, "investor-1", tc.terms)
			assert.True(t, domain.IsKind(err, domain.KindValidation), "expected validation error, got %v", err)
		})
	}

	_, err := svc.SubmitOffer(ctx, "missing", "investor-1", terms(50000, 12, 24))
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestOfferService_FinalizeOffer(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_finalize")
	svc := NewOfferService(testDb, testServiceConfig(), nil)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	offerA, err := svc.SubmitOffer(ctx, pitch.ID, "investor-a", terms(50000, 12, 24))
	require.NoError(t, err)
	offerB, err := svc.SubmitOffer(ctx, pitch.ID, "investor-b", terms(60000, 14, 24))
	require.NoError(t, err)

	// Only the offer's own investor may finalize
	_, _, err = svc.FinalizeOffer(ctx, offerA.ID, "investor-b")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	finalized, updatedPitch, err := svc.FinalizeOffer(ctx, offerA.ID, "investor-a")
	require.NoError(t, err)
	assert.True(t, finalized.IsFinal)
	assert.Equal(t, models.PitchStatusOfferSent, updatedPitch.Status)
	require.NotNil(t, updatedPitch.FinalOfferID)
	assert.Equal(t, offerA.ID, *updatedPitch.FinalOfferID)

	// The competing offer was closed
	closed, err := svc.FindOfferByID(ctx, offerB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusClosed, closed.Status)

	// A second finalization on the same pitch loses
	_, _, err = svc.FinalizeOffer(ctx, offerB.ID, "investor-b")
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	// With the final offer in place, new submissions are blocked
	_, err = svc.SubmitOffer(ctx, pitch.ID, "investor-c", terms(70000, 9, 24))
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestOfferService_SubmitOffer_FinalizeInterleaved(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_interleave")
	svc := NewOfferService(testDb, testServiceConfig(), nil).(*offerService)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	offerA, err := svc.SubmitOffer(ctx, pitch.ID, "investor-a", terms(50000, 12, 24))
	require.NoError(t, err)
	_, _, err = svc.FinalizeOffer(ctx, offerA.ID, "investor-a")
	require.NoError(t, err)

	// Stage the document a concurrent submission would have written after
	// passing the open check but before the finalization landed.
	now := time.Now().UTC()
	late := &models.Offer{
		ID:                uuid.NewString(),
		PitchID:           pitch.ID,
		InvestorID:        "investor-c",
		Principal:         70000,
		InterestAnnualPct: 9,
		TenureMonths:      24,
		Status:            models.OfferStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err = testDb.Collection(offersCollection).InsertOne(ctx, late)
	require.NoError(t, err)

	// The post-write guard must close the late offer and report Conflict
	err = svc.revokeIfSettled(ctx, pitch.ID, late)
	assert.True(t, domain.IsKind(err, domain.KindConflict), "expected conflict, got %v", err)

	closed, err := svc.FindOfferByID(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusClosed, closed.Status)

	// The competitive view still contains only the final offer
	ranked, err := svc.ListOffers(ctx, pitch.ID, models.RoleBorrower, nil)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, offerA.ID, ranked[0].ID)

	// A pitch with no final offer leaves the submission untouched
	openPitch := seedPitch(t, testDb, "borrower-2")
	fresh, err := svc.SubmitOffer(ctx, openPitch.ID, "investor-d", terms(30000, 10, 12))
	require.NoError(t, err)
	require.NoError(t, svc.revokeIfSettled(ctx, openPitch.ID, fresh))
	kept, err := svc.FindOfferByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, kept.Status)
}

func TestOfferService_AcceptOffer(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_accept")
	svc := NewOfferService(testDb, testServiceConfig(), nil).(*offerService)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	offerA, err := svc.SubmitOffer(ctx, pitch.ID, "investor-a", terms(50000, 12, 24))
	require.NoError(t, err)
	offerB, err := svc.SubmitOffer(ctx, pitch.ID, "investor-b", terms(60000, 14, 24))
	require.NoError(t, err)

	_, _, err = svc.FinalizeOffer(ctx, offerA.ID, "investor-a")
	require.NoError(t, err)

	// Only the borrower can accept; a rejected attempt leaves no side effects
	_, _, err = svc.AcceptOffer(ctx, offerA.ID, "investor-a")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
	unchanged, err := svc.findPitch(ctx, pitch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PitchStatusOfferSent, unchanged.Status)

	accepted, approvedPitch, err := svc.AcceptOffer(ctx, offerA.ID, "borrower-1")
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, accepted.Status)
	assert.Equal(t, models.PitchStatusApproved, approvedPitch.Status)

	// Every sibling ends up rejected, including already-closed ones
	rejected, err := svc.FindOfferByID(ctx, offerB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusRejected, rejected.Status)

	// Accepting twice is a conflict
	_, _, err = svc.AcceptOffer(ctx, offerA.ID, "borrower-1")
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	// The approved pitch takes no further offers
	_, err = svc.SubmitOffer(ctx, pitch.ID, "investor-c", terms(70000, 9, 24))
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestOfferService_ListOffers(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_list")
	svc := NewOfferService(testDb, testServiceConfig(), nil)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	// Higher principal at the same interest should rank first
	_, err := svc.SubmitOffer(ctx, pitch.ID, "investor-low", terms(40000, 12, 24))
	require.NoError(t, err)
	_, err = svc.SubmitOffer(ctx, pitch.ID, "investor-high", terms(60000, 12, 24))
	require.NoError(t, err)

	offers, err := svc.ListOffers(ctx, pitch.ID, models.RoleInvestor, nil)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "investor-high", offers[0].InvestorID)
	require.NotNil(t, offers[0].CompositeScore)
	require.NotNil(t, offers[1].CompositeScore)
	assert.Greater(t, *offers[0].CompositeScore, *offers[1].CompositeScore)

	// Interest-only weights flip the order: lower interest wins
	_, err = svc.SubmitOffer(ctx, pitch.ID, "investor-cheap", terms(10000, 8, 24))
	require.NoError(t, err)
	offers, err = svc.ListOffers(ctx, pitch.ID, models.RoleBorrower, &ranking.Weights{Principal: 0, Interest: 1})
	require.NoError(t, err)
	require.Len(t, offers, 3)
	assert.Equal(t, "investor-cheap", offers[0].InvestorID)

	_, err = svc.ListOffers(ctx, "missing", models.RoleInvestor, nil)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	_, err = svc.ListOffers(ctx, pitch.ID, models.UserRole("admin"), nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestOfferService_ListOffers_ExcludesClosedAndRejected(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_offers_list_filter")
	svc := NewOfferService(testDb, testServiceConfig(), nil)
	ctx := context.Background()
	pitch := seedPitch(t, testDb, "borrower-1")

	offerA, err := svc.SubmitOffer(ctx, pitch.ID, "investor-a", terms(50000, 12, 24))
	require.NoError(t, err)
	_, err = svc.SubmitOffer(ctx, pitch.ID, "investor-b", terms(60000, 14, 24))
	require.NoError(t, err)

	_, _, err = svc.FinalizeOffer(ctx, offerA.ID, "investor-a")
	require.NoError(t, err)

	// investor-b's offer is closed and drops out of the competitive view
	offers, err := svc.ListOffers(ctx, pitch.ID, models.RoleInvestor, nil)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, offerA.ID, offers[0].ID)

	// After acceptance the accepted offer is still visible
	_, _, err = svc.AcceptOffer(ctx, offerA.ID, "borrower-1")
	require.NoError(t, err)
	offers, err = svc.ListOffers(ctx, pitch.ID, models.RoleBorrower, nil)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, models.OfferStatusAccepted, offers[0].Status)
}
