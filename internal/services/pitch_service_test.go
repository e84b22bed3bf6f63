package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastAk7/finvest/internal/domain"
	"github.com/mastAk7/finvest/internal/models"
)

func TestPitchService_CreateAndFind(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_pitches")
	svc := NewPitchService(testDb, testServiceConfig())
	ctx := context.Background()

	pitch, err := svc.CreatePitch(ctx, "borrower-1", "  need 50k for my tea stall  ")
	require.NoError(t, err)
	assert.NotEmpty(t, pitch.ID)
	assert.Equal(t, models.PitchStatusPending, pitch.Status)
	assert.Equal(t, "need 50k for my tea stall", pitch.OriginalRequest)
	assert.Empty(t, pitch.GeneratedPitch)
	assert.Nil(t, pitch.FinalOfferID)

	found, err := svc.FindPitchByID(ctx, pitch.ID)
	require.NoError(t, err)
	assert.Equal(t, pitch.ID, found.ID)

	_, err = svc.CreatePitch(ctx, "borrower-1", "   ")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestPitchService_ApplyGeneratedPitch(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_pitches_gen")
	svc := NewPitchService(testDb, testServiceConfig())
	ctx := context.Background()

	pitch, err := svc.CreatePitch(ctx, "borrower-1", "need 50k for my tea stall")
	require.NoError(t, err)

	extracted := &models.ExtractedInfo{
		LoanAmount:   "50000",
		Purpose:      "working capital",
		BusinessType: "tea stall",
	}
	err = svc.ApplyGeneratedPitch(ctx, pitch.ID, "A growing tea stall seeks working capital.", extracted)
	require.NoError(t, err)

	updated, err := svc.FindPitchByID(ctx, pitch.ID)
	require.NoError(t, err)
	assert.Equal(t, "A growing tea stall seeks working capital.", updated.GeneratedPitch)
	require.NotNil(t, updated.Extracted)
	assert.Equal(t, "50000", updated.Extracted.LoanAmount)
	// Status is untouched by text generation
	assert.Equal(t, models.PitchStatusPending, updated.Status)

	err = svc.ApplyGeneratedPitch(ctx, "missing", "text", nil)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestPitchService_RejectPitch(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_pitches_rej")
	svc := NewPitchService(testDb, testServiceConfig())
	ctx := context.Background()

	pitch, err := svc.CreatePitch(ctx, "borrower-1", "need 50k for my tea stall")
	require.NoError(t, err)

	require.NoError(t, svc.RejectPitch(ctx, pitch.ID, "pitch generation failed"))

	rejected, err := svc.FindPitchByID(ctx, pitch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PitchStatusRejected, rejected.Status)

	// A pitch that already left pending cannot be rejected again
	err = svc.RejectPitch(ctx, pitch.ID, "again")
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	err = svc.RejectPitch(ctx, "missing", "whatever")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestPitchService_ListOpenPitches(t *testing.T) {
	testDb := setupTestDB(t, "finvest_test_pitches_open")
	svc := NewPitchService(testDb, testServiceConfig())
	ctx := context.Background()

	open, err := svc.CreatePitch(ctx, "borrower-1", "open request")
	require.NoError(t, err)
	closedOut, err := svc.CreatePitch(ctx, "borrower-2", "soon rejected")
	require.NoError(t, err)
	require.NoError(t, svc.RejectPitch(ctx, closedOut.ID, "generation failed"))

	pitches, err := svc.ListOpenPitches(ctx, 50)
	require.NoError(t, err)
	require.Len(t, pitches, 1)
	assert.Equal(t, open.ID, pitches[0].ID)

	mine, err := svc.ListPitchesByBorrower(ctx, "borrower-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, closedOut.ID, mine[0].ID)
}
