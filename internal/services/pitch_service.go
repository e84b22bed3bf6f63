package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mastAk7/finvest/internal/config"
	"github.com/mastAk7/finvest/internal/db"
	"github.com/mastAk7/finvest/internal/domain"
	"github.com/mastAk7/finvest/internal/models"
)

// IPitchService defines the interface for pitch operations.
type IPitchService interface {
	CreatePitch(ctx context.Context, borrowerID, originalRequest string) (*models.Pitch, error)
	FindPitchByID(ctx context.Context, pitchID string) (*models.Pitch, error)
	ListPitchesByBorrower(ctx context.Context, borrowerID string) ([]models.Pitch, error)
	ListOpenPitches(ctx context.Context, limit int) ([]models.Pitch, error)
	ApplyGeneratedPitch(ctx context.Context, pitchID, generatedPitch string, extracted *models.ExtractedInfo) error
	RejectPitch(ctx context.Context, pitchID, reason string) error
}

const pitchesCollection = "pitches"

// pitchService implements IPitchService.
type pitchService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewPitchService creates a new PitchService.
func NewPitchService(db *mongo.Database, cfg *config.Config) IPitchService {
	return &pitchService{db: db, cfg: cfg}
}

// CreatePitch records a borrower's informal loan request. The professional
// pitch text is filled in later by the background generation task.
func (s *pitchService) CreatePitch(ctx context.Context, borrowerID, originalRequest string) (*models.Pitch, error) {
	originalRequest = strings.TrimSpace(originalRequest)
	if originalRequest == "" {
		return nil, domain.E(domain.KindValidation, "original_request is required")
	}

	now := time.Now().UTC()
	pitch := &models.Pitch{
		ID:              uuid.NewString(),
		BorrowerID:      borrowerID,
		OriginalRequest: originalRequest,
		Status:          models.PitchStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	operation := func() error {
		_, insertErr := s.db.Collection(pitchesCollection).InsertOne(ctx, pitch)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert pitch for borrower %s: %w", borrowerID, err)
	}

	return pitch, nil
}

// FindPitchByID fetches a pitch by its ID.
func (s *pitchService) FindPitchByID(ctx context.Context, pitchID string) (*models.Pitch, error) {
	var pitch models.Pitch
	err := s.db.Collection(pitchesCollection).FindOne(ctx, bson.M{"_id": pitchID}).Decode(&pitch)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.Ef(domain.KindNotFound, "pitch %s not found", pitchID)
		}
		return nil, fmt.Errorf("error finding pitch by ID %s: %w", pitchID, err)
	}
	return &pitch, nil
}

// ListPitchesByBorrower returns a borrower's own pitches, newest first.
func (s *pitchService) ListPitchesByBorrower(ctx context.Context, borrowerID string) ([]models.Pitch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(pitchesCollection).Find(ctx, bson.M{"borrower_id": borrowerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pitches for borrower %s: %w", borrowerID, err)
	}
	defer cursor.Close(ctx)

	var pitches []models.Pitch
	if err = cursor.All(ctx, &pitches); err != nil {
		return nil, fmt.Errorf("failed to decode pitches for borrower %s: %w", borrowerID, err)
	}
	return pitches, nil
}

// ListOpenPitches returns pitches investors can still bid on, newest first.
func (s *pitchService) ListOpenPitches(ctx context.Context, limit int) ([]models.Pitch, error) {
	filter := bson.M{"status": bson.M{"$in": []models.PitchStatus{models.PitchStatusPending, models.PitchStatusOfferSent}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Collection(pitchesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list open pitches: %w", err)
	}
	defer cursor.Close(ctx)

	var pitches []models.Pitch
	if err = cursor.All(ctx, &pitches); err != nil {
		return nil, fmt.Errorf("failed to decode open pitches: %w", err)
	}
	return pitches, nil
}

// ApplyGeneratedPitch stores the text produced by the generation service.
// Status is untouched: generation can complete after offers have already
// started arriving.
func (s *pitchService) ApplyGeneratedPitch(ctx context.Context, pitchID, generatedPitch string, extracted *models.ExtractedInfo) error {
	update := bson.M{"$set": bson.M{
		"generated_pitch": generatedPitch,
		"extracted":       extracted,
		"updated_at":      time.Now().UTC(),
	}}

	result, err := s.db.Collection(pitchesCollection).UpdateOne(ctx, bson.M{"_id": pitchID}, update)
	if err != nil {
		return fmt.Errorf("db error applying generated pitch to %s: %w", pitchID, err)
	}
	if result.MatchedCount == 0 {
		return domain.Ef(domain.KindNotFound, "pitch %s not found", pitchID)
	}
	return nil
}

// RejectPitch marks a pitch as rejected. Used when pitch generation fails
// permanently; a rejected pitch accepts no offers.
func (s *pitchService) RejectPitch(ctx context.Context, pitchID, reason string) error {
	update := bson.M{"$set": bson.M{
		"status":     models.PitchStatusRejected,
		"updated_at": time.Now().UTC(),
	}}

	filter := bson.M{"_id": pitchID, "status": models.PitchStatusPending}
	result, err := s.db.Collection(pitchesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error rejecting pitch %s: %w", pitchID, err)
	}
	if result.MatchedCount == 0 {
		// Diagnose: missing vs already moved on
		var pitch models.Pitch
		checkErr := s.db.Collection(pitchesCollection).FindOne(ctx, bson.M{"_id": pitchID}).Decode(&pitch)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return domain.Ef(domain.KindNotFound, "pitch %s not found", pitchID)
		}
		return domain.Ef(domain.KindConflict, "pitch %s is not pending and cannot be rejected (status %s)", pitchID, pitch.Status)
	}
	return nil
}
