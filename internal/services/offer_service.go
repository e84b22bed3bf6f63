package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mastAk7/finvest/internal/config"
	"github.com/mastAk7/finvest/internal/db"
	"github.com/mastAk7/finvest/internal/domain"
	"github.com/mastAk7/finvest/internal/models"
	"github.com/mastAk7/finvest/internal/ranking"
)

// IOfferService owns every status transition for offers and their effect on
// the parent pitch. Nothing else writes offer or pitch status fields.
type IOfferService interface {
	SubmitOffer(ctx context.Context, pitchID, investorID string, terms models.OfferTerms) (*models.Offer, error)
	FinalizeOffer(ctx context.Context, offerID, actingUserID string) (*models.Offer, *models.Pitch, error)
	AcceptOffer(ctx context.Context, offerID, actingUserID string) (*models.Offer, *models.Pitch, error)
	ListOffers(ctx context.Context, pitchID string, viewerRole models.UserRole, weights *ranking.Weights) ([]models.Offer, error)
	FindOfferByID(ctx context.Context, offerID string) (*models.Offer, error)
	ListOffersByPitch(ctx context.Context, pitchID string) ([]models.Offer, error)
}

const offersCollection = "offers"

// offerService implements IOfferService.
type offerService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client // optional ranked-list read cache; nil disables caching
}

// NewOfferService creates a new OfferService.
func NewOfferService(db *mongo.Database, cfg *config.Config, rdb *redis.Client) IOfferService {
	return &offerService{db: db, cfg: cfg, rdb: rdb}
}

func validateTerms(terms models.OfferTerms) error {
	if math.IsNaN(terms.Principal) || math.IsInf(terms.Principal, 0) || terms.Principal <= 0 {
		return domain.E(domain.KindValidation, "principal must be a positive number")
	}
	if math.IsNaN(terms.InterestAnnualPct) || math.IsInf(terms.InterestAnnualPct, 0) ||
		terms.InterestAnnualPct < 0 || terms.InterestAnnualPct > 100 {
		return domain.E(domain.KindValidation, "interest_annual_pct must be between 0 and 100")
	}
	if terms.TenureMonths <= 0 {
		return domain.E(domain.KindValidation, "tenure_months must be a positive integer")
	}
	return nil
}

// SubmitOffer creates an investor's offer on a pitch, or overwrites the
// investor's existing pending/closed offer in place, resetting it to pending
// and clearing any final flag. The unique (pitch_id, investor_id) index keeps
// concurrent submissions from the same investor converging on one document.
func (s *offerService) SubmitOffer(ctx context.Context, pitchID, investorID string, terms models.OfferTerms) (*models.Offer, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	pitch, err := s.findPitch(ctx, pitchID)
	if err != nil {
		return nil, err
	}
	if !pitch.Open() {
		return nil, domain.Ef(domain.KindConflict, "pitch %s is not open for offers (status %s)", pitchID, pitch.Status)
	}
	if s.cfg.BlockSubmitAfterFinal && pitch.FinalOfferID != nil {
		return nil, domain.Ef(domain.KindConflict, "pitch %s already has a final offer", pitchID)
	}

	collection := s.db.Collection(offersCollection)
	now := time.Now().UTC()

	var result *models.Offer
	for attempt := 0; attempt <= db.DefaultMaxRetries; attempt++ {
		// Re-submission path: overwrite the investor's live offer in place.
		filter := bson.M{
			"pitch_id":    pitchID,
			"investor_id": investorID,
			"status":      bson.M{"$in": []models.OfferStatus{models.OfferStatusPending, models.OfferStatusClosed}},
		}
		update := bson.M{"$set": bson.M{
			"principal":           terms.Principal,
			"interest_annual_pct": terms.InterestAnnualPct,
			"tenure_months":       terms.TenureMonths,
			"status":              models.OfferStatusPending,
			"is_final":            false,
			"updated_at":          now,
		}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		var updated models.Offer
		err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
		if err == nil {
			result = &updated
			break
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to update offer for investor %s on pitch %s: %w", investorID, pitchID, err)
		}

		// First submission path.
		newOffer := &models.Offer{
			ID:                uuid.NewString(),
			PitchID:           pitchID,
			InvestorID:        investorID,
			Principal:         terms.Principal,
			InterestAnnualPct: terms.InterestAnnualPct,
			TenureMonths:      terms.TenureMonths,
			Status:            models.OfferStatusPending,
			IsFinal:           false,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		_, err = collection.InsertOne(ctx, newOffer)
		if err == nil {
			result = newOffer
			break
		}
		if !db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to insert offer for investor %s on pitch %s: %w", investorID, pitchID, err)
		}
		// A concurrent submission from the same investor won the insert;
		// loop back and overwrite it instead.
	}
	if result == nil {
		return nil, fmt.Errorf("failed to submit offer for investor %s on pitch %s after retries: %w", investorID, pitchID, err)
	}

	if s.cfg.BlockSubmitAfterFinal {
		if err := s.revokeIfSettled(ctx, pitchID, result); err != nil {
			return nil, err
		}
	}

	s.invalidateRankedCache(ctx, pitchID)
	return result, nil
}

// revokeIfSettled undoes a submission that raced a finalization. The open
// check runs before the offer write, so a concurrent FinalizeOffer can land
// in between and leave a fresh pending offer on a settled pitch. Re-reading
// the pitch after the write closes that window: one of the two operations
// always observes the other's write.
func (s *offerService) revokeIfSettled(ctx context.Context, pitchID string, offer *models.Offer) error {
	pitch, err := s.findPitch(ctx, pitchID)
	if err != nil {
		return err
	}
	if pitch.FinalOfferID == nil {
		return nil
	}

	now := time.Now().UTC()
	if *pitch.FinalOfferID == offer.ID {
		// The investor overwrote their own offer while it was being
		// finalized. The pitch still points at it, so realign the flag
		// rather than close the pitch's final offer.
		_, uerr := s.db.Collection(offersCollection).UpdateOne(ctx,
			bson.M{"_id": offer.ID},
			bson.M{"$set": bson.M{"is_final": true, "updated_at": now}})
		if uerr != nil {
			log.Printf("CRITICAL: pitch %s points at final offer %s with is_final unset, and realigning failed: %v", pitchID, offer.ID, uerr)
		}
	} else {
		_, uerr := s.db.Collection(offersCollection).UpdateOne(ctx,
			bson.M{"_id": offer.ID, "status": models.OfferStatusPending},
			bson.M{"$set": bson.M{"status": models.OfferStatusClosed, "updated_at": now}})
		if uerr != nil {
			log.Printf("CRITICAL: offer %s landed on settled pitch %s and closing it failed: %v", offer.ID, pitchID, uerr)
		}
	}

	s.invalidateRankedCache(ctx, pitchID)
	return domain.Ef(domain.KindConflict, "pitch %s already has a final offer", pitchID)
}

// FinalizeOffer flags the target offer as the single final offer for its
// pitch and closes every other pending offer. Only the offer's investor may
// finalize it. The conditional update on the pitch document is the
// serialization point: of two concurrent finalizations, exactly one matches
// the "no final offer yet" filter and the loser gets Conflict.
func (s *offerService) FinalizeOffer(ctx context.Context, offerID, actingUserID string) (*models.Offer, *models.Pitch, error) {
	offer, err := s.FindOfferByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.InvestorID != actingUserID {
		return nil, nil, domain.E(domain.KindForbidden, "only the offer's investor can finalize it")
	}
	if offer.Status != models.OfferStatusPending {
		return nil, nil, domain.Ef(domain.KindConflict, "offer %s is %s and cannot be finalized", offerID, offer.Status)
	}

	now := time.Now().UTC()
	pitchColl := s.db.Collection(pitchesCollection)
	pitchFilter := bson.M{
		"_id":         offer.PitchID,
		"status":      models.PitchStatusPending,
		"final_offer": bson.M{"$exists": false},
	}
	pitchUpdate := bson.M{"$set": bson.M{
		"status":      models.PitchStatusOfferSent,
		"final_offer": offerID,
		"updated_at":  now,
	}}

	result, err := pitchColl.UpdateOne(ctx, pitchFilter, pitchUpdate)
	if err != nil {
		return nil, nil, fmt.Errorf("db error finalizing offer %s on pitch %s: %w", offerID, offer.PitchID, err)
	}
	if result.MatchedCount == 0 {
		// Diagnose why the conditional update missed.
		var pitch models.Pitch
		checkErr := pitchColl.FindOne(ctx, bson.M{"_id": offer.PitchID}).Decode(&pitch)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return nil, nil, domain.Ef(domain.KindNotFound, "pitch %s not found", offer.PitchID)
		}
		if checkErr == nil && pitch.FinalOfferID != nil {
			return nil, nil, domain.Ef(domain.KindConflict, "pitch %s already has a final offer", offer.PitchID)
		}
		return nil, nil, domain.Ef(domain.KindConflict, "pitch %s is not accepting a final offer", offer.PitchID)
	}

	offerColl := s.db.Collection(offersCollection)
	_, err = offerColl.UpdateOne(ctx, bson.M{"_id": offerID}, bson.M{"$set": bson.M{"is_final": true, "updated_at": now}})
	if err != nil {
		log.Printf("CRITICAL: pitch %s marked offer_sent with final offer %s, but failed to flag the offer: %v", offer.PitchID, offerID, err)
		return nil, nil, fmt.Errorf("failed to flag offer %s as final: %w", offerID, err)
	}

	siblingFilter := bson.M{
		"pitch_id": offer.PitchID,
		"_id":      bson.M{"$ne": offerID},
		"status":   models.OfferStatusPending,
	}
	_, err = offerColl.UpdateMany(ctx, siblingFilter, bson.M{"$set": bson.M{"status": models.OfferStatusClosed, "updated_at": now}})
	if err != nil {
		log.Printf("CRITICAL: offer %s finalized on pitch %s, but failed to close sibling offers: %v", offerID, offer.PitchID, err)
		return nil, nil, fmt.Errorf("failed to close sibling offers on pitch %s: %w", offer.PitchID, err)
	}

	s.invalidateRankedCache(ctx, offer.PitchID)

	offer.IsFinal = true
	offer.UpdatedAt = now
	pitch, err := s.findPitch(ctx, offer.PitchID)
	if err != nil {
		return nil, nil, err
	}
	return offer, pitch, nil
}

// AcceptOffer is the borrower's decision: the target offer becomes accepted,
// every sibling offer becomes rejected regardless of prior state, and the
// pitch moves to approved. Rejections leave no side effects.
func (s *offerService) AcceptOffer(ctx context.Context, offerID, actingUserID string) (*models.Offer, *models.Pitch, error) {
	offer, err := s.FindOfferByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	pitch, err := s.findPitch(ctx, offer.PitchID)
	if err != nil {
		return nil, nil, err
	}
	if pitch.BorrowerID != actingUserID {
		return nil, nil, domain.E(domain.KindForbidden, "only the pitch's borrower can accept an offer")
	}
	if offer.Status != models.OfferStatusPending {
		return nil, nil, domain.Ef(domain.KindConflict, "offer %s is %s and cannot be accepted", offerID, offer.Status)
	}

	now := time.Now().UTC()
	pitchColl := s.db.Collection(pitchesCollection)
	pitchFilter := bson.M{
		"_id":    pitch.ID,
		"status": bson.M{"$in": []models.PitchStatus{models.PitchStatusPending, models.PitchStatusOfferSent}},
	}
	pitchUpdate := bson.M{"$set": bson.M{
		"status":     models.PitchStatusApproved,
		"updated_at": now,
	}}

	result, err := pitchColl.UpdateOne(ctx, pitchFilter, pitchUpdate)
	if err != nil {
		return nil, nil, fmt.Errorf("db error accepting offer %s on pitch %s: %w", offerID, pitch.ID, err)
	}
	if result.MatchedCount == 0 {
		return nil, nil, domain.Ef(domain.KindConflict, "pitch %s is not awaiting a decision (status %s)", pitch.ID, pitch.Status)
	}

	offerColl := s.db.Collection(offersCollection)
	_, err = offerColl.UpdateOne(ctx, bson.M{"_id": offerID}, bson.M{"$set": bson.M{"status": models.OfferStatusAccepted, "updated_at": now}})
	if err != nil {
		log.Printf("CRITICAL: pitch %s approved, but failed to mark offer %s accepted: %v", pitch.ID, offerID, err)
		return nil, nil, fmt.Errorf("failed to mark offer %s accepted: %w", offerID, err)
	}

	siblingFilter := bson.M{
		"pitch_id": pitch.ID,
		"_id":      bson.M{"$ne": offerID},
	}
	_, err = offerColl.UpdateMany(ctx, siblingFilter, bson.M{"$set": bson.M{"status": models.OfferStatusRejected, "updated_at": now}})
	if err != nil {
		log.Printf("CRITICAL: offer %s accepted on pitch %s, but failed to reject sibling offers: %v", offerID, pitch.ID, err)
		return nil, nil, fmt.Errorf("failed to reject sibling offers on pitch %s: %w", pitch.ID, err)
	}

	s.invalidateRankedCache(ctx, pitch.ID)

	offer.Status = models.OfferStatusAccepted
	offer.UpdatedAt = now
	pitch.Status = models.PitchStatusApproved
	pitch.UpdatedAt = now
	return offer, pitch, nil
}

// ListOffers returns the competitive view of a pitch's offers (pending and
// accepted only) ordered by the ranking function. Scores are recomputed per
// call; the Redis cache only short-circuits repeat reads under the default
// weights and is invalidated by every lifecycle write.
func (s *offerService) ListOffers(ctx context.Context, pitchID string, viewerRole models.UserRole, weights *ranking.Weights) ([]models.Offer, error) {
	if !models.ValidRole(viewerRole) {
		return nil, domain.Ef(domain.KindValidation, "unknown viewer role %q", viewerRole)
	}

	if _, err := s.findPitch(ctx, pitchID); err != nil {
		return nil, err
	}

	w := ranking.Weights{Principal: s.cfg.RankWPrincipal, Interest: s.cfg.RankWInterest}
	useCache := weights == nil && s.rdb != nil
	if weights != nil {
		w = *weights
	}

	if useCache {
		if cached, ok := s.readRankedCache(ctx, pitchID); ok {
			return cached, nil
		}
	}

	filter := bson.M{
		"pitch_id": pitchID,
		"status":   bson.M{"$in": []models.OfferStatus{models.OfferStatusPending, models.OfferStatusAccepted}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(offersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for pitch %s: %w", pitchID, err)
	}
	defer cursor.Close(ctx)

	var offers []models.Offer
	if err = cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode offers for pitch %s: %w", pitchID, err)
	}

	ranked, err := ranking.Rank(offers, w, s.cfg.TieBreakFirstBidder)
	if err != nil {
		return nil, err
	}

	if useCache {
		s.writeRankedCache(ctx, pitchID, ranked)
	}
	return ranked, nil
}

// FindOfferByID fetches an offer by its ID.
func (s *offerService) FindOfferByID(ctx context.Context, offerID string) (*models.Offer, error) {
	var offer models.Offer
	err := s.db.Collection(offersCollection).FindOne(ctx, bson.M{"_id": offerID}).Decode(&offer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.Ef(domain.KindNotFound, "offer %s not found", offerID)
		}
		return nil, fmt.Errorf("error finding offer by ID %s: %w", offerID, err)
	}
	return &offer, nil
}

// ListOffersByPitch returns every offer on a pitch regardless of status,
// oldest first. Used by notification tasks, not by the ranking view.
func (s *offerService) ListOffersByPitch(ctx context.Context, pitchID string) ([]models.Offer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(offersCollection).Find(ctx, bson.M{"pitch_id": pitchID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers for pitch %s: %w", pitchID, err)
	}
	defer cursor.Close(ctx)

	var offers []models.Offer
	if err = cursor.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode offers for pitch %s: %w", pitchID, err)
	}
	return offers, nil
}

func (s *offerService) findPitch(ctx context.Context, pitchID string) (*models.Pitch, error) {
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

func rankedCacheKey(pitchID string) string {
	return "offers:ranked:" + pitchID
}

func (s *offerService) readRankedCache(ctx context.Context, pitchID string) ([]models.Offer, bool) {
	data, err := s.rdb.Get(ctx, rankedCacheKey(pitchID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("WARN: failed to read ranked offer cache for pitch %s: %v", pitchID, err)
		}
		return nil, false
	}
	var offers []models.Offer
	if err := json.Unmarshal([]byte(data), &offers); err != nil {
		log.Printf("WARN: failed to decode ranked offer cache for pitch %s: %v", pitchID, err)
		return nil, false
	}
	return offers, true
}

func (s *offerService) writeRankedCache(ctx context.Context, pitchID string, offers []models.Offer) {
	data, err := json.Marshal(offers)
	if err != nil {
		log.Printf("WARN: failed to encode ranked offer cache for pitch %s: %v", pitchID, err)
		return
	}
	if err := s.rdb.Set(ctx, rankedCacheKey(pitchID), data, s.cfg.OfferCacheTTL).Err(); err != nil {
		log.Printf("WARN: failed to write ranked offer cache for pitch %s: %v", pitchID, err)
	}
}

func (s *offerService) invalidateRankedCache(ctx context.Context, pitchID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, rankedCacheKey(pitchID)).Err(); err != nil {
		log.Printf("WARN: failed to invalidate ranked offer cache for pitch %s: %v", pitchID, err)
	}
}
