package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mastAk7/finvest/internal/config"
	"github.com/mastAk7/finvest/internal/email"
	"github.com/mastAk7/finvest/internal/models"
	"github.com/mastAk7/finvest/internal/pitchgen"
	"github.com/mastAk7/finvest/internal/services"
)

// Background task types.
const (
	TypePitchGenerate  = "pitch:generate"
	TypeOfferFinalized = "offer:finalized:notify"
	TypeOfferAccepted  = "offer:accepted:notify"
)

// PitchGeneratePayload identifies the pitch whose text needs generating.
type PitchGeneratePayload struct {
	PitchID string `json:"pitch_id"`
}

// OfferEventPayload identifies an offer lifecycle event to notify about.
type OfferEventPayload struct {
	OfferID string `json:"offer_id"`
	PitchID string `json:"pitch_id"`
}

// NewPitchGenerateTask creates a task that generates the professional pitch
// text for a newly created pitch.
func NewPitchGenerateTask(pitchID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PitchGeneratePayload{PitchID: pitchID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pitch generate payload: %w", err)
	}
	return asynq.NewTask(TypePitchGenerate, payload, asynq.MaxRetry(5)), nil
}

// NewOfferFinalizedTask creates a task that notifies the borrower a final
// offer has been sent.
func NewOfferFinalizedTask(offerID, pitchID string) (*asynq.Task, error) {
	payload, err := json.Marshal(OfferEventPayload{OfferID: offerID, PitchID: pitchID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer finalized payload: %w", err)
	}
	return asynq.NewTask(TypeOfferFinalized, payload, asynq.MaxRetry(3)), nil
}

// NewOfferAcceptedTask creates a task that notifies investors of the
// borrower's decision.
func NewOfferAcceptedTask(offerID, pitchID string) (*asynq.Task, error) {
	payload, err := json.Marshal(OfferEventPayload{OfferID: offerID, PitchID: pitchID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer accepted payload: %w", err)
	}
	return asynq.NewTask(TypeOfferAccepted, payload, asynq.MaxRetry(3)), nil
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg          *config.Config
	emailSender  email.Sender
	pitchService services.IPitchService
	offerService services.IOfferService
	userService  services.IUserService
	pitchGen     pitchgen.IClient
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	pitchService services.IPitchService,
	offerService services.IOfferService,
	userService services.IUserService,
	pitchGen pitchgen.IClient,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:          cfg,
		emailSender:  emailSender,
		pitchService: pitchService,
		offerService: offerService,
		userService:  userService,
		pitchGen:     pitchGen,
	}
}

// HandlePitchGenerateTask calls the pitch generation service and stores the
// result on the pitch. If generation keeps failing, the pitch is rejected so
// it does not sit in pending forever.
func (p *TaskProcessor) HandlePitchGenerateTask(ctx context.Context, t *asynq.Task) error {
	var payload PitchGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal pitch generate payload: %v: %w", err, asynq.SkipRetry)
	}

	pitch, err := p.pitchService.FindPitchByID(ctx, payload.PitchID)
	if err != nil {
		return fmt.Errorf("pitch %s not found for generation: %v: %w", payload.PitchID, err, asynq.SkipRetry)
	}

	result, err := p.pitchGen.GeneratePitch(ctx, pitch.OriginalRequest)
	if err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			log.Printf("Pitch generation for %s failed on final attempt, rejecting pitch: %v", payload.PitchID, err)
			if rejErr := p.pitchService.RejectPitch(ctx, payload.PitchID, "pitch generation failed"); rejErr != nil {
				log.Printf("WARN: failed to reject pitch %s after generation failure: %v", payload.PitchID, rejErr)
			}
		}
		return fmt.Errorf("pitch generation for %s failed: %w", payload.PitchID, err)
	}

	if err := p.pitchService.ApplyGeneratedPitch(ctx, payload.PitchID, result.ProfessionalPitch, &result.Extracted); err != nil {
		return fmt.Errorf("failed to apply generated pitch to %s: %w", payload.PitchID, err)
	}

	log.Printf("Generated pitch text for pitch %s", payload.PitchID)
	return nil
}

// HandleOfferFinalizedTask emails the borrower that a final offer was sent.
func (p *TaskProcessor) HandleOfferFinalizedTask(ctx context.Context, t *asynq.Task) error {
	var payload OfferEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal offer finalized payload: %v: %w", err, asynq.SkipRetry)
	}

	pitch, err := p.pitchService.FindPitchByID(ctx, payload.PitchID)
	if err != nil {
		return fmt.Errorf("pitch %s not found for finalized notification: %v: %w", payload.PitchID, err, asynq.SkipRetry)
	}
	offer, err := p.offerService.FindOfferByID(ctx, payload.OfferID)
	if err != nil {
		return fmt.Errorf("offer %s not found for finalized notification: %v: %w", payload.OfferID, err, asynq.SkipRetry)
	}
	borrower, err := p.userService.FindUserByID(ctx, pitch.BorrowerID)
	if err != nil {
		return fmt.Errorf("borrower %s not found for finalized notification: %v: %w", pitch.BorrowerID, err, asynq.SkipRetry)
	}

	subject := fmt.Sprintf("%s: Final Offer Received for Your Loan Request", p.cfg.AppName)
	body := fmt.Sprintf(
		"Hi %s,\r\n\r\nAn investor has sent a final offer on your loan request:\r\n\r\nPrincipal: %.2f\r\nAnnual interest: %.2f%%\r\nTenure: %d months\r\n\r\nLog in to accept or decline the offer.",
		borrower.Name, offer.Principal, offer.InterestAnnualPct, offer.TenureMonths,
	)
	msg := email.BuildMessage(p.cfg.SmtpFromAddress, borrower.Email, subject, body)

	if err := p.emailSender.Send(ctx, []string{borrower.Email}, subject, msg); err != nil {
		return fmt.Errorf("failed to send finalized notification for offer %s: %w", payload.OfferID, err)
	}
	return nil
}

// HandleOfferAcceptedTask emails every investor on the pitch with the
// borrower's decision.
func (p *TaskProcessor) HandleOfferAcceptedTask(ctx context.Context, t *asynq.Task) error {
	var payload OfferEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal offer accepted payload: %v: %w", err, asynq.SkipRetry)
	}

	offers, err := p.offerService.ListOffersByPitch(ctx, payload.PitchID)
	if err != nil {
		return fmt.Errorf("failed to list offers for accepted notification on pitch %s: %w", payload.PitchID, err)
	}

	for _, offer := range offers {
		investor, err := p.userService.FindUserByID(ctx, offer.InvestorID)
		if err != nil {
			log.Printf("WARN: investor %s not found for accepted notification on pitch %s: %v", offer.InvestorID, payload.PitchID, err)
			continue
		}

		var subject, body string
		if offer.Status == models.OfferStatusAccepted {
			subject = fmt.Sprintf("%s: Your Offer Was Accepted", p.cfg.AppName)
			body = fmt.Sprintf("Hi %s,\r\n\r\nThe borrower accepted your offer of %.2f at %.2f%% over %d months.",
				investor.Name, offer.Principal, offer.InterestAnnualPct, offer.TenureMonths)
		} else {
			subject = fmt.Sprintf("%s: Your Offer Was Not Selected", p.cfg.AppName)
			body = fmt.Sprintf("Hi %s,\r\n\r\nThe borrower went with a different offer on this loan request. Your offer is no longer active.",
				investor.Name)
		}

		msg := email.BuildMessage(p.cfg.SmtpFromAddress, investor.Email, subject, body)
		if err := p.emailSender.Send(ctx, []string{investor.Email}, subject, msg); err != nil {
			// One failed recipient should not block the rest.
			log.Printf("WARN: failed to send decision notification to %s: %v", investor.Email, err)
		}
	}
	return nil
}

// NewServer creates an asynq server backed by the given Redis client.
func NewServer(rdb *redis.Client) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		asynq.Config{
			Concurrency: 10,
		},
	)
}

// NewMux registers the task handlers.
func NewMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePitchGenerate, processor.HandlePitchGenerateTask)
	mux.HandleFunc(TypeOfferFinalized, processor.HandleOfferFinalizedTask)
	mux.HandleFunc(TypeOfferAccepted, processor.HandleOfferAcceptedTask)
	return mux
}
