package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/mastAk7/finvest/internal/models"
	"github.com/mastAk7/finvest/internal/ranking"
)

// --- Mocks for service interfaces used by the handlers ---

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, name, email, password string, role models.UserRole) (*models.User, error) {
	args := m.Called(ctx, name, email, password, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockPitchService implements services.IPitchService
type MockPitchService struct {
	mock.Mock
}

func (m *MockPitchService) CreatePitch(ctx context.Context, borrowerID, originalRequest string) (*models.Pitch, error) {
	args := m.Called(ctx, borrowerID, originalRequest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pitch), args.Error(1)
}

func (m *MockPitchService) FindPitchByID(ctx context.Context, pitchID string) (*models.Pitch, error) {
	args := m.Called(ctx, pitchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pitch), args.Error(1)
}

func (m *MockPitchService) ListPitchesByBorrower(ctx context.Context, borrowerID string) ([]models.Pitch, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Pitch), args.Error(1)
}

func (m *MockPitchService) ListOpenPitches(ctx context.Context, limit int) ([]models.Pitch, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Pitch), args.Error(1)
}

func (m *MockPitchService) ApplyGeneratedPitch(ctx context.Context, pitchID, generatedPitch string, extracted *models.ExtractedInfo) error {
	args := m.Called(ctx, pitchID, generatedPitch, extracted)
	return args.Error(0)
}

func (m *MockPitchService) RejectPitch(ctx context.Context, pitchID, reason string) error {
	args := m.Called(ctx, pitchID, reason)
	return args.Error(0)
}

// MockOfferService implements services.IOfferService
type MockOfferService struct {
	mock.Mock
}

func (m *MockOfferService) SubmitOffer(ctx context.Context, pitchID, investorID string, terms models.OfferTerms) (*models.Offer, error) {
	args := m.Called(ctx, pitchID, investorID, terms)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func (m *MockOfferService) FinalizeOffer(ctx context.Context, offerID, actingUserID string) (*models.Offer, *models.Pitch, error) {
	args := m.Called(ctx, offerID, actingUserID)
	var offer *models.Offer
	var pitch *models.Pitch
	if args.Get(0) != nil {
		offer = args.Get(0).(*models.Offer)
	}
	if args.Get(1) != nil {
		pitch = args.Get(1).(*models.Pitch)
	}
	return offer, pitch, args.Error(2)
}

func (m *MockOfferService) AcceptOffer(ctx context.Context, offerID, actingUserID string) (*models.Offer, *models.Pitch, error) {
	args := m.Called(ctx, offerID, actingUserID)
	var offer *models.Offer
	var pitch *models.Pitch
	if args.Get(0) != nil {
		offer = args.Get(0).(*models.Offer)
	}
	if args.Get(1) != nil {
		pitch = args.Get(1).(*models.Pitch)
	}
	return offer, pitch, args.Error(2)
}

func (m *MockOfferService) ListOffers(ctx context.Context, pitchID string, viewerRole models.UserRole, weights *ranking.Weights) ([]models.Offer, error) {
	args := m.Called(ctx, pitchID, viewerRole, weights)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Offer), args.Error(1)
}

func (m *MockOfferService) FindOfferByID(ctx context.Context, offerID string) (*models.Offer, error) {
	args := m.Called(ctx, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func (m *MockOfferService) ListOffersByPitch(ctx context.Context, pitchID string) ([]models.Offer, error) {
	args := m.Called(ctx, pitchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Offer), args.Error(1)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
