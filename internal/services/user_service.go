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

	"github.com/mastAk7/finvest/internal/auth"
	"github.com/mastAk7/finvest/internal/db"
	"github.com/mastAk7/finvest/internal/domain"
	"github.com/mastAk7/finvest/internal/models"
)

// IUserService defines the interface for user account operations.
type IUserService interface {
	Register(ctx context.Context, name, email, password string, role models.UserRole) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// Register creates a new borrower or investor account.
func (s *userService) Register(ctx context.Context, name, email, password string, role models.UserRole) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, domain.E(domain.KindValidation, "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.E(domain.KindValidation, "a valid email is required")
	}
	if len(password) < 8 {
		return nil, domain.E(domain.KindValidation, "password must be at least 8 characters")
	}
	if !models.ValidRole(role) {
		return nil, domain.Ef(domain.KindValidation, "role must be %q or %q", models.RoleBorrower, models.RoleInvestor)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", email, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.Collection(usersCollection).InsertOne(ctx, user)
	if err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, domain.E(domain.KindConflict, "email already registered")
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
	}

	return user, nil
}

// Authenticate verifies credentials and returns the matching user.
// It deliberately returns the same error for unknown email and wrong password.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.E(domain.KindUnauthorized, "invalid email or password")
		}
		return nil, fmt.Errorf("error finding user by email: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, domain.E(domain.KindUnauthorized, "invalid email or password")
	}

	return &user, nil
}

// FindUserByID fetches a user by its ID.
func (s *userService) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.Ef(domain.KindNotFound, "user %s not found", userID)
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID, err)
	}
	return &user, nil
}
