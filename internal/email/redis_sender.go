package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mastAk7/finvest/internal/config"
)

// RedisSender implements the Sender interface by storing emails in Redis.
// Used when MOCK_SERVICES is enabled so integration tests can fetch the
// notifications the system would have sent.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender.
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a representation of the email in Redis instead of sending it.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	// Derive the action type from the subject so tests can key on it.
	actionType := "unknown"
	switch {
	case strings.Contains(subject, "Final Offer"):
		actionType = ActionOfferFinalized
	case strings.Contains(subject, "Accepted"):
		actionType = ActionOfferAccepted
	case strings.Contains(subject, "Not Selected"):
		actionType = ActionOfferRejected
	}

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":         strings.Join(to, ", "),
		"from":       s.cfg.SmtpFromAddress,
		"subject":    subject,
		"body":       string(rawMessage),
		"sent_at":    time.Now().UTC().Format(time.RFC3339Nano),
		"actionType": actionType,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := fmt.Sprintf("mockemail:%s:%s", primaryTo, actionType)
	ttl := 5 * time.Minute

	err = s.client.Set(ctx, key, jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, ttl, strings.Join(to, ", "), subject)
	return nil
}
