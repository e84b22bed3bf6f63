// Package pitchgen talks to the external pitch generation service, which
// rewrites a borrower's informal loan request into a professional pitch and
// extracts structured fields from it.
package pitchgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/mastAk7/finvest/internal/config"
	"github.com/mastAk7/finvest/internal/models"
)

// IClient defines the interface for the pitch generation service.
type IClient interface {
	GeneratePitch(ctx context.Context, text string) (*Result, error)
}

// Result is the generated pitch plus the fields the service extracted.
type Result struct {
	ProfessionalPitch string
	Extracted         models.ExtractedInfo
}

// serviceResponse is the wire shape the generation service returns.
type serviceResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		ProfessionalPitch string `json:"professional_pitch"`
		ExtractedInfo     struct {
			LoanAmount   string `json:"loan_amount"`
			Purpose      string `json:"purpose"`
			BusinessType string `json:"business_type"`
		} `json:"extracted_info"`
	} `json:"data"`
}

// client implements IClient.
type client struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewClient creates a new pitch generation client.
func NewClient(cfg *config.Config) IClient {
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.PitchGenTimeout},
	}
}

// GeneratePitch sends the raw request text to the generation service and
// returns the rewritten pitch.
func (c *client) GeneratePitch(ctx context.Context, text string) (*Result, error) {
	payload, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PitchGenURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create pitch generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pitch generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read pitch generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Pitch generation service returned status %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("pitch generation service returned status %d", resp.StatusCode)
	}

	var sr serviceResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode pitch generation response: %w", err)
	}
	if !sr.Success {
		return nil, fmt.Errorf("pitch generation service reported failure: %s", sr.Error)
	}

	return &Result{
		ProfessionalPitch: sr.Data.ProfessionalPitch,
		Extracted: models.ExtractedInfo{
			LoanAmount:   sr.Data.ExtractedInfo.LoanAmount,
			Purpose:      sr.Data.ExtractedInfo.Purpose,
			BusinessType: sr.Data.ExtractedInfo.BusinessType,
		},
	}, nil
}
