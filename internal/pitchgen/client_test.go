package pitchgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastAk7/finvest/internal/config"
)

func newTestClient(url string) IClient {
	return NewClient(&config.Config{
		PitchGenURL:     url,
		PitchGenTimeout: 5 * time.Second,
	})
}

func TestGeneratePitch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "need 50k for my tea stall", req["text"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"professional_pitch": "Seeking INR 50,000 to expand an established tea stall.",
				"extracted_info": map[string]string{
					"loan_amount":   "50000",
					"purpose":       "expansion",
					"business_type": "tea stall",
				},
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).GeneratePitch(context.Background(), "need 50k for my tea stall")
	require.NoError(t, err)
	assert.Equal(t, "Seeking INR 50,000 to expand an established tea stall.", result.ProfessionalPitch)
	assert.Equal(t, "50000", result.Extracted.LoanAmount)
	assert.Equal(t, "expansion", result.Extracted.Purpose)
	assert.Equal(t, "tea stall", result.Extracted.BusinessType)
}

func TestGeneratePitch_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "Failed to parse model response as JSON",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GeneratePitch(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to parse model response as JSON")
}

func TestGeneratePitch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GeneratePitch(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
