package services

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mastAk7/finvest/internal/config"
	"github.com/mastAk7/finvest/internal/db"
)

var testMongoURI string

func init() {
	// Get current file path
	_, filename, _, _ := runtime.Caller(0)
	// Try to load .env from project root (2 levels up from this file)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		// Try current directory as fallback
		godotenv.Load()
	}

	testMongoURI = os.Getenv("MONGO_URI_TEST")
}

// setupTestDB connects to the test MongoDB, wipes the collections this
// package writes to, and installs the indexes the services rely on.
// Tests are skipped when MONGO_URI_TEST is not set.
func setupTestDB(t *testing.T, dbName string) *mongo.Database {
	if testMongoURI == "" {
		t.Skip("MONGO_URI_TEST not set; skipping MongoDB-backed test")
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	testDb := client.Database(dbName)
	_ = testDb.Collection(usersCollection).Drop(context.Background())
	_ = testDb.Collection(pitchesCollection).Drop(context.Background())
	_ = testDb.Collection(offersCollection).Drop(context.Background())
	require.NoError(t, db.EnsureIndexes(context.Background(), testDb))
	return testDb
}

// testServiceConfig returns the default lifecycle policy used by tests.
func testServiceConfig() *config.Config {
	return &config.Config{
		RankWPrincipal:        0.6,
		RankWInterest:         0.4,
		TieBreakFirstBidder:   true,
		BlockSubmitAfterFinal: true,
	}
}
