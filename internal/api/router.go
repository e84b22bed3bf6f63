package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mastAk7/finvest/internal/api/handlers"
	"github.com/mastAk7/finvest/internal/api/middleware"
	"github.com/mastAk7/finvest/internal/config"
	"github.com/mastAk7/finvest/internal/models"
	"github.com/mastAk7/finvest/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient) *gin.Engine {
	// Initialize services needed by API handlers
	userService := services.NewUserService(db)
	pitchService := services.NewPitchService(db, cfg)
	offerService := services.NewOfferService(db, cfg, rdb)

	r := gin.Default()

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	restUserHandler := handlers.NewRestUserHandler(userService, cfg)
	restPitchHandler := handlers.NewRestPitchHandler(pitchService, taskClient)
	restOfferHandler := handlers.NewRestOfferHandler(offerService, taskClient)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.POST("/auth/register", restUserHandler.Register)
		v1.POST("/auth/login", restUserHandler.Login)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/pitch", restPitchHandler.ListPitches)
			authRequired.GET("/pitch/:id", restPitchHandler.GetPitchByID)
			authRequired.GET("/pitch/:id/offers", restOfferHandler.ListOffers)

			// Borrower-only routes
			borrowerOnly := authRequired.Group("/", middleware.RequireRole(models.RoleBorrower))
			{
				borrowerOnly.POST("/pitch", restPitchHandler.CreatePitch)
				borrowerOnly.POST("/offer/:id/accept", restOfferHandler.AcceptOffer)
			}

			// Investor-only routes
			investorOnly := authRequired.Group("/", middleware.RequireRole(models.RoleInvestor))
			{
				investorOnly.POST("/pitch/:id/offer", restOfferHandler.SubmitOffer)
				investorOnly.POST("/offer/:id/finalize", restOfferHandler.FinalizeOffer)
			}
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine used by
// integration tooling. It exposes shutdown and, when mock services are on,
// retrieval of stored test emails.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["action_type", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [actionType, email]"})
				return
			}
			actionType := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, actionType)

			// Poll Redis briefly for the key; the sending task may still be
			// in flight when the test asks.
			var emailJSONData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				emailJSONData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJSONData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
