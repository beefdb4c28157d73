package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"ticketpesa/internal/config"
	"ticketpesa/internal/handlers"
	"ticketpesa/internal/middleware"
	"ticketpesa/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Create session store
	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400, // checkout sessions are short-lived
		HttpOnly: true,
		Secure:   cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}

	// Initialize the ticketing backend client
	apiClient := services.NewTicketingAPIClient(services.TicketingAPIConfig{
		BaseURL:     cfg.TicketingAPI.BaseURL,
		APIKey:      cfg.TicketingAPI.APIKey,
		Environment: cfg.TicketingAPI.Environment,
		Timeout:     cfg.TicketingAPI.Timeout,
	})

	if err := apiClient.TestConnection(context.Background()); err != nil {
		log.Printf("Warning: ticketing backend not reachable at startup: %v", err)
	} else {
		log.Printf("Connected to ticketing backend (%s environment)", cfg.TicketingAPI.Environment)
	}

	// Initialize services
	promoService := services.NewPromoService(apiClient)
	checkoutService := services.NewCheckoutService(apiClient, services.PollerConfig{
		Interval:    cfg.Payment.PollInterval,
		MaxAttempts: cfg.Payment.MaxPollAttempts,
	})

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, promoService, sessionStore)

	// Set up router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoggingMiddleware)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	r.Use(middleware.CORSMiddleware(corsConfig))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	checkoutHandler.RegisterRoutes(r)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on http://%s", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, r))
}
