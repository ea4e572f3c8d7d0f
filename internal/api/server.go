// Package api is the HTTP surface of the rental backend: the REST API, the
// PayMongo proxy and webhook, and health endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hanapbahay/internal/config"
	"hanapbahay/internal/export"
	"hanapbahay/internal/models"
	"hanapbahay/internal/paymongo"
	"hanapbahay/internal/service"

	"github.com/rs/zerolog"
)

// Pinger reports database readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of the HTTP server. PayMongo, Verifier and
// Exporter are optional.
type Deps struct {
	Listings      *service.ListingService
	Bookings      *service.BookingService
	Payments      *service.PaymentService
	Conversations *service.ConversationService
	Accounts      *service.AccountService
	Exporter      *export.LedgerExporter
	PayMongo      *paymongo.Client
	Verifier      *paymongo.Verifier
	DB            Pinger
}

type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	auth   *HTTPAuth
	logger *zerolog.Logger
	mux    *http.ServeMux
	server *http.Server
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) (*HTTPServer, error) {
	srv := &HTTPServer{
		cfg:    cfg,
		deps:   deps,
		auth:   NewHTTPAuth(cfg),
		logger: logger,
		mux:    http.NewServeMux(),
	}

	if err := srv.routes(); err != nil {
		return nil, err
	}

	readTimeout := cfg.HTTP.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.HTTP.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
	return srv, nil
}

// Handler returns the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return loggingMiddleware(s.logger, s.auth.Wrap(s.mux))
}

func (s *HTTPServer) handle(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, instrument(pattern, h))
}

func (s *HTTPServer) routes() error {
	s.handle("GET /health", s.handleHealth)
	s.handle("GET /healthz", s.handleHealth)
	s.handle("GET /readyz", s.handleReady)
	s.handle("GET /payment-return", s.handlePaymentReturn)
	s.handle("POST /webhooks/paymongo", s.handleWebhook)

	if s.deps.PayMongo != nil {
		proxy, err := s.deps.PayMongo.Proxy(paymongoPrefix, s.logger)
		if err != nil {
			return fmt.Errorf("failed to build PayMongo proxy: %w", err)
		}
		s.handle(paymongoPrefix+"/", requireActor(proxy.ServeHTTP))
	}

	s.handle("GET /api/v1/listings", s.handleSearchListings)
	s.handle("POST /api/v1/listings", requireActor(s.handleCreateListing))
	s.handle("GET /api/v1/listings/{id}", s.handleGetListing)
	s.handle("PUT /api/v1/listings/{id}", requireActor(s.handleUpdateListing))
	s.handle("DELETE /api/v1/listings/{id}", requireActor(s.handleRemoveListing))
	s.handle("POST /api/v1/listings/{id}/publish", requireActor(s.handlePublishListing))
	s.handle("POST /api/v1/listings/{id}/unlist", requireActor(s.handleUnlistListing))
	s.handle("GET /api/v1/me/listings", requireActor(s.handleOwnListings))

	s.handle("POST /api/v1/bookings", requireActor(s.handleRequestBooking))
	s.handle("GET /api/v1/bookings", requireActor(s.handleListBookings))
	s.handle("GET /api/v1/bookings/{id}", requireActor(s.handleGetBooking))
	s.handle("POST /api/v1/bookings/{id}/approve", requireActor(s.handleApproveBooking))
	s.handle("POST /api/v1/bookings/{id}/reject", requireActor(s.handleRejectBooking))
	s.handle("POST /api/v1/bookings/{id}/cancel", requireActor(s.handleCancelBooking))
	s.handle("POST /api/v1/bookings/{id}/complete", requireActor(s.handleCompleteBooking))
	s.handle("GET /api/v1/bookings/{id}/payments", requireActor(s.handleBookingPayments))
	s.handle("GET /api/v1/bookings/{id}/next-due", requireActor(s.handleNextDue))
	s.handle("GET /api/v1/bookings/{id}/ledger/verify", requireActor(s.handleVerifyLedger))
	s.handle("POST /api/v1/bookings/{id}/ledger/repair", requireActor(s.handleRepairLedger))

	s.handle("GET /api/v1/payments", requireActor(s.handleListPayments))
	s.handle("GET /api/v1/payments/{id}", requireActor(s.handleGetPayment))
	s.handle("GET /api/v1/payments/{id}/audit", requireActor(s.handlePaymentAudit))
	s.handle("POST /api/v1/payments/{id}/submit", requireActor(s.handleSubmitPayment))
	s.handle("POST /api/v1/payments/{id}/confirm", requireActor(s.handleConfirmPayment))
	s.handle("POST /api/v1/payments/{id}/reject", requireActor(s.handleRejectPayment))
	s.handle("POST /api/v1/payments/{id}/checkout", requireActor(s.handleCheckout))

	s.handle("GET /api/v1/conversations", requireActor(s.handleListConversations))
	s.handle("POST /api/v1/conversations", requireActor(s.handleStartConversation))
	s.handle("GET /api/v1/conversations/{id}/messages", requireActor(s.handleListMessages))
	s.handle("POST /api/v1/conversations/{id}/messages", requireActor(s.handleSendMessage))
	s.handle("POST /api/v1/conversations/{id}/read", requireActor(s.handleMarkRead))

	s.handle("POST /api/v1/users", s.handleRegister)
	s.handle("GET /api/v1/users/{id}", requireActor(s.handleGetUser))
	s.handle("PUT /api/v1/users/{id}", requireActor(s.handleUpdateUser))
	s.handle("POST /api/v1/me/telegram", requireActor(s.handleLinkTelegram))
	s.handle("PUT /api/v1/me/profile", requireActor(s.handleUpsertProfile))
	s.handle("GET /api/v1/me/ledger.xlsx", requireActor(s.handleExportLedger))
	s.handle("GET /api/v1/owners/{id}/profile", s.handleGetProfile)
	s.handle("GET /api/v1/owners/{id}/accounts", s.handleListAccounts)
	s.handle("GET /api/v1/owners/{id}/summary", requireActor(s.handleOwnerSummary))
	s.handle("POST /api/v1/accounts", requireActor(s.handleCreateAccount))
	s.handle("PUT /api/v1/accounts/{id}", requireActor(s.handleUpdateAccount))
	s.handle("DELETE /api/v1/accounts/{id}", requireActor(s.handleDeleteAccount))

	s.handle("POST /api/v1/admin/sweep", requireActor(s.handleSweep))
	s.handle("POST /api/v1/admin/reminders", requireActor(s.handleReminders))
	return nil
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// actor returns the request actor, or the zero actor for anonymous calls.
func actor(r *http.Request) service.Actor {
	a, _ := actorFrom(r.Context())
	return a
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.DB.PingContext(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "database"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	if !actor(r).IsAdmin() {
		s.writeServiceError(w, r, service.ErrForbidden)
		return
	}
	n, err := s.deps.Payments.SweepOverdue(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *HTTPServer) handleReminders(w http.ResponseWriter, r *http.Request) {
	if !actor(r).IsAdmin() {
		s.writeServiceError(w, r, service.ErrForbidden)
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("days") == "" {
		days = models.DefaultReminderDays
	}
	n, err := s.deps.Payments.SendReminders(r.Context(), int(days))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": n})
}
