package serve

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/message"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httphandler"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/middleware"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

const ServiceID = "serve"

// The processor retries undelivered webhooks with backoff, so throttling a
// burst delays processing instead of losing events.
const (
	webhookRateLimitRequests = 120
	webhookRateLimitWindow   = time.Minute
)

type HTTPServerInterface interface {
	Run(conf supporthttp.Config)
}

type HTTPServer struct{}

func (h *HTTPServer) Run(conf supporthttp.Config) {
	supporthttp.Run(conf)
}

type ServeOptions struct {
	Environment              string
	GitCommit                string
	Port                     int
	Version                  string
	MonitorService           monitor.MonitorServiceInterface
	DatabaseDSN              string
	dbConnectionPool         db.DBConnectionPool
	EC256PublicKey           string
	EC256PrivateKey          string
	Models                   *data.Models
	CorsAllowedOrigins       []string
	jwtManager               *auth.JWTManager
	EmailMessengerClient     message.MessengerClient
	BaseURL                  string
	CrashTrackerClient       crashtracker.CrashTrackerClient
	ProcessorBaseURL         string
	ProcessorSecretKey       string
	ProcessorPublicKey       string
	processorClient          paystack.ClientInterface
	Currency                 string
	PlatformFeeRate          decimal.Decimal
	BankMainAccountID        string
	DefaultPayoutMethod      data.PayoutMethod
	BatchExecuteTimeout      time.Duration
	EnableScheduler          bool
	notificationService      services.NotificationServiceInterface
	paymentIntentService     *services.PaymentIntentService
	paymentManagementService *services.PaymentManagementService
	cashPaymentService       *services.CashPaymentService
	payoutService            *services.PayoutService
	batchExportService       *services.BatchExportService
	settlementService        *services.SettlementService
	receiptService           *services.ReceiptService
	webhookIngestService     *services.WebhookIngestService
}

// SetupDependencies uses the serve options to setup the dependencies for the server.
func (opts *ServeOptions) SetupDependencies() error {
	// Setup crash tracker:
	// Call crash tracker FlushEvents to flush buffered events before the server terminates
	defer opts.CrashTrackerClient.FlushEvents(2 * time.Second)
	// Call crash tracker Recover for recover from unhandled panics
	defer opts.CrashTrackerClient.Recover()
	// Set crash tracker LogAndReportErrors as DefaultReportErrorFunc
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	// Setup Database:
	dbConnectionPool, err := db.OpenDBConnectionPoolWithMetrics(opts.DatabaseDSN, opts.MonitorService)
	if err != nil {
		return fmt.Errorf("error connecting to the database: %w", err)
	}
	opts.Models, err = data.NewModels(dbConnectionPool)
	if err != nil {
		return fmt.Errorf("error creating models for Serve: %w", err)
	}
	opts.dbConnectionPool = dbConnectionPool

	// Setup the JWT manager that authenticates API callers:
	opts.jwtManager, err = auth.NewJWTManager(opts.EC256PublicKey, opts.EC256PrivateKey)
	if err != nil {
		return fmt.Errorf("error creating JWT manager: %w", err)
	}

	// Setup the payment processor client:
	if opts.processorClient == nil {
		opts.processorClient = paystack.NewClient(opts.ProcessorBaseURL, opts.ProcessorSecretKey)
	}

	// Setup the money services. The payout service doubles as the payout
	// completer for webhook dispatch and batch execution.
	callbackURL := strings.TrimSuffix(opts.BaseURL, "/") + "/payments/callback"
	opts.notificationService = services.NewNotificationService(opts.EmailMessengerClient, opts.Models)
	opts.paymentIntentService = services.NewPaymentIntentService(opts.Models, dbConnectionPool, opts.processorClient, opts.PlatformFeeRate, opts.Currency, callbackURL)
	opts.paymentManagementService = services.NewPaymentManagementService(opts.Models, dbConnectionPool)
	opts.cashPaymentService = services.NewCashPaymentService(opts.Models, dbConnectionPool, opts.notificationService)
	opts.payoutService = services.NewPayoutService(opts.Models, dbConnectionPool, opts.processorClient, opts.notificationService, opts.DefaultPayoutMethod, opts.BankMainAccountID)
	opts.batchExportService = services.NewBatchExportService(opts.Models, dbConnectionPool, opts.payoutService, opts.notificationService, opts.BatchExecuteTimeout)
	opts.settlementService = services.NewSettlementService(opts.Models, dbConnectionPool, opts.CrashTrackerClient, opts.BankMainAccountID, opts.Currency)
	opts.receiptService = services.NewReceiptService(opts.Models, dbConnectionPool)
	opts.webhookIngestService = services.NewWebhookIngestService(opts.Models, dbConnectionPool, opts.ProcessorSecretKey, opts.payoutService, opts.notificationService, opts.CrashTrackerClient)

	return nil
}

func Serve(opts ServeOptions, httpServer HTTPServerInterface) error {
	err := opts.SetupDependencies()
	if err != nil {
		return fmt.Errorf("error starting dependencies: %w", err)
	}

	// Start the server
	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := supporthttp.Config{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		TCPKeepAlive:        time.Minute * 3,
		ShutdownGracePeriod: time.Second * 50,
		ReadTimeout:         time.Second * 5,
		WriteTimeout:        time.Second * 35,
		IdleTimeout:         time.Minute * 2,
		OnStarting: func() {
			log.Info("Starting SebenzaPay Escrow Backend Server")
			log.Infof("Listening on %s", listenAddr)
		},
		OnStopping: func() {
			log.Info("Closing the database connection...")
			err := opts.dbConnectionPool.Close()
			if err != nil {
				log.Errorf("error closing database connection: %s", err.Error())
			}

			log.Info("Stopping SebenzaPay Escrow Backend Server")
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func handleHTTP(o ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	// Middleware
	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(supporthttp.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	// Authenticated Routes
	mux.Group(func(r chi.Router) {
		r.Use(middleware.AuthenticateMiddleware(o.jwtManager))

		r.Route("/payments", func(r chi.Router) {
			paymentsHandler := httphandler.PaymentsHandler{
				PaymentIntentService:     o.paymentIntentService,
				PaymentManagementService: o.paymentManagementService,
				CashPaymentService:       o.cashPaymentService,
				MonitorService:           o.MonitorService,
				ProcessorPublicKey:       o.ProcessorPublicKey,
				Currency:                 o.Currency,
			}
			r.With(middleware.AnyRoleMiddleware(data.ClientUserRole, data.ProviderUserRole)).
				Get("/config", paymentsHandler.GetPaymentsConfig)
			r.With(middleware.AnyRoleMiddleware(data.ClientUserRole)).
				Post("/intents", paymentsHandler.PostPaymentIntent)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Get("/", paymentsHandler.GetPayments)
			// Ownership is checked in the handler: clients and providers only
			// see their own payments.
			r.With(middleware.AnyRoleMiddleware(data.GetAllRoles()...)).
				Get("/{id}", paymentsHandler.GetPayment)
			r.With(middleware.AnyRoleMiddleware(data.ClientUserRole)).
				Post("/{id}/cash-claim", paymentsHandler.PostCashClaim)
			r.With(middleware.AnyRoleMiddleware(data.ProviderUserRole)).
				Post("/{id}/cash-confirm", paymentsHandler.PostCashConfirm)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Post("/{id}/refund", paymentsHandler.PostRefund)
		})

		r.With(middleware.AnyRoleMiddleware(data.ProviderUserRole)).Route("/bookings", func(r chi.Router) {
			bookingsHandler := httphandler.BookingsHandler{PayoutService: o.payoutService}
			r.Post("/{id}/delivered", bookingsHandler.PostBookingDelivered)
		})

		r.Route("/payouts", func(r chi.Router) {
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).Route("/batches", func(r chi.Router) {
				batchesHandler := httphandler.PayoutBatchesHandler{
					BatchExportService: o.batchExportService,
					MonitorService:     o.MonitorService,
				}
				r.Post("/export", batchesHandler.PostExport)
				r.Get("/", batchesHandler.GetBatches)
				r.Get("/{id}", batchesHandler.GetBatch)
				r.Get("/{id}/csv", batchesHandler.GetBatchCSV)
				r.Post("/{id}/execute", batchesHandler.PostExecuteBatch)
			})

			payoutsHandler := httphandler.PayoutsHandler{
				PayoutService:  o.payoutService,
				ReceiptService: o.receiptService,
				MonitorService: o.MonitorService,
			}
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Get("/", payoutsHandler.GetPayouts)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole, data.ProviderUserRole)).
				Get("/{id}", payoutsHandler.GetPayout)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Post("/{id}/approve", payoutsHandler.PostApprove)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Post("/{id}/reject", payoutsHandler.PostReject)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Post("/{id}/execute", payoutsHandler.PostExecute)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
				Post("/{id}/mark-paid", payoutsHandler.PostMarkPaid)
			r.With(middleware.AnyRoleMiddleware(data.AdminUserRole, data.ProviderUserRole)).
				Get("/{id}/receipt", payoutsHandler.GetReceipt)
		})

		r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).Route("/settlements", func(r chi.Router) {
			settlementsHandler := httphandler.SettlementsHandler{SettlementService: o.settlementService}
			r.Get("/", settlementsHandler.GetSettlements)
			r.Get("/{date}", settlementsHandler.GetSettlement)
			r.Post("/{date}/reconcile", settlementsHandler.PostReconcile)
		})

		r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).Route("/ledger", func(r chi.Router) {
			ledgerHandler := httphandler.LedgerHandler{
				Models:            o.Models,
				DBConnectionPool:  o.dbConnectionPool,
				SettlementService: o.settlementService,
				MonitorService:    o.MonitorService,
			}
			r.Get("/balance", ledgerHandler.GetBalance)
			r.Get("/entries", ledgerHandler.GetEntries)
			r.Post("/adjustments", ledgerHandler.PostAdjustment)
			r.Get("/verify", ledgerHandler.GetVerify)
		})

		statisticsHandler := httphandler.StatisticsHandler{DBConnectionPool: o.dbConnectionPool}
		r.With(middleware.AnyRoleMiddleware(data.AdminUserRole)).
			Get("/statistics", statisticsHandler.GetStatistics)
		r.With(middleware.AnyRoleMiddleware(data.AdminUserRole, data.ProviderUserRole)).
			Get("/statistics/providers/{id}", statisticsHandler.GetStatisticsByProvider)
	})

	mux.Get("/health", httphandler.HealthHandler{
		ReleaseID:        o.GitCommit,
		ServiceID:        ServiceID,
		Version:          o.Version,
		DBConnectionPool: o.dbConnectionPool,
	}.ServeHTTP)

	// The processor authenticates with an HMAC signature over the raw body
	// instead of a JWT, so this route stays outside the authenticated group.
	mux.With(middleware.RateLimitMiddleware(webhookRateLimitRequests, webhookRateLimitWindow)).
		Post("/webhooks/processor", httphandler.WebhookHandler{
			WebhookIngestService: o.webhookIngestService,
			MonitorService:       o.MonitorService,
		}.PostWebhook)

	return mux
}
