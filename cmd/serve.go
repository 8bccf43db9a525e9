package cmd

import (
	"context"
	"fmt"
	"go/types"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/sebenzapay/escrow-platform-backend/cmd/utils"
	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/message"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
	"github.com/sebenzapay/escrow-platform-backend/internal/scheduler"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

type ServeCommand struct{}

type ServerServiceInterface interface {
	StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface)
	StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface)
	GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions scheduler.SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error)
}

type ServerService struct{}

// Making sure that ServerService implements ServerServiceInterface
var _ ServerServiceInterface = (*ServerService)(nil)

func (s *ServerService) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.Serve(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting server: %s", err.Error())
	}
}

func (s *ServerService) StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.MetricsServe(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting metrics server: %s", err.Error())
	}
}

// GetSchedulerJobRegistrars builds the background jobs. The reconciliation
// jobs replay unprocessed webhooks and verify stale pending payments; the
// settlement job rolls up the daily expected-settlement batches.
func (s *ServerService) GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions scheduler.SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error) {
	// TODO: inject these in the server options, to do the Dependency Injection properly.
	dbConnectionPool, err := db.OpenDBConnectionPool(serveOpts.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error getting DB connection in Job Scheduler: %w", err)
	}
	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		return nil, fmt.Errorf("error getting models in Job Scheduler: %w", err)
	}

	processorClient := paystack.NewClient(serveOpts.ProcessorBaseURL, serveOpts.ProcessorSecretKey)
	notificationService := services.NewNotificationService(serveOpts.EmailMessengerClient, models)
	payoutService := services.NewPayoutService(models, dbConnectionPool, processorClient, notificationService, serveOpts.DefaultPayoutMethod, serveOpts.BankMainAccountID)
	webhookIngestService := services.NewWebhookIngestService(models, dbConnectionPool, serveOpts.ProcessorSecretKey, payoutService, notificationService, serveOpts.CrashTrackerClient.Clone())
	reconciliationService := services.NewReconciliationService(
		models,
		dbConnectionPool,
		processorClient,
		webhookIngestService,
		serveOpts.CrashTrackerClient.Clone(),
		time.Duration(schedulerOptions.WebhookReplayThresholdSeconds)*time.Second,
		schedulerOptions.MaxWebhookRetries,
		time.Duration(schedulerOptions.PendingPaymentMaxAgeMinutes)*time.Minute,
	)
	settlementService := services.NewSettlementService(models, dbConnectionPool, serveOpts.CrashTrackerClient.Clone(), serveOpts.BankMainAccountID, serveOpts.Currency)

	return []scheduler.SchedulerJobRegisterOption{
		scheduler.WithWebhookReplayJobOption(reconciliationService, serveOpts.MonitorService, schedulerOptions.ReconcilerIntervalSeconds),
		scheduler.WithStalePaymentVerificationJobOption(reconciliationService, serveOpts.MonitorService, schedulerOptions.ReconcilerIntervalSeconds),
		scheduler.WithSettlementRollupJobOption(settlementService, serveOpts.MonitorService),
	}, nil
}

func (c *ServeCommand) Command(serverService ServerServiceInterface, monitorService monitor.MonitorServiceInterface) *cobra.Command {
	serveOpts := serve.ServeOptions{}
	metricsServeOpts := serve.MetricsServeOptions{}
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}
	schedulerOptions := scheduler.SchedulerOptions{}
	messengerOptions := message.MessengerOptions{}

	var batchExecuteTimeoutSeconds int
	var emailSenderAddress string

	configOpts := config.ConfigOptions{
		{
			Name:        "port",
			Usage:       "Port where the server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &serveOpts.Port,
			FlagDefault: 8001,
			Required:    true,
		},
		{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &metricsServeOpts.MetricType,
			FlagDefault:    "PROMETHEUS",
			Required:       true,
		},
		{
			Name:        "metrics-port",
			Usage:       "Port where the metrics server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &metricsServeOpts.Port,
			FlagDefault: 8002,
			Required:    true,
		},
		{
			Name:           "ec256-public-key",
			Usage:          "The EC256 Public Key. This key is used to validate the signature of the API request tokens.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PublicKey,
			ConfigKey:      &serveOpts.EC256PublicKey,
			Required:       true,
		},
		{
			Name:           "ec256-private-key",
			Usage:          "The EC256 Private Key. Optional, only needed when this instance also mints tokens.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PrivateKey,
			ConfigKey:      &serveOpts.EC256PrivateKey,
			Required:       false,
		},
		{
			Name:           "cors-allowed-origins",
			Usage:          `Cors URLs that are allowed to access the endpoints, separated by ","`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetCorsAllowedOrigins,
			ConfigKey:      &serveOpts.CorsAllowedOrigins,
			Required:       true,
		},
		{
			Name:           "processor-base-url",
			Usage:          "The base URL of the payment processor API",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionURLString,
			ConfigKey:      &serveOpts.ProcessorBaseURL,
			FlagDefault:    "https://api.paystack.co",
			Required:       true,
		},
		{
			Name:           "processor-secret-key",
			Usage:          "The secret key used to authenticate with the payment processor and to verify its webhook signatures",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionProcessorSecretKey,
			ConfigKey:      &serveOpts.ProcessorSecretKey,
			Required:       true,
		},
		{
			Name:      "processor-public-key",
			Usage:     "The publishable key of the payment processor account, returned to clients initiating a card payment",
			OptType:   types.String,
			ConfigKey: &serveOpts.ProcessorPublicKey,
			Required:  false,
		},
		{
			Name:           "platform-fee-rate",
			Usage:          "The fraction of each payment kept by the platform, e.g. 0.10 for 10%",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionFeeRate,
			ConfigKey:      &serveOpts.PlatformFeeRate,
			FlagDefault:    "0.10",
			Required:       true,
		},
		{
			Name:        "currency",
			Usage:       "The ISO 4217 code of the currency all amounts are denominated in",
			OptType:     types.String,
			ConfigKey:   &serveOpts.Currency,
			FlagDefault: "ZAR",
			Required:    true,
		},
		{
			Name:        "bank-main-account-id",
			Usage:       "The ledger account that holds escrowed funds",
			OptType:     types.String,
			ConfigKey:   &serveOpts.BankMainAccountID,
			FlagDefault: "BANK_MAIN",
			Required:    true,
		},
		{
			Name:           "payout-method-default",
			Usage:          fmt.Sprintf("The payout method used when a provider has no preference set. Options: %v", data.PayoutMethods()),
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionPayoutMethod,
			ConfigKey:      &serveOpts.DefaultPayoutMethod,
			FlagDefault:    string(data.AutoPayoutMethod),
			Required:       true,
		},
		{
			Name:        "batch-execute-timeout-seconds",
			Usage:       "The maximum time in seconds a payout batch execution is allowed to run",
			OptType:     types.Int,
			ConfigKey:   &batchExecuteTimeoutSeconds,
			FlagDefault: 60,
			Required:    true,
		},
		{
			Name:        "scheduler-enabled",
			Usage:       "Enable the background jobs: webhook replay, stale payment verification and settlement roll-up",
			OptType:     types.Bool,
			ConfigKey:   &serveOpts.EnableScheduler,
			FlagDefault: true,
			Required:    false,
		},
		{
			Name:           "messenger-type",
			Usage:          fmt.Sprintf("The messenger type used to send payment and payout notifications. Options: %+v", message.MessengerType("").All()),
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMessengerType,
			ConfigKey:      &messengerOptions.MessengerType,
			FlagDefault:    string(message.MessengerTypeDryRun),
			Required:       true,
		},
		{
			Name:      "email-sender-address",
			Usage:     "The sender address used for outgoing emails when the backend-specific sender is not set",
			OptType:   types.String,
			ConfigKey: &emailSenderAddress,
			Required:  false,
		},
	}
	configOpts = append(configOpts, cmdUtils.CrashTrackerTypeConfigOption(&crashTrackerOptions.CrashTrackerType))
	configOpts = append(configOpts, cmdUtils.TwilioConfigOptions(&messengerOptions)...)
	configOpts = append(configOpts, cmdUtils.AWSConfigOptions(&messengerOptions)...)
	configOpts = append(configOpts, cmdUtils.SchedulerConfigOptions(&schedulerOptions)...)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the SebenzaPay Escrow API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Call the parent PersistentPreRun
			if cmd.Parent().PersistentPreRun != nil {
				cmd.Parent().PersistentPreRun(cmd.Parent(), args)
			}
			ctx := cmd.Context()

			// Validate & ingest input parameters
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Ctx(ctx).Fatalf("Error setting values of config options: %s", err.Error())
			}

			// Initializing monitor service
			metricOptions := monitor.MetricOptions{
				MetricType:  metricsServeOpts.MetricType,
				Environment: globalOptions.Environment,
			}
			err = monitorService.Start(metricOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error creating monitor service: %s", err.Error())
			}

			// Inject crash tracker options dependencies
			globalOptions.PopulateCrashTrackerOptions(&crashTrackerOptions)

			// Inject server dependencies
			serveOpts.Environment = globalOptions.Environment
			serveOpts.GitCommit = globalOptions.GitCommit
			serveOpts.Version = globalOptions.Version
			serveOpts.DatabaseDSN = globalOptions.DatabaseURL
			serveOpts.BaseURL = globalOptions.BaseURL
			serveOpts.MonitorService = monitorService
			serveOpts.BatchExecuteTimeout = time.Duration(batchExecuteTimeoutSeconds) * time.Second

			// Inject metrics server dependencies
			metricsServeOpts.MonitorService = monitorService
			metricsServeOpts.Environment = globalOptions.Environment

			// Inject messenger dependencies. The backend-specific sender
			// addresses fall back to email-sender-address so one flag covers
			// whichever email backend is configured.
			messengerOptions.Environment = globalOptions.Environment
			if messengerOptions.TwilioSendGridSenderAddress == "" {
				messengerOptions.TwilioSendGridSenderAddress = emailSenderAddress
			}
			if messengerOptions.AWSSESSenderID == "" {
				messengerOptions.AWSSESSenderID = emailSenderAddress
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			// Setup the Crash Tracker client
			crashTrackerClient, err := crashtracker.GetClient(ctx, crashTrackerOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error creating crash tracker client: %s", err.Error())
			}
			serveOpts.CrashTrackerClient = crashTrackerClient

			// Setup the Messenger client used for notifications
			messengerClient, err := message.GetClient(messengerOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error creating messenger client: %s", err.Error())
			}
			serveOpts.EmailMessengerClient = messengerClient

			// Starting Scheduler Service (background job) if enabled
			if serveOpts.EnableScheduler {
				log.Ctx(ctx).Info("Starting Scheduler Service...")
				schedulerJobRegistrars, innerErr := serverService.GetSchedulerJobRegistrars(ctx, serveOpts, schedulerOptions)
				if innerErr != nil {
					log.Ctx(ctx).Fatalf("Error getting scheduler job registrars: %v", innerErr)
				}
				go scheduler.StartScheduler(crashTrackerClient.Clone(), schedulerJobRegistrars...)
			} else {
				log.Ctx(ctx).Warn("Scheduler Service is disabled.")
			}

			// Starting Metrics Server (background job)
			log.Ctx(ctx).Info("Starting Metrics Server...")
			go serverService.StartMetricsServe(metricsServeOpts, &serve.HTTPServer{})

			// Starting Application Server
			log.Ctx(ctx).Info("Starting Application Server...")
			serverService.StartServe(serveOpts, &serve.HTTPServer{})
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
