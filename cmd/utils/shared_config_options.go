package utils

import (
	"go/types"

	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/message"
	"github.com/sebenzapay/escrow-platform-backend/internal/scheduler"
)

// TwilioConfigOptions returns the config options for Twilio. Relevant for loading configs needed for the messenger type(s): `TWILIO_*`.
func TwilioConfigOptions(opts *message.MessengerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:      "twilio-account-sid",
			Usage:     "The SID of the Twilio account",
			OptType:   types.String,
			ConfigKey: &opts.TwilioAccountSID,
			Required:  false,
		},
		{
			Name:      "twilio-auth-token",
			Usage:     "The Auth Token of the Twilio account",
			OptType:   types.String,
			ConfigKey: &opts.TwilioAuthToken,
			Required:  false,
		},
		{
			Name:      "twilio-service-sid",
			Usage:     "The service ID used within Twilio to send messages",
			OptType:   types.String,
			ConfigKey: &opts.TwilioServiceSID,
			Required:  false,
		},
		// Twilio Email (SendGrid)
		{
			Name:      "twilio-sendgrid-api-key",
			Usage:     "The API key of the Twilio SendGrid account",
			OptType:   types.String,
			ConfigKey: &opts.TwilioSendGridAPIKey,
			Required:  false,
		},
		{
			Name:      "twilio-sendgrid-sender-address",
			Usage:     "The email address that Twilio SendGrid will use to send emails",
			OptType:   types.String,
			ConfigKey: &opts.TwilioSendGridSenderAddress,
			Required:  false,
		},
	}
}

// AWSConfigOptions returns the config options for AWS. Relevant for loading configs needed for the messenger type(s): `AWS_*`.
func AWSConfigOptions(opts *message.MessengerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		// AWS
		{
			Name:      "aws-access-key-id",
			Usage:     "The AWS access key ID",
			OptType:   types.String,
			ConfigKey: &opts.AWSAccessKeyID,
			Required:  false,
		},
		{
			Name:      "aws-secret-access-key",
			Usage:     "The AWS secret access key",
			OptType:   types.String,
			ConfigKey: &opts.AWSSecretAccessKey,
			Required:  false,
		},
		{
			Name:      "aws-region",
			Usage:     "The AWS region",
			OptType:   types.String,
			ConfigKey: &opts.AWSRegion,
			Required:  false,
		},
		// AWS SMS (SNS)
		{
			Name:      "aws-sns-sender-id",
			Usage:     "The sender ID of the aws account sending the SMS message. Uses AWS SNS.",
			OptType:   types.String,
			ConfigKey: &opts.AWSSNSSenderID,
			Required:  false,
		},
		// AWS Email (SES)
		{
			Name:      "aws-ses-sender-id",
			Usage:     "The email address that AWS will use to send emails. Uses AWS SES.",
			OptType:   types.String,
			ConfigKey: &opts.AWSSESSenderID,
			Required:  false,
		},
	}
}

// SchedulerConfigOptions returns the config options for the background
// reconciliation jobs run by the scheduler.
func SchedulerConfigOptions(opts *scheduler.SchedulerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:        "reconciler-interval-seconds",
			Usage:       "The interval in seconds between runs of the webhook replay and stale payment verification jobs",
			OptType:     types.Int,
			ConfigKey:   &opts.ReconcilerIntervalSeconds,
			FlagDefault: 300,
			Required:    true,
		},
		{
			Name:        "webhook-replay-threshold-seconds",
			Usage:       "The minimum age in seconds an unprocessed webhook must reach before the reconciler replays it",
			OptType:     types.Int,
			ConfigKey:   &opts.WebhookReplayThresholdSeconds,
			FlagDefault: 30,
			Required:    true,
		},
		{
			Name:        "pending-payment-max-age-minutes",
			Usage:       "The age in minutes after which a pending payment is verified against the processor",
			OptType:     types.Int,
			ConfigKey:   &opts.PendingPaymentMaxAgeMinutes,
			FlagDefault: 10,
			Required:    true,
		},
		{
			Name:        "max-webhook-retries",
			Usage:       "The maximum number of retries before an unprocessed webhook is abandoned and reported",
			OptType:     types.Int,
			ConfigKey:   &opts.MaxWebhookRetries,
			FlagDefault: 5,
			Required:    true,
		},
	}
}

func CrashTrackerTypeConfigOption(targetPointer interface{}) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "crash-tracker-type",
		Usage:          `Crash tracker type. Options: "SENTRY", "DRY_RUN"`,
		OptType:        types.String,
		CustomSetValue: SetConfigOptionCrashTrackerType,
		ConfigKey:      targetPointer,
		FlagDefault:    string(crashtracker.CrashTrackerTypeDryRun),
		Required:       true,
	}
}
