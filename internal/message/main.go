package message

import (
	"fmt"
	"slices"
	"strings"
)

// MessengerType selects which backend delivers provider notifications.
type MessengerType string

const (
	// MessengerTypeTwilioSMS sends SMS through Twilio.
	MessengerTypeTwilioSMS MessengerType = "TWILIO_SMS"
	// MessengerTypeTwilioEmail sends email through Twilio SendGrid.
	MessengerTypeTwilioEmail MessengerType = "TWILIO_EMAIL"
	// MessengerTypeAWSSMS sends SMS through AWS SNS.
	MessengerTypeAWSSMS MessengerType = "AWS_SMS"
	// MessengerTypeAWSEmail sends email through AWS SES.
	MessengerTypeAWSEmail MessengerType = "AWS_EMAIL"
	// MessengerTypeDryRun logs messages instead of sending them.
	MessengerTypeDryRun MessengerType = "DRY_RUN"
)

func (mt MessengerType) All() []MessengerType {
	return []MessengerType{MessengerTypeTwilioSMS, MessengerTypeTwilioEmail, MessengerTypeAWSSMS, MessengerTypeAWSEmail, MessengerTypeDryRun}
}

func ParseMessengerType(messengerTypeStr string) (MessengerType, error) {
	mType := MessengerType(strings.ToUpper(messengerTypeStr))
	if slices.Contains(MessengerType("").All(), mType) {
		return mType, nil
	}
	return "", fmt.Errorf("invalid message sender type %q", strings.ToUpper(messengerTypeStr))
}

func (mt MessengerType) ValidSMSTypes() []MessengerType {
	return []MessengerType{MessengerTypeDryRun, MessengerTypeTwilioSMS, MessengerTypeAWSSMS}
}

func (mt MessengerType) ValidEmailTypes() []MessengerType {
	return []MessengerType{MessengerTypeDryRun, MessengerTypeTwilioEmail, MessengerTypeAWSEmail}
}

func (mt MessengerType) IsSMS() bool {
	return slices.Contains(mt.ValidSMSTypes(), mt)
}

func (mt MessengerType) IsEmail() bool {
	return slices.Contains(mt.ValidEmailTypes(), mt)
}

// MessengerOptions carries the credentials for whichever backend
// MessengerType selects. Only the fields for the chosen backend are read.
type MessengerOptions struct {
	MessengerType MessengerType
	Environment   string

	// Twilio SMS
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioServiceSID string
	// Twilio SendGrid email
	TwilioSendGridAPIKey        string
	TwilioSendGridSenderAddress string

	// AWS credentials, shared by SNS and SES
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	// AWS SNS sender for SMS
	AWSSNSSenderID string
	// AWS SES sender address for email
	AWSSESSenderID string
}

// GetClient builds the MessengerClient the options describe.
func GetClient(opts MessengerOptions) (MessengerClient, error) {
	switch opts.MessengerType {
	case MessengerTypeTwilioSMS:
		return NewTwilioClient(opts.TwilioAccountSID, opts.TwilioAuthToken, opts.TwilioServiceSID)
	case MessengerTypeTwilioEmail:
		return NewTwilioSendGridClient(opts.TwilioSendGridAPIKey, opts.TwilioSendGridSenderAddress)
	case MessengerTypeAWSSMS:
		return NewAWSSNSClient(opts.AWSAccessKeyID, opts.AWSSecretAccessKey, opts.AWSRegion, opts.AWSSNSSenderID)
	case MessengerTypeAWSEmail:
		return NewAWSSESClient(opts.AWSAccessKeyID, opts.AWSSecretAccessKey, opts.AWSRegion, opts.AWSSESSenderID)
	case MessengerTypeDryRun:
		return NewDryRunClient()
	default:
		return nil, fmt.Errorf("unknown message sender type: %q", opts.MessengerType)
	}
}
