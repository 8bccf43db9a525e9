package message

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/internal/htmltemplate"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

// awsSESInterface is used to send emails.
type awsSESInterface interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// awsSESClient is used to send emails.
type awsSESClient struct {
	emailService awsSESInterface
	senderID     string
}

func (t *awsSESClient) MessengerType() MessengerType {
	return MessengerTypeAWSEmail
}

func (a *awsSESClient) SendMessage(message Message) error {
	err := message.ValidateFor(a.MessengerType())
	if err != nil {
		return fmt.Errorf("validating message to send an email through AWS: %w", err)
	}

	emailTemplate, err := generateAWSEmail(message, a.senderID)
	if err != nil {
		return fmt.Errorf("generating AWS SES email template: %w", err)
	}

	_, err = a.emailService.SendEmail(context.Background(), emailTemplate)
	if err != nil {
		return fmt.Errorf("sending AWS SES email: %w", err)
	}

	log.Debugf("🎉 AWS SES sent an email to the receiver %q", utils.TruncateString(message.ToEmail, 3))
	return nil
}

// generateAWSEmail generates the email object to send an email through AWS SES.
func generateAWSEmail(message Message, sender string) (*ses.SendEmailInput, error) {
	html, err := htmltemplate.ExecuteHTMLTemplateForEmailEmptyBody(htmltemplate.EmptyBodyEmailTemplate{Body: template.HTML(message.Message)})
	if err != nil {
		return nil, fmt.Errorf("generating html template: %w", err)
	}

	return &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{message.ToEmail},
		},
		Message: &types.Message{
			Body: &types.Body{
				Html: &types.Content{
					Charset: aws.String("utf-8"),
					Data:    aws.String(html),
				},
			},
			Subject: &types.Content{
				Charset: aws.String("utf-8"),
				Data:    aws.String(message.Title),
			},
		},
		Source: aws.String(sender),
	}, nil
}

// NewAWSSESClient creates a new awsSESClient, that is used to send emails.
func NewAWSSESClient(accessKeyID, secretAccessKey, region, senderID string) (*awsSESClient, error) {
	cfg, err := loadAWSConfig(accessKeyID, secretAccessKey, region)
	if err != nil {
		return nil, err
	}

	senderID = strings.TrimSpace(senderID)
	if err = utils.ValidateEmail(senderID); err != nil {
		return nil, fmt.Errorf("aws SES (email) senderID is invalid: %w", err)
	}

	return &awsSESClient{
		emailService: ses.NewFromConfig(cfg),
		senderID:     senderID,
	}, nil
}

var _ MessengerClient = (*awsSESClient)(nil)
