package message

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTwilioSendGridClient struct {
	mock.Mock
}

var _ twilioSendGridInterface = (*mockTwilioSendGridClient)(nil)

func (m *mockTwilioSendGridClient) Send(email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rest.Response), args.Error(1)
}

func Test_NewTwilioSendGridClient(t *testing.T) {
	testCases := []struct {
		name          string
		apiKey        string
		senderAddress string
		wantErr       error
	}{
		{
			name:    "apiKey cannot be empty",
			wantErr: fmt.Errorf("sendGrid API key is empty"),
		},
		{
			name:          "senderAddress needs to be a valid email",
			apiKey:        "api-key",
			senderAddress: "invalid-email",
			wantErr:       fmt.Errorf("sendGrid senderAddress is invalid: the provided email is not valid"),
		},
		{
			name:          "all fields are present",
			apiKey:        "api-key",
			senderAddress: "no-reply@example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTwilioSendGridClient(tc.apiKey, tc.senderAddress)
			if tc.wantErr != nil {
				assert.EqualError(t, err, tc.wantErr.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_TwilioSendGridClient_SendMessage_messageIsInvalid(t *testing.T) {
	var mSendGrid MessengerClient = &twilioSendGridClient{}
	err := mSendGrid.SendMessage(Message{})
	assert.EqualError(t, err, "validating message to send an email through SendGrid: invalid message: email cannot be empty")
}

func Test_TwilioSendGridClient_SendMessage_errorIsHandledCorrectly(t *testing.T) {
	message := Message{ToEmail: "provider@example.com", Title: "Payout completed", Message: "Your payout is on its way."}

	mSendGrid := &mockTwilioSendGridClient{}
	mSendGrid.On("Send", mock.MatchedBy(func(email *mail.SGMailV3) bool {
		return email.From.Address == "no-reply@example.com" &&
			email.Subject == message.Title &&
			len(email.Personalizations) == 1 &&
			len(email.Personalizations[0].To) == 1 &&
			email.Personalizations[0].To[0].Address == message.ToEmail
	})).Return(nil, fmt.Errorf("test SendGrid error")).Once()
	defer mSendGrid.AssertExpectations(t)

	client := &twilioSendGridClient{
		client:        mSendGrid,
		senderAddress: "no-reply@example.com",
	}

	err := client.SendMessage(message)
	assert.EqualError(t, err, "sending SendGrid email: test SendGrid error")
}

func Test_TwilioSendGridClient_SendMessage_handlesAPIError(t *testing.T) {
	message := Message{ToEmail: "provider@example.com", Title: "Payout completed", Message: "Your payout is on its way."}

	mSendGrid := &mockTwilioSendGridClient{}
	mSendGrid.On("Send", mock.MatchedBy(func(email *mail.SGMailV3) bool {
		return email.From.Address == "no-reply@example.com" &&
			email.Subject == message.Title
	})).Return(&rest.Response{
		StatusCode: 400,
		Body:       "Bad Request",
	}, nil).Once()
	defer mSendGrid.AssertExpectations(t)

	client := &twilioSendGridClient{
		client:        mSendGrid,
		senderAddress: "no-reply@example.com",
	}

	err := client.SendMessage(message)
	assert.EqualError(t, err, "sendGrid API returned error status code= 400, body= Bad Request")
}

func Test_TwilioSendGridClient_SendMessage_wrapsPlainTextInHTML(t *testing.T) {
	message := Message{ToEmail: "provider@example.com", Title: "Payout completed", Message: "Your payout is on its way."}

	mSendGrid := &mockTwilioSendGridClient{}
	mSendGrid.On("Send", mock.MatchedBy(func(email *mail.SGMailV3) bool {
		gotContent := email.Content[0].Value
		return email.From.Address == "no-reply@example.com" &&
			email.Subject == message.Title &&
			len(email.Personalizations) == 1 &&
			len(email.Personalizations[0].To) == 1 &&
			email.Personalizations[0].To[0].Address == message.ToEmail &&
			strings.Contains(gotContent, "<html") &&
			strings.Contains(gotContent, message.Message)
	})).Return(&rest.Response{StatusCode: 202, Body: "Accepted"}, nil).Once()
	defer mSendGrid.AssertExpectations(t)

	client := &twilioSendGridClient{
		client:        mSendGrid,
		senderAddress: "no-reply@example.com",
	}

	err := client.SendMessage(message)
	assert.NoError(t, err)
}

func Test_TwilioSendGridClient_SendMessage_keepsHTMLContent(t *testing.T) {
	htmlContent := "<html><body><h1>Payout completed</h1></body></html>"
	message := Message{ToEmail: "provider@example.com", Title: "Payout completed", Message: htmlContent}

	mSendGrid := &mockTwilioSendGridClient{}
	mSendGrid.On("Send", mock.MatchedBy(func(email *mail.SGMailV3) bool {
		gotContent := strings.TrimSpace(email.Content[0].Value)
		return email.From.Address == "no-reply@example.com" &&
			email.Subject == message.Title &&
			gotContent == htmlContent
	})).Return(&rest.Response{StatusCode: 202, Body: "Accepted"}, nil).Once()
	defer mSendGrid.AssertExpectations(t)

	client := &twilioSendGridClient{
		client:        mSendGrid,
		senderAddress: "no-reply@example.com",
	}

	err := client.SendMessage(message)
	assert.NoError(t, err)
}
