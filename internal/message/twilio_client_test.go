package message

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockTwilioApi struct {
	mock.Mock
}

func (m *mockTwilioApi) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twilioApi.ApiV2010Message), args.Error(1)
}

var _ twilioApiInterface = (*mockTwilioApi)(nil)

func Test_NewTwilioClient(t *testing.T) {
	gotTwilioClient, err := NewTwilioClient("", "", "")
	require.Nil(t, gotTwilioClient)
	require.EqualError(t, err, "twilio accountSid is empty")

	gotTwilioClient, err = NewTwilioClient("accountSid", "  ", "")
	require.Nil(t, gotTwilioClient)
	require.EqualError(t, err, "twilio authToken is empty")

	gotTwilioClient, err = NewTwilioClient("accountSid", "authToken", "")
	require.Nil(t, gotTwilioClient)
	require.EqualError(t, err, "twilio senderID is empty")

	gotTwilioClient, err = NewTwilioClient("accountSid", "authToken", "senderID")
	require.NoError(t, err)
	wantTwilioClient := &twilioClient{
		apiService: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: "accountSid",
			Password: "authToken",
		}).Api,
		senderID: "senderID",
	}
	require.Equal(t, wantTwilioClient, gotTwilioClient)
}

func Test_Twilio_MessengerType(t *testing.T) {
	tw := twilioClient{}
	require.Equal(t, MessengerTypeTwilioSMS, tw.MessengerType())
}

func Test_Twilio_SendMessage(t *testing.T) {
	testPhoneNumber := "+27115550100"
	testMessage := "Your payout is on its way."
	testSenderID := "senderID"

	t.Run("invalid message", func(t *testing.T) {
		var mTwilio MessengerClient = &twilioClient{}
		err := mTwilio.SendMessage(Message{})
		require.EqualError(t, err, "validating SMS message: invalid message: phone number cannot be empty")
	})

	t.Run("API error is surfaced", func(t *testing.T) {
		mTwilioApi := &mockTwilioApi{}
		mTwilioApi.
			On("CreateMessage", &twilioApi.CreateMessageParams{
				To:                  &testPhoneNumber,
				Body:                &testMessage,
				MessagingServiceSid: &testSenderID,
			}).
			Return(nil, fmt.Errorf("test twilio error")).
			Once()
		defer mTwilioApi.AssertExpectations(t)

		mTwilio := twilioClient{apiService: mTwilioApi, senderID: testSenderID}
		err := mTwilio.SendMessage(Message{ToPhoneNumber: testPhoneNumber, Message: testMessage})
		assert.EqualError(t, err, "sending Twilio SMS: test twilio error")
	})

	t.Run("error embedded in a successful response is surfaced", func(t *testing.T) {
		wantErrCode := 12345
		wantErrMessage := "Foo bar error message"

		mTwilioApi := &mockTwilioApi{}
		mTwilioApi.
			On("CreateMessage", &twilioApi.CreateMessageParams{
				To:                  &testPhoneNumber,
				Body:                &testMessage,
				MessagingServiceSid: &testSenderID,
			}).
			Return(&twilioApi.ApiV2010Message{
				ErrorCode:    &wantErrCode,
				ErrorMessage: &wantErrMessage,
			}, nil).
			Once()
		defer mTwilioApi.AssertExpectations(t)

		mTwilio := twilioClient{apiService: mTwilioApi, senderID: testSenderID}
		err := mTwilio.SendMessage(Message{ToPhoneNumber: testPhoneNumber, Message: testMessage})
		assert.EqualError(t, err, `sending Twilio SMS responded an error {code: "12345", message: "Foo bar error message"}`)
	})

	t.Run("success", func(t *testing.T) {
		mTwilioApi := &mockTwilioApi{}
		mTwilioApi.
			On("CreateMessage", &twilioApi.CreateMessageParams{
				To:                  &testPhoneNumber,
				Body:                &testMessage,
				MessagingServiceSid: &testSenderID,
			}).
			Return(&twilioApi.ApiV2010Message{}, nil).
			Once()
		defer mTwilioApi.AssertExpectations(t)

		mTwilio := twilioClient{apiService: mTwilioApi, senderID: testSenderID}
		err := mTwilio.SendMessage(Message{ToPhoneNumber: testPhoneNumber, Message: testMessage})
		require.NoError(t, err)
	})
}
