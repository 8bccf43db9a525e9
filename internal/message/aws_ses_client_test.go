package message

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAWSSESClient struct {
	mock.Mock
}

func (m *mockAWSSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

func Test_NewAWSSESClient(t *testing.T) {
	// Declare types in advance to make sure these are the types being returned
	var gotAWSSESClient *awsSESClient
	var err error

	// accessKeyID cannot be empty
	gotAWSSESClient, err = NewAWSSESClient("", "", "", "")
	require.Nil(t, gotAWSSESClient)
	require.EqualError(t, err, "aws accessKeyID is empty")

	// secretAccessKey cannot be empty
	gotAWSSESClient, err = NewAWSSESClient("accessKeyID", "", "", "")
	require.Nil(t, gotAWSSESClient)
	require.EqualError(t, err, "aws secretAccessKey is empty")

	// region cannot be empty
	gotAWSSESClient, err = NewAWSSESClient("accessKeyID", "secretAccessKey", "", "")
	require.Nil(t, gotAWSSESClient)
	require.EqualError(t, err, "aws region is empty")

	// [email] type needs a valid email as a sender ID:
	gotAWSSESClient, err = NewAWSSESClient("accessKeyID", "secretAccessKey", "region", "invalid-email")
	require.Nil(t, gotAWSSESClient)
	require.EqualError(t, err, "aws SES (email) senderID is invalid: the provided email is not valid")

	// [email] all fields are present 🎉
	gotAWSSESClient, err = NewAWSSESClient("accessKeyID", "secretAccessKey", "region", "foo@test.com")
	require.NoError(t, err)
	require.NotNil(t, gotAWSSESClient)
}

func Test_AWSSES_SendMessage_messageIsInvalid(t *testing.T) {
	var mAWS MessengerClient = &awsSESClient{}
	err := mAWS.SendMessage(Message{})
	require.EqualError(t, err, "validating message to send an email through AWS: invalid message: email cannot be empty")
}

func Test_AWSSES_SendMessage_errorIsHandledCorrectly(t *testing.T) {
	testSenderID := "sender@test.com"
	message := Message{ToEmail: "foo@test.com", Title: "test title", Message: "foo bar"}
	emailStr, err := generateAWSEmail(message, testSenderID)
	require.NoError(t, err)

	mAWSSES := mockAWSSESClient{}
	mAWSSES.
		On("SendEmail", mock.Anything, emailStr).
		Return(nil, fmt.Errorf("test AWS SES error")).
		Once()

	mAWS := awsSESClient{emailService: &mAWSSES, senderID: "sender@test.com"}
	err = mAWS.SendMessage(Message{ToEmail: "foo@test.com", Title: "test title", Message: "foo bar"})
	require.EqualError(t, err, "sending AWS SES email: test AWS SES error")

	mAWSSES.AssertExpectations(t)
}

func Test_AWSSES_SendMessage_success(t *testing.T) {
	testSenderID := "sender@test.com"
	message := Message{ToEmail: "foo@test.com", Title: "test title", Message: "foo bar"}
	emailStr, err := generateAWSEmail(message, testSenderID)
	require.NoError(t, err)

	mAWSSES := mockAWSSESClient{}
	mAWSSES.
		On("SendEmail", mock.Anything, emailStr).
		Return(&ses.SendEmailOutput{}, nil).
		Once()

	mAWS := awsSESClient{emailService: &mAWSSES, senderID: "sender@test.com"}
	err = mAWS.SendMessage(Message{ToEmail: "foo@test.com", Title: "test title", Message: "foo bar"})
	require.NoError(t, err)

	mAWSSES.AssertExpectations(t)
}

func Test_generateAWSEmail_success(t *testing.T) {
	message := Message{
		ToEmail: "receiver@test.com",
		Message: "Helo world!",
		Title:   "title",
	}
	gotEmail, err := generateAWSEmail(message, "sender@test.com")
	require.NoError(t, err)

	require.Equal(t, []string{message.ToEmail}, gotEmail.Destination.ToAddresses)
	require.Equal(t, aws.String("sender@test.com"), gotEmail.Source)
	require.Equal(t, &types.Content{Charset: aws.String("utf-8"), Data: aws.String("title")}, gotEmail.Message.Subject)
	require.Contains(t, *gotEmail.Message.Body.Html.Data, "<body>\nHelo world!\n</body>")
}
