package message

// MessengerClient delivers provider notifications. Delivery is best effort:
// callers never roll back a money movement because a message failed.
//
//go:generate mockery --name=MessengerClient  --case=underscore --structname=MessengerClientMock --inpackage --filename=mocks.go
type MessengerClient interface {
	SendMessage(message Message) error
	MessengerType() MessengerType
}
