package message

import "github.com/stretchr/testify/mock"

type MessengerClientMock struct {
	mock.Mock
}

var _ MessengerClient = (*MessengerClientMock)(nil)

func (mc *MessengerClientMock) SendMessage(message Message) error {
	return mc.Called(message).Error(0)
}

func (mc *MessengerClientMock) MessengerType() MessengerType {
	return mc.Called().Get(0).(MessengerType)
}
