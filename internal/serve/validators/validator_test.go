package validators

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NewValidator(t *testing.T) {
	validator := NewValidator()
	assert.NotNil(t, validator)
	assert.NotNil(t, validator.Errors)
}

func Test_Validator_Check(t *testing.T) {
	validator := NewValidator()
	validator.Check(true, "amount", "amount must be greater than zero")
	assert.Emptyf(t, validator.Errors, "a passing check must not record an error")

	validator.Check(false, "amount", "amount must be greater than zero")
	assert.NotEmpty(t, validator.Errors)
	assert.Equal(t, "amount must be greater than zero", validator.Errors["amount"])
}

func Test_Validator_HasErrors(t *testing.T) {
	validator := NewValidator()
	assert.False(t, validator.HasErrors())

	validator.Check(false, "booking_id", "booking_id is required")
	assert.True(t, validator.HasErrors())
}

func Test_Validator_addError(t *testing.T) {
	validator := NewValidator()
	validator.AddError("bank_code", "invalid bank code")
	validator.AddError("account_number", "invalid account number")
	assert.Len(t, validator.Errors, 2)
	assert.Equal(t, "invalid bank code", validator.Errors["bank_code"])
	assert.Equal(t, "invalid account number", validator.Errors["account_number"])
}

func Test_Validator_CheckError(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		key            string
		message        string
		expectedErrors map[string]interface{}
	}{
		{
			name:    "error with an override message",
			err:     fmt.Errorf("parsing amount"),
			key:     "amount",
			message: "amount is not a valid decimal",
			expectedErrors: map[string]interface{}{
				"amount": "amount is not a valid decimal",
			},
		},
		{
			name:    "error without an override message",
			err:     fmt.Errorf("parsing amount"),
			key:     "amount",
			message: "",
			expectedErrors: map[string]interface{}{
				"amount": "parsing amount",
			},
		},
		{
			name:           "nil error records nothing",
			err:            nil,
			key:            "amount",
			message:        "amount is not a valid decimal",
			expectedErrors: map[string]interface{}{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			validator := NewValidator()
			validator.CheckError(tc.err, tc.key, tc.message)
			assert.Equal(t, tc.expectedErrors, validator.Errors)
		})
	}
}
