package utils

import (
	"fmt"
	"regexp"

	"github.com/asaskevich/govalidator"
	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
)

var (
	// RxPhone is a regex used to validate phone number, according with the E.164 standard https://en.wikipedia.org/wiki/E.164
	rxPhone                   = regexp.MustCompile(`^\+[1-9]{1}[0-9]{9,14}$`)
	ErrInvalidE164PhoneNumber = fmt.Errorf("the provided phone number is not a valid E.164 number")
)

// https://github.com/firebase/firebase-admin-go/blob/cef91acd46f2fc5d0b3408d8154a0005db5bdb0b/auth/user_mgt.go#L449-L457
func ValidatePhoneNumber(phoneNumberStr string) error {
	if phoneNumberStr == "" {
		return fmt.Errorf("phone number cannot be empty")
	}

	if !rxPhone.MatchString(phoneNumberStr) {
		return ErrInvalidE164PhoneNumber
	}

	parsedNumber, err := phonenumbers.Parse(phoneNumberStr, "")
	if err != nil || !phonenumbers.IsValidNumber(parsedNumber) {
		// Parsing error, not a valid phone number
		return ErrInvalidE164PhoneNumber
	}

	return nil
}

// ParseAmount parses a money amount, requiring a positive value with at most
// two decimal places.
func ParseAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("the provided amount is not a valid number")
	}

	return value, ValidateAmount(value)
}

func ValidateAmount(value decimal.Decimal) error {
	if value.Sign() <= 0 {
		return fmt.Errorf("the provided amount must be greater than zero")
	}

	if value.Exponent() < -2 {
		return fmt.Errorf("the provided amount cannot have more than two decimal places")
	}

	return nil
}

// RxEmail is a regex used to validate e-mail addresses, according with the reference https://www.alexedwards.net/blog/validation-snippets-for-go#email-validation.
// It's free to use under the [MIT Licence](https://opensource.org/licenses/MIT)
var rxEmail = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+\\/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if !rxEmail.MatchString(email) {
		return fmt.Errorf("the provided email is not valid")
	}

	return nil
}

// ValidateDNS will validate the given string as a DNS name
func ValidateDNS(domain string) error {
	isDNS := govalidator.IsDNSName(domain)
	if !isDNS {
		return fmt.Errorf("%q is not a valid DNS name", domain)
	}

	return nil
}

// ValidateBankCode validates a bank branch code (3 to 6 digits).
func ValidateBankCode(bankCode string) error {
	if bankCode == "" {
		return fmt.Errorf("bank code cannot be empty")
	}

	if !govalidator.IsNumeric(bankCode) || len(bankCode) < 3 || len(bankCode) > 6 {
		return fmt.Errorf("the provided bank code is not valid")
	}

	return nil
}

// ValidateBankAccountNumber validates a bank account number (6 to 17 digits).
func ValidateBankAccountNumber(accountNumber string) error {
	if accountNumber == "" {
		return fmt.Errorf("account number cannot be empty")
	}

	if !govalidator.IsNumeric(accountNumber) || len(accountNumber) < 6 || len(accountNumber) > 17 {
		return fmt.Errorf("the provided account number is not valid")
	}

	return nil
}
