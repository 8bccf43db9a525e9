package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/internal/crashtracker"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/message"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

// MinimumProcessorSecretKeyLength is the shortest accepted HMAC secret for the
// processor webhook channel. Shorter keys make signature forgery practical.
const MinimumProcessorSecretKeyLength = 16

func SetConfigOptionMessengerType(co *config.ConfigOption) error {
	senderType := viper.GetString(co.Name)

	messengerType, err := message.ParseMessengerType(senderType)
	if err != nil {
		return fmt.Errorf("couldn't parse messenger type: %w", err)
	}

	*(co.ConfigKey.(*message.MessengerType)) = messengerType
	return nil
}

func SetConfigOptionMetricType(co *config.ConfigOption) error {
	metricType := viper.GetString(co.Name)

	metricTypeParsed, err := monitor.ParseMetricType(metricType)
	if err != nil {
		return fmt.Errorf("couldn't parse metric type: %w", err)
	}

	*(co.ConfigKey.(*monitor.MetricType)) = metricTypeParsed
	return nil
}

func SetConfigOptionCrashTrackerType(co *config.ConfigOption) error {
	ctType := viper.GetString(co.Name)

	ctTypeParsed, err := crashtracker.ParseCrashTrackerType(ctType)
	if err != nil {
		return fmt.Errorf("couldn't parse crash tracker type: %w", err)
	}

	*(co.ConfigKey.(*crashtracker.CrashTrackerType)) = ctTypeParsed
	return nil
}

func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	// parse string to logLevel object
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level: %w", err)
	}

	// update the configKey
	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = logLevel

	// Log for debugging
	if config.IsExplicitlySet(co) {
		log.Debugf("Setting log level to: %q", logLevel)
		log.DefaultLogger.SetLevel(*key)
	} else {
		log.Debugf("Using default log level: %q", logLevel)
	}
	return nil
}

// SetConfigOptionEC256PublicKey parses the config option incoming value and validates if it is a valid EC256PublicKey.
func SetConfigOptionEC256PublicKey(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("not a valid EC256PublicKey: the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}

	publicKey := viper.GetString(co.Name)

	// We must remove the literal \n in case of the config options being set this way
	publicKey = strings.Replace(publicKey, `\n`, "\n", -1)

	_, err := utils.ParseStrongECPublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("parsing EC256PublicKey: %w", err)
	}

	*key = publicKey
	return nil
}

// SetConfigOptionEC256PrivateKey parses the config option incoming value and validates if it is a valid EC256PrivateKey.
func SetConfigOptionEC256PrivateKey(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("not a valid EC256PrivateKey: the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}

	privateKey := viper.GetString(co.Name)

	// The signing key is optional: without it the server only verifies tokens.
	if privateKey == "" {
		*key = ""
		return nil
	}

	// We must remove the literal \n in case of the config options being set this way
	privateKey = strings.Replace(privateKey, `\n`, "\n", -1)

	_, err := utils.ParseStrongECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("parsing EC256PrivateKey: %w", err)
	}

	*key = privateKey
	return nil
}

func SetCorsAllowedOrigins(co *config.ConfigOption) error {
	corsAllowedOriginsOptions := viper.GetString(co.Name)

	if corsAllowedOriginsOptions == "" {
		return fmt.Errorf("cors allowed addresses cannot be empty")
	}

	corsAllowedOrigins := strings.Split(corsAllowedOriginsOptions, ",")

	// validate addresses
	for _, address := range corsAllowedOrigins {
		_, err := url.ParseRequestURI(address)
		if err != nil {
			return fmt.Errorf("error parsing cors addresses: %w", err)
		}
		if address == "*" {
			log.Warn(`The value "*" for the CORS Allowed Origins is too permissive and not recommended.`)
		}
	}

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}
	*key = corsAllowedOrigins

	return nil
}

func SetConfigOptionURLString(co *config.ConfigOption) error {
	u := viper.GetString(co.Name)

	if u == "" {
		return fmt.Errorf("url cannot be empty")
	}

	_, err := url.ParseRequestURI(u)
	if err != nil {
		return fmt.Errorf("error parsing url: %w", err)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}
	*key = u

	return nil
}

// SetConfigOptionFeeRate parses a decimal rate and validates it is inside
// [0, 1). The platform fee is a fraction of the gross amount, never the whole
// of it.
func SetConfigOptionFeeRate(co *config.ConfigOption) error {
	rateStr := viper.GetString(co.Name)

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return fmt.Errorf("couldn't parse fee rate %q: %w", rateStr, err)
	}

	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee rate %q is out of range: must be in [0, 1)", rateStr)
	}

	key, ok := co.ConfigKey.(*decimal.Decimal)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a decimal, but got a %T instead", co.ConfigKey)
	}
	*key = rate

	return nil
}

// SetConfigOptionPayoutMethod parses the config option incoming value and validates it is a supported payout method.
func SetConfigOptionPayoutMethod(co *config.ConfigOption) error {
	methodStr := viper.GetString(co.Name)

	method := data.PayoutMethod(strings.ToUpper(methodStr))
	if err := method.Validate(); err != nil {
		return fmt.Errorf("couldn't parse payout method: %w", err)
	}

	key, ok := co.ConfigKey.(*data.PayoutMethod)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a payout method, but got a %T instead", co.ConfigKey)
	}
	*key = method

	return nil
}

// SetConfigOptionProcessorSecretKey validates the webhook HMAC secret length.
func SetConfigOptionProcessorSecretKey(co *config.ConfigOption) error {
	secretKey := viper.GetString(co.Name)

	if len(secretKey) < MinimumProcessorSecretKeyLength {
		return fmt.Errorf("processor secret key must be at least %d characters long", MinimumProcessorSecretKeyLength)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}
	*key = secretKey

	return nil
}
