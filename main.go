package main

import (
	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/cmd"
	cmdUtils "github.com/sebenzapay/escrow-platform-backend/cmd/utils"
)

// Version is the official version of this application.
const Version = "1.0.0"

// GitCommit is populated at build time by
// go build -ldflags "-X main.GitCommit=$GIT_COMMIT"
var GitCommit string

func main() {
	preConfigureLogger()

	if err := cmdUtils.LoadEnvFile(); err != nil {
		log.Warnf("Error loading env file: %s", err.Error())
	}

	rootCmd := cmd.SetupCLI(Version, GitCommit)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing root command: %s", err.Error())
	}
}

// preConfigureLogger will set the log level to Trace, so logs works from the
// start. This will eventually be overwritten in cmd/root.go
func preConfigureLogger() {
	log.DefaultLogger = log.New()
	log.DefaultLogger.SetLevel(logrus.TraceLevel)
}
