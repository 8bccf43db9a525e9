package cmd

import (
	"fmt"
	"go/types"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/sebenzapay/escrow-platform-backend/cmd/utils"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
)

type AuthCommand struct{}

func (a *AuthCommand) Command() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.DefaultPersistentPreRun(cmd, args)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			err := cmd.Help()
			if err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}
	authCmd.AddCommand(a.tokenCmd())

	return authCmd
}

// tokenCmd mints an API token signed with the EC256 private key. Meant for
// development and operational tooling, not for end users.
func (a *AuthCommand) tokenCmd() *cobra.Command {
	var ec256PublicKey, ec256PrivateKey string
	var userID, email, rolesStr string
	var expiresInHours int

	configOpts := config.ConfigOptions{
		{
			Name:           "ec256-public-key",
			Usage:          "The EC256 Public Key. This key is used to validate the signature of the API request tokens.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PublicKey,
			ConfigKey:      &ec256PublicKey,
			Required:       true,
		},
		{
			Name:           "ec256-private-key",
			Usage:          "The EC256 Private Key. This key is used to sign the minted token.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PrivateKey,
			ConfigKey:      &ec256PrivateKey,
			Required:       true,
		},
		{
			Name:        "user-id",
			Usage:       "The ID the token's subject claim is set to",
			OptType:     types.String,
			ConfigKey:   &userID,
			FlagDefault: "dev-user",
			Required:    true,
		},
		{
			Name:      "email",
			Usage:     "The email claim of the token's subject",
			OptType:   types.String,
			ConfigKey: &email,
			Required:  false,
		},
		{
			Name:        "roles",
			Usage:       fmt.Sprintf("Comma-separated roles granted to the token. Options: %v", data.GetAllRoles()),
			OptType:     types.String,
			ConfigKey:   &rolesStr,
			FlagDefault: string(data.AdminUserRole),
			Required:    true,
		},
		{
			Name:        "expires-in-hours",
			Usage:       "How many hours from now the token expires",
			OptType:     types.Int,
			ConfigKey:   &expiresInHours,
			FlagDefault: 24,
			Required:    true,
		},
	}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed API token for the given user and roles",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Parent().PersistentPreRun != nil {
				cmd.Parent().PersistentPreRun(cmd.Parent(), args)
			}
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			roles := []data.UserRole{}
			for _, roleStr := range strings.Split(rolesStr, ",") {
				role := data.UserRole(strings.TrimSpace(roleStr))
				if !role.IsValid() {
					log.Ctx(ctx).Fatalf("Invalid role %q. Valid roles: %v", roleStr, data.GetAllRoles())
				}
				roles = append(roles, role)
			}

			jwtManager, err := auth.NewJWTManager(ec256PublicKey, ec256PrivateKey)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error creating JWT manager: %s", err.Error())
			}

			user := &auth.User{
				ID:    userID,
				Email: email,
				Roles: data.FromUserRoleArrayToStringArray(roles),
			}
			expiresAt := time.Now().Add(time.Duration(expiresInHours) * time.Hour)
			token, err := jwtManager.GenerateToken(user, expiresAt)
			if err != nil {
				log.Ctx(ctx).Fatalf("Error generating token: %s", err.Error())
			}

			log.Ctx(ctx).Infof("Token for user %q with roles %v, expiring at %s:", user.ID, user.Roles, expiresAt.Format(time.RFC3339))
			fmt.Fprintln(cmd.OutOrStdout(), token)
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
