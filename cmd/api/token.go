package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"virtual-mentor/internal/auth"
	"virtual-mentor/internal/rbac"
)

var (
	flagSubject string
	flagRole    string
	flagTTL     time.Duration
)

// tokenCmd mints service tokens for the voice agent and admin tooling.
// There is no login endpoint; identities are provisioned out of band.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !rbac.IsKnownRole(flagRole) {
			return fmt.Errorf("unknown role %q (want admin, agent or member)", flagRole)
		}
		if flagSubject == "" {
			return fmt.Errorf("--subject is required")
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return err
		}
		tok, err := m.IssueService(time.Now(), flagSubject, flagRole, flagTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagSubject, "subject", "", "User id or service name the token is issued to")
	tokenCmd.Flags().StringVar(&flagRole, "role", rbac.RoleAgent, "Role: admin, agent or member")
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", 30*24*time.Hour, "Token lifetime")
}
