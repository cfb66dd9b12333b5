package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Close stale sessions whose LiveKit room no longer exists",
	Long: "Runs one reconciliation sweep: every open session older than RECONCILE_STALE_AFTER\n" +
		"whose room is gone at the provider is closed as ended or missed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openDeps(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer deps.Close()

		svc, err := buildServices(cmd.Context(), deps)
		if err != nil {
			return err
		}
		defer svc.Close()
		if svc.sweeper == nil {
			return errors.New("reconcile requires LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET")
		}

		res, err := svc.sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
