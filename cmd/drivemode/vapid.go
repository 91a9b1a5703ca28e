package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/drivemode/internal/push"
)

func vapidKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "DRIVEMODE_PUSH_VAPID_PUBLIC_KEY=%s\n", pub)
			fmt.Fprintf(out, "DRIVEMODE_PUSH_VAPID_PRIVATE_KEY=%s\n", priv)
			return nil
		},
	}
}
