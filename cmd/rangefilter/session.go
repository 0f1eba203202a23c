package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the saved filter session",
	Args:  cobra.NoArgs,
	RunE:  withEnv(runSession),
}

func init() {
	sessionCmd.Flags().StringVar(&applyFormat, "format", "text", "output format: text, json, yaml")
}

func runSession(ctx context.Context, _ *cobra.Command, _ []string, e *env) error {
	sess := e.sessionStore().Load(ctx)
	if applyFormat != "text" {
		return encode(os.Stdout, sess)
	}
	switch {
	case sess == nil:
		fmt.Println("No saved filter.")
	case sess.Range == nil:
		fmt.Printf("%s (saved %s)\n", sess.Label, sess.SavedAt.Local().Format("2006-01-02 15:04"))
	default:
		fmt.Printf("%s: %s (saved %s)\n", sess.Label, sess.Range, sess.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
