// Package main implements memctl, an administration CLI for chatbot memories and profiles.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devxilz/mcp-chatbot/pkg/chatbot"
	"github.com/devxilz/mcp-chatbot/pkg/log"
)

var (
	// configPath is the chatbot configuration file, defaults apply when empty
	configPath string
	// userID scopes every memory and profile operation
	userID string
	// outputJSON switches output from tables to JSON
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Inspect and manage chatbot memories and profiles",
	Long: `memctl works directly against the stores configured for the chatbot.
It lists, searches, adds and deletes long-term memories, edits user
profiles and runs one-off turns.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(log.SetupWithOutput(log.Config{Level: log.ErrorLevel, Format: log.TextFormat}, cmd.ErrOrStderr()))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "default-user", "User identifier")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(healthCmd)
}

// healthCmd checks that the configured stores open
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the configured chatbot starts",
	Long: `Open every configured store and report the service health.

Examples:
  memctl health --config configs/chatbot.yaml`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		h := svc.Health()
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), h)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", h.App, h.Version, h.Status)
		return nil
	})
}

// withService opens the configured chatbot for the duration of fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *chatbot.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := chatbot.NewFromConfigFile(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to open chatbot: %w", err)
	}
	defer svc.Close()
	return fn(ctx, svc)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to max runes for table output.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
