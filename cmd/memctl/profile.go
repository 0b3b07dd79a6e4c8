package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devxilz/mcp-chatbot/pkg/chatbot"
)

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show and edit user profiles",
	Long: `Manage the structured profile kept for each user.

Examples:
  memctl profile show --user alice
  memctl profile set --user alice name Alice
  memctl profile set --user alice likes '["running","tea"]'
  memctl profile delete --user alice`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a user's profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one profile field",
	Long: `Set one profile field. Values that parse as JSON are stored as JSON
values, anything else is stored as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: runProfileSet,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a user's profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileDelete,
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		p, err := svc.Profile(ctx, userID)
		if err != nil {
			return fmt.Errorf("profile load failed: %w", err)
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), p)
		}
		if len(p) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Profile is empty.")
			return nil
		}

		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%v\n", k, p[k])
		}
		return w.Flush()
	})
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	var value interface{}
	if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
		value = args[1]
	}
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		if err := svc.PatchProfile(ctx, userID, key, value); err != nil {
			return fmt.Errorf("profile update failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s for %s\n", key, userID)
		return nil
	})
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		if err := svc.DeleteProfile(ctx, userID); err != nil {
			return fmt.Errorf("profile delete failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile for %s\n", userID)
		return nil
	})
}
