package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devxilz/mcp-chatbot/pkg/chatbot"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

var (
	recallLimit int
	searchK     int
	addSession  string
	addType     string
	turnSession string
)

func init() {
	recallCmd.Flags().IntVar(&recallLimit, "limit", 20, "Maximum number of memories to list")
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", 5, "Number of candidates to retrieve")
	addCmd.Flags().StringVar(&addSession, "session", "memctl", "Session the memory is attributed to")
	addCmd.Flags().StringVar(&addType, "type", string(ltm.TypeFact), "Memory type")
	turnCmd.Flags().StringVar(&turnSession, "session", "memctl", "Session identifier")

	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(turnCmd)
}

var recallCmd = &cobra.Command{
	Use:   "recall",
	Short: "List a user's stored memories",
	Long: `List the long-term memories stored for a user.

Examples:
  memctl recall --user alice
  memctl recall --user alice --limit 5 --json`,
	Args: cobra.NoArgs,
	RunE: runRecall,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search a user's memories with reranking",
	Long: `Retrieve the nearest memories for a query and show both the raw
vector distance and the final reranked score.

Examples:
  memctl search --user alice "running plans"
  memctl search --user alice -k 10 --json marathon`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Store a memory directly",
	Long: `Store a memory for a user without going through the write decision engine.

Examples:
  memctl add --user alice --type preference "prefers trail running"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete memories by id",
	Long: `Delete one or more memories. Unknown ids are ignored.

Examples:
  memctl delete 3f1c0d7e-7d2b-4f4e-9a57-0c3b1d7e2a11`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

var turnCmd = &cobra.Command{
	Use:   "turn <message>",
	Short: "Run a single conversational turn",
	Long: `Send one message through the full turn pipeline and print the reply
with the write decision taken for the message.

Examples:
  memctl turn --user alice "I want to run a marathon next year"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

func runRecall(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		records, err := svc.Recall(ctx, userID, recallLimit)
		if err != nil {
			return fmt.Errorf("recall failed: %w", err)
		}
		if outputJSON {
			for i := range records {
				records[i].Embedding = nil
			}
			return writeJSON(cmd.OutOrStdout(), records)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No memories found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tIMPORTANCE\tCREATED\tTEXT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
				r.ID, r.Metadata.Type, r.Metadata.Importance, formatTime(r.Metadata.CreatedAt), truncate(r.Text, 60))
		}
		return w.Flush()
	})
}

type searchResult struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Type     string  `json:"type"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		_, ranked, err := svc.SearchRanked(ctx, userID, query, searchK)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		results := make([]searchResult, 0, len(ranked))
		for _, s := range ranked {
			results = append(results, searchResult{
				ID:       s.ID,
				Text:     s.Text,
				Type:     string(s.Metadata.Type),
				Distance: s.Distance,
				Score:    s.Score,
			})
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tSCORE\tDISTANCE\tID\tTEXT")
		for i, r := range results {
			fmt.Fprintf(w, "%d\t%.3f\t%.3f\t%s\t%s\n", i+1, r.Score, r.Distance, r.ID, truncate(r.Text, 60))
		}
		return w.Flush()
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		id, err := svc.Memories().Add(ctx, userID, addSession, text, ltm.ParseMemoryType(addType), nil)
		if err != nil {
			return fmt.Errorf("add failed: %w", err)
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), map[string]string{"id": id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		for _, id := range args {
			if err := svc.DeleteMemory(ctx, id); err != nil {
				return fmt.Errorf("delete %s failed: %w", id, err)
			}
			if !outputJSON {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
		}
		if outputJSON {
			return writeJSON(cmd.OutOrStdout(), map[string][]string{"deleted": args})
		}
		return nil
	})
}

func runTurn(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	return withService(cmd, func(ctx context.Context, svc *chatbot.Service) error {
		reply, err := svc.Turn(ctx, userID, turnSession, message)
		if err != nil {
			reply = chatbot.FailureReply(err)
		}
		if outputJSON {
			if werr := writeJSON(cmd.OutOrStdout(), reply); werr != nil {
				return werr
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			if !reply.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "-- %s", reply.Decision.Action)
				if reply.Decision.MemoryID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " %s", reply.Decision.MemoryID)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
		}
		return err
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
