package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/chatbot"
	"github.com/devxilz/mcp-chatbot/pkg/config"
)

// commands is the completion list for the interactive prompt
var commands = []string{
	"!help", "!quit", "!exit", "!user", "!session", "!recall",
	"!search", "!forget", "!profile", "!stream", "!health",
}

// repl holds the chat state shared by the interactive and stdin modes.
type repl struct {
	svc       *chatbot.Service
	out       io.Writer
	userID    string
	sessionID string
	stream    bool
}

func newREPL(svc *chatbot.Service, out io.Writer, userID, sessionID string) *repl {
	return &repl{svc: svc, out: out, userID: userID, sessionID: sessionID}
}

func (r *repl) prompt() string {
	return fmt.Sprintf("[%s/%s]> ", r.userID, r.sessionID)
}

func (r *repl) banner(cfg *config.Config) {
	fmt.Fprintf(r.out, "%s %s\n", cfg.App.Name, cfg.App.Version)
	fmt.Fprintf(r.out, "memory: %s  reasoning: %s  store: %s\n",
		cfg.Memory.Backend, cfg.Reasoning.Provider, cfg.Store.Driver)
	fmt.Fprintln(r.out, "Type !help for commands, !quit to exit.")
}

// handle processes one line of input. It returns false when the REPL should exit.
func (r *repl) handle(ctx context.Context, input string) bool {
	if strings.HasPrefix(input, "!") {
		return r.command(ctx, input)
	}
	r.chat(ctx, input)
	return true
}

func (r *repl) chat(ctx context.Context, message string) {
	if r.stream {
		ch, err := r.svc.StreamTurn(ctx, r.userID, r.sessionID, message)
		if err != nil {
			fmt.Fprintln(r.out, chatbot.FailureReply(err).Text)
			return
		}
		for chunk := range ch {
			if chunk.Err != nil {
				fmt.Fprintln(r.out)
				fmt.Fprintln(r.out, chatbot.FailureReply(chunk.Err).Text)
				return
			}
			if chunk.Done {
				break
			}
			fmt.Fprint(r.out, chunk.Text)
		}
		fmt.Fprintln(r.out)
		return
	}

	reply, err := r.svc.Turn(ctx, r.userID, r.sessionID, message)
	if err != nil {
		fmt.Fprintln(r.out, chatbot.FailureReply(err).Text)
		return
	}
	fmt.Fprintln(r.out, reply.Text)
}

func (r *repl) command(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "!quit", "!exit":
		fmt.Fprintln(r.out, "Goodbye!")
		return false

	case "!help":
		r.help()

	case "!user":
		if len(args) != 1 {
			fmt.Fprintf(r.out, "Current user: %s\n", r.userID)
			return true
		}
		r.userID = args[0]
		fmt.Fprintf(r.out, "Switched to user: %s\n", r.userID)

	case "!session":
		if len(args) != 1 {
			fmt.Fprintf(r.out, "Current session: %s\n", r.sessionID)
			return true
		}
		r.sessionID = args[0]
		fmt.Fprintf(r.out, "Switched to session: %s\n", r.sessionID)

	case "!recall":
		limit := 10
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				fmt.Fprintln(r.out, "Usage: !recall [limit]")
				return true
			}
			limit = n
		}
		records, err := r.svc.Recall(ctx, r.userID, limit)
		if err != nil {
			fmt.Fprintf(r.out, "Recall failed: %v\n", err)
			return true
		}
		if len(records) == 0 {
			fmt.Fprintln(r.out, "No memories.")
			return true
		}
		for _, rec := range records {
			fmt.Fprintf(r.out, "%s  [%s %.2f]  %s\n", rec.ID, rec.Metadata.Type, rec.Metadata.Importance, rec.Text)
		}

	case "!search":
		if len(args) == 0 {
			fmt.Fprintln(r.out, "Usage: !search <query>")
			return true
		}
		_, ranked, err := r.svc.SearchRanked(ctx, r.userID, strings.Join(args, " "), 5)
		if err != nil {
			fmt.Fprintf(r.out, "Search failed: %v\n", err)
			return true
		}
		if len(ranked) == 0 {
			fmt.Fprintln(r.out, "No matches.")
			return true
		}
		for i, s := range ranked {
			fmt.Fprintf(r.out, "%d. %.3f  %s  %s\n", i+1, s.Score, s.ID, s.Text)
		}

	case "!forget":
		if len(args) != 1 {
			fmt.Fprintln(r.out, "Usage: !forget <memory-id>")
			return true
		}
		if err := r.svc.DeleteMemory(ctx, args[0]); err != nil {
			fmt.Fprintf(r.out, "Delete failed: %v\n", err)
			return true
		}
		fmt.Fprintf(r.out, "Forgot %s\n", args[0])

	case "!profile":
		p, err := r.svc.Profile(ctx, r.userID)
		if err != nil {
			fmt.Fprintf(r.out, "Profile failed: %v\n", err)
			return true
		}
		if len(p) == 0 {
			fmt.Fprintln(r.out, "Profile is empty.")
			return true
		}
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(r.out, "%s: %v\n", k, p[k])
		}

	case "!stream":
		r.stream = !r.stream
		state := "off"
		if r.stream {
			state = "on"
		}
		fmt.Fprintf(r.out, "Streaming %s\n", state)

	case "!health":
		h := r.svc.Health()
		fmt.Fprintf(r.out, "%s %s: %s\n", h.App, h.Version, h.Status)

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (try !help)\n", cmd)
	}
	return true
}

func (r *repl) help() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  !help              Show this help")
	fmt.Fprintln(r.out, "  !quit, !exit       Exit")
	fmt.Fprintln(r.out, "  !user [id]         Show or switch the user")
	fmt.Fprintln(r.out, "  !session [id]      Show or switch the session")
	fmt.Fprintln(r.out, "  !recall [n]        List stored memories")
	fmt.Fprintln(r.out, "  !search <query>    Ranked memory search")
	fmt.Fprintln(r.out, "  !forget <id>       Delete a memory")
	fmt.Fprintln(r.out, "  !profile           Show the user profile")
	fmt.Fprintln(r.out, "  !stream            Toggle streamed replies")
	fmt.Fprintln(r.out, "  !health            Service health")
	fmt.Fprintln(r.out, "Anything else is sent to the assistant.")
}
