package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/devxilz/mcp-chatbot/pkg/chatbot"
	"github.com/devxilz/mcp-chatbot/pkg/config"
	"github.com/devxilz/mcp-chatbot/pkg/log"
)

// historyFile is the file where command history is stored
const historyFile = ".chatbot_history"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults apply when empty)")
	stdinMode := flag.Bool("s", false, "Read from stdin and exit when complete")
	userID := flag.String("user", "default-user", "User ID to chat as")
	sessionID := flag.String("session", "default-session", "Session ID")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Setup(log.Config{
		Level:  log.Level(strings.ToLower(cfg.Logging.Level)),
		Format: log.Format(strings.ToLower(cfg.Logging.Format)),
	})
	log.Info("Starting chat client", "app", cfg.App.Name, "version", cfg.App.Version)

	ctx := context.Background()
	svc, err := chatbot.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Error("Failed to initialize chatbot", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	r := newREPL(svc, os.Stdout, *userID, *sessionID)
	r.banner(cfg)

	if *stdinMode {
		runStdin(ctx, r, os.Stdin)
		return
	}
	runInteractive(ctx, r)
}

// runStdin feeds every non-comment line of in to the REPL.
func runStdin(ctx context.Context, r *repl, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" || strings.HasPrefix(input, "#") || strings.HasPrefix(input, "//") {
			continue
		}
		fmt.Fprintf(r.out, "%s%s\n", r.prompt(), input)
		if !r.handle(ctx, input) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(r.out, "Error reading stdin: %v\n", err)
	}
	fmt.Fprintln(r.out, "Goodbye!")
}

func runInteractive(ctx context.Context, r *repl) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)
	line.SetCompleter(func(input string) (c []string) {
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, input) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		input, err := line.Prompt(r.prompt())
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(r.out, "Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !r.handle(ctx, input) {
			return
		}
	}
}
