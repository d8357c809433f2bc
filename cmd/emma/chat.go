package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/config"
	"github.com/andrew/emma/pkg/llm"
	"github.com/andrew/emma/pkg/models"
	"github.com/andrew/emma/pkg/session"
)

var (
	chatModel       string
	chatTemperature float64
	chatPersonality string
	chatConvID      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&chatModel, "model", "", "Ollama model to use")
	cmd.Flags().Float64Var(&chatTemperature, "temperature", 0, "Sampling temperature")
	cmd.Flags().StringVar(&chatPersonality, "personality", config.DefaultPersonality, "Assistant personality")
	cmd.Flags().StringVar(&chatConvID, "conversation-id", "", "Saved conversation to resume")
}

var (
	boldGreen  = color.New(color.FgGreen, color.Bold)
	boldCyan   = color.New(color.FgCyan, color.Bold)
	boldBlue   = color.New(color.FgBlue, color.Bold)
	boldYellow = color.New(color.FgYellow, color.Bold)
	boldRed    = color.New(color.FgRed, color.Bold)
	faint      = color.New(color.Faint)
)

const probeTimeout = 2 * time.Second

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = chatModel
	}
	if flags.Changed("temperature") {
		cfg.Temperature = chatTemperature
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	client, err := llm.NewOllamaClient(cfg.Model, cfg.OllamaHost, llm.WithAPIKey(cfg.APIKey))
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	_, err = client.Version(probeCtx)
	cancel()
	if err != nil {
		boldRed.Fprintf(os.Stderr, "Could not connect to Ollama at %s. Make sure it is running with: ollama serve\n", cfg.OllamaHost)
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sess := session.New(ctx, cfg, client, st, logger)
	out := cmd.OutOrStdout()

	if chatPersonality != config.DefaultPersonality {
		if sess.ChangePersonality(chatPersonality) {
			boldGreen.Fprintf(out, "Personality changed to: %s\n", chatPersonality)
		} else {
			boldYellow.Fprintf(out, "Could not switch to personality: %s\n", chatPersonality)
		}
	}
	if chatConvID != "" {
		if sess.LoadConversation(chatConvID) {
			boldGreen.Fprintf(out, "Conversation loaded: %s\n", chatConvID)
		} else {
			boldYellow.Fprintf(out, "Could not load conversation: %s\n", chatConvID)
		}
	}

	r := &repl{
		session: sess,
		cfg:     cfg,
		client:  client,
		in:      cmd.InOrStdin(),
		out:     out,
		logger:  logger,
	}
	return r.run(ctx)
}

// repl reads user lines, dispatches slash commands and prints replies
type repl struct {
	session *session.Session
	cfg     *config.Config
	client  llm.Client
	in      io.Reader
	out     io.Writer
	logger  *zap.Logger
}

func (r *repl) run(ctx context.Context) error {
	r.welcome()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		fmt.Fprintln(r.out)
		boldGreen.Fprintf(r.out, "%s: ", r.cfg.UserName)

		var input string
		select {
		case <-ctx.Done():
			boldYellow.Fprintln(r.out, "\nSession ended by user.")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		if !r.handle(ctx, input) {
			boldYellow.Fprintln(r.out, "Goodbye!")
			return nil
		}
	}
}

// handle processes one line and reports whether the loop should continue
func (r *repl) handle(ctx context.Context, input string) bool {
	lower := strings.ToLower(input)
	switch {
	case lower == "exit" || lower == "quit":
		return false
	case lower == "clear":
		r.clear()
	case lower == "help":
		r.help()
	case strings.HasPrefix(lower, "/personality"):
		r.personality(input)
	case strings.HasPrefix(lower, "/conversations"):
		r.conversations()
	case strings.HasPrefix(lower, "/history"):
		r.history()
	case strings.HasPrefix(lower, "/system"):
		r.system(ctx)
	default:
		r.reply(r.session.GetResponse(ctx, input))
	}
	return true
}

func (r *repl) welcome() {
	boldGreen.Fprintln(r.out, "Emma - Ollama chat")
	fmt.Fprintf(r.out, "Model: %s\n", boldCyan.Sprint(r.cfg.Model))
	fmt.Fprintf(r.out, "Temperature: %.2f, Max tokens: %d\n", r.cfg.Temperature, r.cfg.MaxTokens)
	fmt.Fprintln(r.out, "Type 'help' for commands, 'exit' or Ctrl+C to quit.")
}

// clearScreen homes the cursor and erases the terminal
const clearScreen = "\033[H\033[2J"

func (r *repl) clear() {
	fmt.Fprint(r.out, clearScreen)
	r.welcome()
}

func (r *repl) reply(text string) {
	if !r.cfg.UsePanels {
		fmt.Fprintf(r.out, "%s %s\n", boldBlue.Sprint("Emma:"), text)
		return
	}
	panel(r.out, "Emma", text, boldBlue)
}

func (r *repl) help() {
	panel(r.out, "Help", `Basics:
  exit, quit                  Leave Emma
  clear                       Clear the screen
  help                        Show this help

Personalities:
  /personality list           List available personalities
  /personality set <name>     Switch personality (starts a new conversation)
  /personality info <name>    Show a personality's prompt

Conversations:
  /conversations              List saved conversations
  /history                    Show the latest messages of this conversation

System:
  /system                     Show model and server details`, boldBlue)
}

func (r *repl) personality(input string) {
	parts := strings.SplitN(input, " ", 3)
	if len(parts) < 2 {
		boldRed.Fprintln(r.out, "Incomplete command. Type 'help' for the syntax.")
		return
	}

	switch sub := strings.ToLower(parts[1]); {
	case sub == "list":
		printPersonalities(r.out, r.cfg)
	case sub == "set" && len(parts) == 3:
		name := strings.TrimSpace(parts[2])
		if r.session.ChangePersonality(name) {
			boldGreen.Fprintf(r.out, "Personality changed to: %s\n", name)
		} else {
			boldRed.Fprintf(r.out, "Could not switch to personality: %s\n", name)
		}
	case sub == "info" && len(parts) == 3:
		name := strings.TrimSpace(parts[2])
		prompt, ok := r.cfg.Personality(name)
		if !ok {
			boldRed.Fprintf(r.out, "Personality '%s' does not exist.\n", name)
			return
		}
		panel(r.out, "Personality: "+name, prompt, boldGreen)
	default:
		boldRed.Fprintln(r.out, "Unknown personality command.")
	}
}

func (r *repl) conversations() {
	list, ok := r.session.ListConversations()
	if !ok {
		boldRed.Fprintln(r.out, "Could not list conversations.")
		return
	}
	printConversations(r.out, list)
}

func (r *repl) history() {
	conv := r.session.Conversation()
	for _, m := range conv.LastMessages(r.cfg.ChatHistoryLimit) {
		if m.Role == models.RoleSystem {
			continue
		}
		c := boldGreen
		if m.Role == models.RoleAssistant {
			c = boldBlue
		}
		fmt.Fprintf(r.out, "%s %s %s\n", faint.Sprint(m.Timestamp), c.Sprintf("%s:", m.Role), m.Content)
	}
}

func (r *repl) system(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	version, err := r.client.Version(ctx)
	if err != nil {
		r.logger.Warn("could not check Ollama version", zap.Error(err))
		version = "unavailable"
	}
	fmt.Fprintf(r.out, "Ollama host:   %s\n", r.cfg.OllamaHost)
	fmt.Fprintf(r.out, "Ollama:        %s\n", version)
	fmt.Fprintf(r.out, "Model:         %s\n", r.cfg.Model)
	fmt.Fprintf(r.out, "Storage:       %s (%s)\n", r.cfg.StorageBackend, r.cfg.ConversationDir)
	fmt.Fprintf(r.out, "Conversation:  %s\n", r.session.Conversation().ID)
}

func printPersonalities(w io.Writer, c *config.Config) {
	names := make([]string, 0, len(c.Personalities))
	for name := range c.Personalities {
		names = append(names, name)
	}
	sort.Strings(names)

	boldCyan.Fprintln(w, "Available personalities")
	for _, name := range names {
		prompt := c.Personalities[name]
		if len([]rune(prompt)) > 50 {
			prompt = string([]rune(prompt)[:50]) + "..."
		}
		fmt.Fprintf(w, "  %-14s %s\n", boldCyan.Sprint(name), prompt)
	}
}

func printConversations(w io.Writer, list []models.ConversationSummary) {
	if len(list) == 0 {
		boldYellow.Fprintln(w, "No saved conversations.")
		return
	}
	boldCyan.Fprintln(w, "Saved conversations")
	for _, s := range list {
		fmt.Fprintf(w, "  %s  %s  %3d msgs  %s\n", boldCyan.Sprint(s.ID), faint.Sprint(s.UpdatedAt), s.MessageCount, s.Preview)
	}
}

// panel frames text under a colored title rule
func panel(w io.Writer, title, body string, c *color.Color) {
	const width = 40
	pad := width - len([]rune(title))
	if pad < 3 {
		pad = 3
	}
	c.Fprintf(w, "── %s %s\n", title, strings.Repeat("─", pad))
	fmt.Fprintln(w, body)
	c.Fprintln(w, strings.Repeat("─", width))
}
