package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/config"
	"github.com/andrew/emma/pkg/logging"
	"github.com/andrew/emma/pkg/store"
)

var (
	// Global flags
	configPath string
	debug      bool

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
)

var rootCmd = &cobra.Command{
	Use:   "emma",
	Short: "Emma - chat with a local Ollama model",
	Long: `Emma is a terminal chat assistant backed by a local Ollama server.

Conversations are saved as they happen and can be resumed later.
Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging and verbose requests")

	addChatFlags(rootCmd)
	addChatFlags(chatCmd)

	personalitiesCmd.Flags().BoolVarP(&listPersonalities, "list", "l", false, "List the available personalities")
	personalitiesCmd.Flags().StringVarP(&viewPersonality, "view", "v", "", "Show the prompt of a personality")
	personalitiesCmd.Flags().StringVarP(&removePersonality, "remove", "r", "", "Remove a personality")
	personalitiesCmd.Flags().BoolVarP(&addPersonality, "add", "a", false, "Add a personality, prompting for its name and prompt")

	rootCmd.AddCommand(chatCmd, conversationsCmd, personalitiesCmd, configureCmd)
}

// setup loads the configuration and builds the logger. The config is read
// with a console-only logger because the log directory comes from it.
func setup() error {
	boot, closeBoot, err := logging.New(debug, "")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg, err = config.Load(configPath, boot)
	_ = closeBoot()
	if err != nil {
		return err
	}
	if debug {
		cfg.Verbose = true
	}
	logger, closeLog, err = logging.New(cfg.Verbose, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func openStore() (store.Store, error) {
	policy := store.SkipCorrupt
	if cfg.StrictListing {
		policy = store.FailOnCorrupt
	}
	return store.Open(store.Options{
		Backend: cfg.StorageBackend,
		Dir:     cfg.ConversationDir,
		Policy:  policy,
		Logger:  logger,
	})
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if closeLog != nil {
		_ = closeLog()
	}
	if err != nil {
		cancel()
		os.Exit(1)
	}
}
