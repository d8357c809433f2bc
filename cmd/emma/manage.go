package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List saved conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runConversations,
}

var (
	listPersonalities bool
	viewPersonality   string
	removePersonality string
	addPersonality    bool
)

var personalitiesCmd = &cobra.Command{
	Use:   "personalities",
	Short: "Manage the assistant personalities",
	Long: `Lists, shows, adds or removes personality presets stored in the config file.

Example:
  emma personalities --view concise
  emma personalities --add
  emma personalities --remove pirate`,
	Args: cobra.NoArgs,
	RunE: runPersonalities,
}

func runConversations(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	printConversations(cmd.OutOrStdout(), list)
	return nil
}

func runPersonalities(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch {
	case viewPersonality != "":
		prompt, ok := cfg.Personality(viewPersonality)
		if !ok {
			return fmt.Errorf("personality %q does not exist", viewPersonality)
		}
		panel(out, "Personality: "+viewPersonality, prompt, boldGreen)
	case addPersonality:
		return runAddPersonality(cmd)
	case removePersonality != "":
		if !cfg.RemovePersonality(removePersonality) {
			return fmt.Errorf("could not remove personality %q", removePersonality)
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		boldGreen.Fprintf(out, "Personality '%s' removed.\n", removePersonality)
	default:
		printPersonalities(out, cfg)
	}
	return nil
}

func runAddPersonality(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)

	name, err := p.ask("Name of the new personality", "")
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("personality name must not be empty")
	}
	if _, exists := cfg.Personality(name); exists {
		overwrite, err := p.confirm(fmt.Sprintf("Personality '%s' already exists. Overwrite it?", name), false)
		if err != nil {
			return err
		}
		if !overwrite {
			return nil
		}
	}

	prompt, err := p.ask("System prompt for this personality", "")
	if err != nil {
		return err
	}
	if prompt == "" {
		return fmt.Errorf("personality prompt must not be empty")
	}

	cfg.AddPersonality(name, prompt)
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	boldGreen.Fprintf(out, "Personality '%s' added.\n", name)
	return nil
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Edit the main settings interactively",
	Long: `Asks for the model, generation and server settings and saves them to the
config file. Press Enter to keep the value shown in brackets.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := newPrompter(cmd.InOrStdin(), out)
	next := *cfg

	boldCyan.Fprintln(out, "Model")
	model, err := p.ask("Model", next.Model)
	if err != nil {
		return err
	}
	next.Model = model

	temp, err := p.ask("Temperature", strconv.FormatFloat(next.Temperature, 'g', -1, 64))
	if err != nil {
		return err
	}
	if next.Temperature, err = strconv.ParseFloat(temp, 64); err != nil {
		return fmt.Errorf("invalid temperature %q: %w", temp, err)
	}

	tokens, err := p.ask("Max tokens", strconv.Itoa(next.MaxTokens))
	if err != nil {
		return err
	}
	if next.MaxTokens, err = strconv.Atoi(tokens); err != nil {
		return fmt.Errorf("invalid max tokens %q: %w", tokens, err)
	}

	boldCyan.Fprintln(out, "Conversation")
	if next.SystemPrompt, err = p.ask("System prompt", next.SystemPrompt); err != nil {
		return err
	}
	if next.SaveConversations, err = p.confirm("Save conversations?", next.SaveConversations); err != nil {
		return err
	}

	boldCyan.Fprintln(out, "Ollama")
	if next.OllamaHost, err = p.ask("Ollama host", next.OllamaHost); err != nil {
		return err
	}

	if err := next.Validate(); err != nil {
		return err
	}
	if err := next.Save(configPath); err != nil {
		return err
	}
	*cfg = next
	boldGreen.Fprintln(out, "Configuration saved.")
	return nil
}
