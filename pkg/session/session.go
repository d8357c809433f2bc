// Package session drives one conversation with the inference backend: it
// routes each prompt, generates replies and persists the transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/config"
	"github.com/andrew/emma/pkg/llm"
	"github.com/andrew/emma/pkg/models"
	"github.com/andrew/emma/pkg/router"
	"github.com/andrew/emma/pkg/store"
)

// Apology is the reply used when the backend answered without any text
const Apology = "Sorry, I couldn't generate a response."

// versionProbeTimeout bounds the startup reachability check
const versionProbeTimeout = 2 * time.Second

const lookupInstructions = `

Your task is to analyze the user's prompt and decide whether it requires a search.
If the prompt needs information that is not in your base knowledge, use the following commands:

For internet/wikipedia searches:
<search>search term</search>

For searches in your own internal memory:
<memory>search term</memory>

For database/API lookups:
<query>search term</query>

Examples of prompts that require a search:
- "What is the capital of France?" -> <search>capital of France</search>
- "What is Python?" -> <search>Python programming language</search>
- "What was my last conversation about AI?" -> <memory>last conversation AI</memory>

If the prompt does not require a search, answer normally.
`

// State is the step of the turn currently being processed
type State int

const (
	Idle State = iota
	AwaitingAnalysis
	RoutingLookup
	GeneratingReply
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAnalysis:
		return "awaiting_analysis"
	case RoutingLookup:
		return "routing_lookup"
	case GeneratingReply:
		return "generating_reply"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session owns one conversation at a time. It is not safe for concurrent
// use; callers drive one turn at a time.
type Session struct {
	cfg          *config.Config
	client       llm.Client
	router       *router.Router
	store        store.Store
	logger       *zap.Logger
	conversation *models.Conversation
	state        State
}

// Option configures a Session
type Option func(*Session)

// WithRouter replaces the default router built on the session's client
func WithRouter(r *router.Router) Option {
	return func(s *Session) {
		s.router = r
	}
}

// New starts a session with a fresh conversation. st may be nil, in which
// case nothing is persisted.
func New(ctx context.Context, cfg *config.Config, client llm.Client, st store.Store, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:    cfg,
		client: client,
		store:  st,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = router.New(client, logger)
	}

	s.conversation = models.NewConversation(SystemPrompt(cfg))

	if cfg.Verbose {
		s.checkVersion(ctx)
	}
	return s
}

// SystemPrompt builds the prompt a new session starts with: the configured
// base prompt, the user's name and the lookup command instructions.
func SystemPrompt(cfg *config.Config) string {
	prompt := cfg.SystemPrompt
	if cfg.UserName != "" && !strings.Contains(prompt, cfg.UserName) {
		prompt += fmt.Sprintf(" You are talking with %s, a user of the Emma interface.", cfg.UserName)
	}
	return prompt + lookupInstructions
}

func (s *Session) checkVersion(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	v, err := s.client.Version(ctx)
	if err != nil {
		s.logger.Warn("could not check Ollama version", zap.Error(err))
		return
	}
	s.logger.Info("Ollama version", zap.String("version", v))
}

// Conversation returns the active conversation
func (s *Session) Conversation() *models.Conversation {
	return s.conversation
}

// State reports the step of the turn in progress
func (s *Session) State() State {
	return s.state
}

// GetResponse runs one turn. It always appends exactly one user and one
// assistant message and returns the assistant text; failures come back as
// readable text instead of errors.
func (s *Session) GetResponse(ctx context.Context, input string) string {
	defer func() { s.state = Idle }()

	s.state = AwaitingAnalysis
	if command, ok := s.router.AnalyzePrompt(ctx, input); ok {
		s.state = RoutingLookup
		reply := s.router.ProcessSearchCommands(ctx, command)
		s.conversation.AddUserMessage(input)
		s.conversation.AddAssistantMessage(reply)
		s.autosave()
		return reply
	}

	s.state = GeneratingReply
	s.conversation.AddUserMessage(input)
	reply := s.generate(ctx)
	s.conversation.AddAssistantMessage(reply)
	s.autosave()
	return reply
}

func (s *Session) generate(ctx context.Context) string {
	req := llm.ChatRequest{
		Messages: s.conversation.ToModelMessages(),
		Options:  s.cfg.GenerationOptions(),
	}
	if s.cfg.Verbose {
		s.logger.Debug("Ollama request",
			zap.Int("messages", len(req.Messages)),
			zap.Any("options", req.Options.Map()))
	}

	resp, err := s.client.Chat(ctx, req)
	if err != nil {
		s.logger.Error("error communicating with Ollama", zap.Error(err))
		return fmt.Sprintf("Error communicating with Ollama: %v", err)
	}
	if s.cfg.Verbose {
		s.logger.Debug("Ollama response", zap.ByteString("body", resp.Body))
	}

	reply, err := llm.Extract(resp.Body, llm.ReplyChain)
	switch {
	case errors.Is(err, llm.ErrMalformed):
		s.logger.Warn("response is not a JSON object, using raw body", zap.Error(err))
		reply = strings.TrimSpace(string(resp.Body))
	case err != nil:
		s.logger.Warn("no known field in response", zap.Error(err))
	}

	if reply == "" {
		s.logger.Error("could not get a response from the model")
		return Apology
	}
	return reply
}

// ChangePersonality switches to a named preset. The active conversation is
// replaced by a new one seeded with the preset's prompt; earlier turns are
// not carried over. Unknown names leave the session untouched.
func (s *Session) ChangePersonality(name string) bool {
	prompt, ok := s.cfg.Personality(name)
	if !ok {
		s.logger.Warn("unknown personality", zap.String("name", name))
		return false
	}
	if !strings.Contains(prompt, s.cfg.UserName) {
		prompt += fmt.Sprintf(" You are talking with %s.", s.cfg.UserName)
	}
	s.conversation = models.NewConversation(prompt)
	s.logger.Info("personality changed", zap.String("name", name), zap.String("conversation", s.conversation.ID))
	return true
}

func (s *Session) autosave() {
	if s.cfg.SaveConversations {
		s.SaveConversation()
	}
}

// SaveConversation persists the active conversation
func (s *Session) SaveConversation() bool {
	if s.store == nil {
		return false
	}
	if err := s.store.Save(s.conversation); err != nil {
		s.logger.Error("failed to save conversation", zap.String("id", s.conversation.ID), zap.Error(err))
		return false
	}
	return true
}

// LoadConversation replaces the active conversation with a stored one
func (s *Session) LoadConversation(id string) bool {
	if s.store == nil {
		return false
	}
	conv, err := s.store.Load(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Error("conversation not found", zap.String("id", id))
		} else {
			s.logger.Error("failed to load conversation", zap.String("id", id), zap.Error(err))
		}
		return false
	}
	s.conversation = conv
	return true
}

// ListConversations summarizes the stored conversations, newest first
func (s *Session) ListConversations() ([]models.ConversationSummary, bool) {
	if s.store == nil {
		return []models.ConversationSummary{}, true
	}
	list, err := s.store.List()
	if err != nil {
		s.logger.Error("failed to list conversations", zap.Error(err))
		return nil, false
	}
	return list, true
}
