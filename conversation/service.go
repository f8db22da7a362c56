package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i2y/chiron/agent"
	"github.com/i2y/chiron/llm"
	"github.com/i2y/chiron/retrieve"
)

// assistantUserID marks messages produced by the agent.
const assistantUserID = "assistant"

// defaultReplySuffix is appended to every agent prompt so the reply
// decodes as a structured message/payload document.
const defaultReplySuffix = `Respond with a JSON object of the form {"message": "<your reply>", "payload": {}}. Put the text for the user in "message". Use "payload" only for structured data the application should act on, and leave it empty otherwise.`

// plannerPrompt asks the model to turn the conversation into a
// retrieval plan against the agent's resources.
const plannerPrompt = `You plan data retrieval for an AI assistant. Decide which of the resources listed below the assistant needs to answer the user's latest message, and how to query each one. Put SQL and REST calls in realtime_resources and semantic knowledge lookups in vectorization_resources. Leave both lists empty when no external data is needed.

Available resources:
%s`

// Service runs the conversation loop: it loads the history, retrieves
// the data the agent's model asks for, generates a reply, and saves the
// updated conversation.
type Service struct {
	catalog      *agent.Catalog
	fetcher      *retrieve.Fetcher
	store        Store
	checks       CheckStore
	defaultAgent string
	replySuffix  string
	callOpts     []llm.Option
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCheckStore enables recording of actionable reply payloads.
func WithCheckStore(checks CheckStore) ServiceOption {
	return func(s *Service) {
		s.checks = checks
	}
}

// WithDefaultAgent sets the agent assigned to new conversations.
// Without it the catalog must contain exactly one agent.
func WithDefaultAgent(name string) ServiceOption {
	return func(s *Service) {
		s.defaultAgent = name
	}
}

// WithReplySuffix overrides the reply-format instruction appended to
// the agent prompt.
func WithReplySuffix(suffix string) ServiceOption {
	return func(s *Service) {
		s.replySuffix = suffix
	}
}

// WithCallOptions sets extra options passed to every completion call,
// such as a token budget or retry policy.
func WithCallOptions(opts ...llm.Option) ServiceOption {
	return func(s *Service) {
		s.callOpts = opts
	}
}

// WithLogger sets the service logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a conversation service. The fetcher may be nil
// when no agent uses external data.
func NewService(catalog *agent.Catalog, fetcher *retrieve.Fetcher, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		catalog:     catalog,
		fetcher:     fetcher,
		store:       store,
		replySuffix: defaultReplySuffix,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond appends the user's message to the conversation, generates the
// assistant's reply, and returns it. A conversation that does not exist
// yet is created and bound to the default agent. Completion failures,
// including exhausted retries, propagate to the caller.
func (s *Service) Respond(ctx context.Context, conversationID, userID, text string) (*Message, error) {
	conv, err := s.store.Load(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		agentName, err := s.newConversationAgent()
		if err != nil {
			return nil, err
		}
		conv = New(conversationID, agentName)
	} else if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	conv.Append(NewMessage(llm.RoleUser, text, userID))

	ag, ok := s.catalog.Get(conv.AgentName)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", conv.AgentName)
	}

	knowledge, err := s.gatherKnowledge(ctx, ag, conv)
	if err != nil {
		return nil, err
	}

	reply, err := llm.Complete(ctx, llm.Request{
		System:          ag.Prompt,
		Suffix:          s.replySuffix,
		History:         conv.History(),
		Knowledge:       knowledge,
		Temperature:     ag.Temperature,
		MaxOutputTokens: ag.MaxTokens,
	}, s.completionOptions(ag, llm.WithJSONResponse())...)
	if err != nil {
		return nil, fmt.Errorf("generating reply: %w", err)
	}

	content, err := s.recordCheckRequest(ctx, userID, reply)
	if err != nil {
		return nil, err
	}

	assistantMsg := NewMessage(llm.RoleAssistant, content, assistantUserID)
	conv.Append(assistantMsg)

	if err := s.store.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}

	return &assistantMsg, nil
}

func (s *Service) newConversationAgent() (string, error) {
	if s.defaultAgent != "" {
		return s.defaultAgent, nil
	}
	if names := s.catalog.Names(); len(names) == 1 {
		return names[0], nil
	}
	return "", errors.New("no default agent configured")
}

// gatherKnowledge plans retrieval for the agent's resources and runs
// the plan. Agents without resources skip retrieval entirely.
func (s *Service) gatherKnowledge(ctx context.Context, ag *agent.Agent, conv *Conversation) ([]string, error) {
	if len(ag.Resources) == 0 || s.fetcher == nil {
		return nil, nil
	}

	plan, err := llm.CompleteParse[retrieve.Plan](ctx, llm.Request{
		System:          fmt.Sprintf(plannerPrompt, s.resourceCatalog(ag)),
		History:         conv.History(),
		Temperature:     ag.Temperature,
		MaxOutputTokens: ag.MaxTokens,
	}, s.completionOptions(ag)...)
	if err != nil {
		return nil, fmt.Errorf("planning retrieval: %w", err)
	}

	if plan.Empty() {
		s.logger.Info("retrieval plan is empty", "agent", ag.Name)
		return nil, nil
	}

	results := s.fetcher.Fetch(ctx, plan)

	// Knowledge follows plan order so realtime data outranks vector
	// hits when the token budget trims.
	seen := make(map[string]bool, len(results))
	knowledge := make([]string, 0, len(results))
	for _, call := range plan.Calls() {
		if seen[call.ResourceID] {
			continue
		}
		seen[call.ResourceID] = true
		knowledge = append(knowledge, fmt.Sprintf("Resource: %s Content: %s", call.ResourceID, results[call.ResourceID]))
	}

	return knowledge, nil
}

// resourceCatalog lists the agent's resources for the planner. Refs
// without a description fall back to the registered source's own.
func (s *Service) resourceCatalog(ag *agent.Agent) string {
	lines := make([]string, 0, len(ag.Resources))
	for _, ref := range ag.Resources {
		desc := ref.Description
		if desc == "" {
			if src, ok := s.fetcher.Source(ref.ID); ok {
				desc = src.Describe()
			}
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", ref.ID, desc))
	}
	return strings.Join(lines, "\n")
}

func (s *Service) completionOptions(ag *agent.Agent, extra ...llm.Option) []llm.Option {
	opts := []llm.Option{
		llm.WithProvider(ag.Provider),
		llm.WithModel(ag.Model),
		llm.WithLogger(s.logger),
	}
	opts = append(opts, s.callOpts...)
	opts = append(opts, extra...)
	return opts
}

// recordCheckRequest applies the payload rule to a structured reply: a
// non-empty payload with any key other than "data_ready" is saved to
// the check store and the request ID is appended to the message. A
// payload of only "data_ready" is skipped.
func (s *Service) recordCheckRequest(ctx context.Context, userID string, reply llm.Reply) (string, error) {
	if reply.Kind == llm.ReplyRaw {
		return reply.Text, nil
	}

	content := reply.Message
	if s.checks == nil || len(reply.Payload) == 0 {
		return content, nil
	}

	actionable := false
	for key := range reply.Payload {
		if key != "data_ready" {
			actionable = true
			break
		}
	}
	if !actionable {
		s.logger.Warn("payload contains only data_ready, skipping save")
		return content, nil
	}

	requestID, err := s.checks.Save(ctx, userID, reply.Payload)
	if err != nil {
		return "", fmt.Errorf("saving check request: %w", err)
	}

	return content + " Request_id: " + requestID, nil
}
