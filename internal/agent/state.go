package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/state"
)

// StateAgent keeps a per-thread memory tree (name, preferences, topics,
// conversation count) and mirrors every mutation to the consumer as
// STATE_SNAPSHOT / STATE_DELTA events.
type StateAgent struct {
	store state.Store
}

// NewStateAgent creates the state-mutating agent over store.
func NewStateAgent(store state.Store) *StateAgent {
	return &StateAgent{store: store}
}

func stateDefaults() map[string]any {
	return map[string]any{
		"user_name":          nil,
		"preferences":        map[string]any{},
		"conversation_count": 0,
		"topics":             []any{},
		"initialized":        false,
	}
}

// Run implements Agent.
func (a *StateAgent) Run(ctx context.Context, input *domain.RunAgentInput, em *Emitter) error {
	tree := a.store.GetOrInit(input.ThreadID, stateDefaults)

	// First reference to the thread: the consumer needs a full snapshot
	// before any deltas can apply.
	if initialized, _ := tree["initialized"].(bool); !initialized {
		if err := em.EmitSnapshot(tree); err != nil {
			return err
		}
		a.store.ApplyDelta(input.ThreadID, []domain.PatchOp{domain.ReplaceOp("/initialized", true)})
	}

	msg := input.LatestUserMessage()
	if msg == nil {
		return nil
	}
	content := strings.ToLower(msg.Content)

	count := asInt(tree["conversation_count"]) + 1
	countOp := domain.ReplaceOp("/conversation_count", count)
	a.store.ApplyDelta(input.ThreadID, []domain.PatchOp{countOp})
	if err := em.EmitDelta(countOp); err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(content, "my name is"):
		return a.handleNameSetting(ctx, input.ThreadID, content, em)
	case strings.Contains(content, "prefer"):
		return a.handlePreferenceSetting(ctx, input.ThreadID, content, em)
	case strings.Contains(content, "remember") && strings.Contains(content, "name"):
		return a.handleNameRecall(ctx, input.ThreadID, em)
	case strings.Contains(content, "what do you know about me") || strings.Contains(content, "my info"):
		return a.handleInfoRequest(ctx, input.ThreadID, em)
	case strings.Contains(content, "reset") && (strings.Contains(content, "state") || strings.Contains(content, "memory")):
		return a.handleMemoryReset(ctx, input.ThreadID, em)
	default:
		return a.handleGeneralConversation(ctx, input.ThreadID, content, em)
	}
}

func (a *StateAgent) handleNameSetting(ctx context.Context, threadID, content string, em *Emitter) error {
	name := titleWords(strings.TrimSpace(strings.TrimPrefix(content, "my name is")))
	if name == "" {
		return nil
	}

	tree := a.store.Snapshot(threadID)
	oldName, _ := tree["user_name"].(string)

	op := domain.AddOp("/user_name", name)
	if oldName != "" {
		op = domain.ReplaceOp("/user_name", name)
	}
	a.store.ApplyDelta(threadID, []domain.PatchOp{op})
	if err := em.EmitDelta(op); err != nil {
		return err
	}

	response := fmt.Sprintf("Nice to meet you, %s! I'll remember your name for our future conversations.", name)
	if oldName != "" {
		response = fmt.Sprintf("I've updated your name from %s to %s!", oldName, name)
	}
	return em.StreamText(ctx, response)
}

func (a *StateAgent) handlePreferenceSetting(ctx context.Context, threadID, content string, em *Emitter) error {
	var op domain.PatchOp
	var response string
	switch {
	case strings.Contains(content, "dark mode"):
		op = domain.AddOp("/preferences/theme", "dark")
		response = "I've noted that you prefer dark mode!"
	case strings.Contains(content, "light mode"):
		op = domain.AddOp("/preferences/theme", "light")
		response = "I've noted that you prefer light mode!"
	default:
		op = domain.AddOp("/preferences/general", content)
		response = "I've updated your preferences!"
	}

	a.store.ApplyDelta(threadID, []domain.PatchOp{op})
	if err := em.EmitDelta(op); err != nil {
		return err
	}
	return em.StreamText(ctx, response)
}

func (a *StateAgent) handleNameRecall(ctx context.Context, threadID string, em *Emitter) error {
	tree := a.store.Snapshot(threadID)
	if name, _ := tree["user_name"].(string); name != "" {
		return em.StreamText(ctx, fmt.Sprintf("Yes, I remember! Your name is %s.", name))
	}
	return em.StreamText(ctx, "I don't know your name yet. You can tell me by saying 'my name is [your name]'.")
}

func (a *StateAgent) handleInfoRequest(ctx context.Context, threadID string, em *Emitter) error {
	tree := a.store.Snapshot(threadID)

	name := "Unknown"
	if n, _ := tree["user_name"].(string); n != "" {
		name = n
	}
	prefs, _ := tree["preferences"].(map[string]any)
	prefText := "None set"
	if len(prefs) > 0 {
		prefText = fmt.Sprintf("%v", prefs)
	}
	topics, _ := tree["topics"].([]any)

	info := fmt.Sprintf(
		"Here's what I know about you:\n- Name: %s\n- Conversations: %d\n- Preferences: %s\n- Topics discussed: %d",
		name, asInt(tree["conversation_count"]), prefText, len(topics))
	return em.StreamText(ctx, info)
}

func (a *StateAgent) handleMemoryReset(ctx context.Context, threadID string, em *Emitter) error {
	fresh := stateDefaults()
	fresh["initialized"] = true
	a.store.Replace(threadID, fresh)

	// Reset re-baselines the consumer with a snapshot, not a delta.
	if err := em.EmitSnapshot(fresh); err != nil {
		return err
	}
	return em.StreamText(ctx, "Memory has been reset! I've forgotten everything about our previous conversations.")
}

func (a *StateAgent) handleGeneralConversation(ctx context.Context, threadID, content string, em *Emitter) error {
	topic := content
	if len(topic) > 30 {
		topic = topic[:30] + "..."
	}

	tree := a.store.Snapshot(threadID)
	topics, _ := tree["topics"].([]any)
	known := false
	for _, t := range topics {
		if t == topic {
			known = true
			break
		}
	}
	if !known {
		topics = append(topics, topic)
		op := domain.ReplaceOp("/topics", topics)
		a.store.ApplyDelta(threadID, []domain.PatchOp{op})
		if err := em.EmitDelta(op); err != nil {
			return err
		}
	}

	greeting := "Hello! "
	if name, _ := tree["user_name"].(string); name != "" {
		greeting = fmt.Sprintf("Hello %s! ", name)
	}
	return em.StreamText(ctx, greeting+
		"I can remember information about you across our conversation. "+
		"Try saying 'my name is [name]', 'I prefer dark mode', or 'what do you know about me?'")
}

// Descriptor implements Agent.
func (a *StateAgent) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		Description:     "State management agent with JSON Patch deltas",
		Features:        []string{"text_messages", "state_management", "json_patch"},
		StateOperations: []string{"snapshot", "add", "replace", "remove"},
		UseCase:         "Persistent user data and preferences (RFC 6902 compliant)",
	}
}

// asInt reads a JSON number that may arrive as int or float64.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// titleWords capitalizes the first rune of each space-separated word.
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
