// Command cli is an interactive REPL against an agui server: it streams
// runs over SSE, assembles the responses, and mirrors server state locally.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/xiaot623/agui/internal/client"
	"github.com/xiaot623/agui/internal/config"
	"github.com/xiaot623/agui/internal/domain"
)

const helpText = `Commands:
  Type any message to chat with the current agent
  /help or /h          - Show this help
  /quit, /exit, or /q  - Exit the client

Agent management:
  /agent <type>        - Switch agent (echo, tool, state, hitl)
  /agents              - List available agents
  /current             - Show current agent info

State management (state agent):
  /state               - Show current local state
  "my name is [name]"  - Set your name
  "I prefer [option]"  - Set preferences
  "what do you know about me?" - Show stored info
  "reset state"        - Clear all state

Tools (tool agent):
  "calculate 5 + 3"    - Calculator
  "what's the weather?" - Weather
  "what time is it?"   - Time`

type repl struct {
	client  *client.Client
	session *client.Session
	out     *bufio.Writer
}

func main() {
	serverURL := flag.String("server", "", "server base URL (default from SERVER_URL)")
	flag.Parse()

	cfg := config.Load()
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	r := &repl{
		client:  client.NewClient(cfg.ServerURL, cfg.InactivityTimeout),
		session: client.NewSession(),
		out:     bufio.NewWriter(os.Stdout),
	}

	ctx := context.Background()

	health, err := r.client.Health(ctx)
	if err != nil {
		log.Fatalf("Server is not available at %s: %v", cfg.ServerURL, err)
	}
	fmt.Printf("Connected to %s (status: %v)\n", cfg.ServerURL, health["status"])
	r.listAgents(ctx)
	fmt.Printf("\nCurrent agent: %s. Type '/help' for commands or '/quit' to exit.\n", r.session.AgentType)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("\nYou [%s]: ", r.session.AgentType)
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if r.handleCommand(ctx, line) {
				return
			}
			continue
		}
		r.sendMessage(ctx, line)
	}
}

// handleCommand returns true when the REPL should exit.
func (r *repl) handleCommand(ctx context.Context, line string) bool {
	cmd := strings.ToLower(line)
	switch {
	case cmd == "/quit" || cmd == "/exit" || cmd == "/q":
		fmt.Println("Goodbye!")
		return true
	case cmd == "/help" || cmd == "/h":
		fmt.Println(helpText)
	case strings.HasPrefix(line, "/agent "):
		r.switchAgent(ctx, strings.TrimSpace(line[len("/agent "):]))
	case cmd == "/agents":
		r.listAgents(ctx)
	case cmd == "/current":
		r.showCurrent(ctx)
	case cmd == "/state":
		r.showState()
	default:
		fmt.Printf("Unknown command %q. Type /help for commands.\n", line)
	}
	return false
}

func (r *repl) switchAgent(ctx context.Context, agentType string) {
	agents, err := r.client.Agents(ctx)
	if err != nil {
		fmt.Printf("Could not fetch agents: %v\n", err)
		return
	}
	info, ok := agents[agentType]
	if !ok {
		fmt.Printf("Agent %q not available. Available agents: %s\n", agentType, strings.Join(agentNames(agents), ", "))
		return
	}

	r.session.AgentType = domain.AgentType(agentType)
	fmt.Printf("Switched to %s agent\n", agentType)
	fmt.Printf("Description: %s\n", info.Description)
	fmt.Printf("Features: %s\n", strings.Join(info.Features, ", "))
	if len(info.Tools) > 0 {
		fmt.Printf("Tools: %s\n", strings.Join(info.Tools, ", "))
	}
	if len(info.StateOperations) > 0 {
		fmt.Printf("State operations: %s\n", strings.Join(info.StateOperations, ", "))
	}
}

func (r *repl) listAgents(ctx context.Context) {
	agents, err := r.client.Agents(ctx)
	if err != nil {
		fmt.Printf("Could not fetch agents: %v\n", err)
		return
	}
	fmt.Println("Available agents:")
	for _, name := range agentNames(agents) {
		current := ""
		if name == string(r.session.AgentType) {
			current = " (current)"
		}
		fmt.Printf("  %s%s: %s [%s]\n", name, current, agents[name].Description, strings.Join(agents[name].Features, ", "))
	}
}

func (r *repl) showCurrent(ctx context.Context) {
	agents, err := r.client.Agents(ctx)
	if err != nil {
		fmt.Printf("Could not fetch agents: %v\n", err)
		return
	}
	info, ok := agents[string(r.session.AgentType)]
	if !ok {
		fmt.Printf("Current agent: %s\n", r.session.AgentType)
		return
	}
	fmt.Printf("Current agent: %s\n", r.session.AgentType)
	fmt.Printf("Description: %s\n", info.Description)
	fmt.Printf("Features: %s\n", strings.Join(info.Features, ", "))
}

func (r *repl) showState() {
	if len(r.session.State) == 0 {
		fmt.Println("No state data available")
		return
	}
	fmt.Println("Current state:")
	keys := make([]string, 0, len(r.session.State))
	for k := range r.session.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, r.session.State[k])
	}
}

func (r *repl) sendMessage(ctx context.Context, content string) {
	req := r.session.Request(content)

	err := r.client.RunAgent(ctx, req, func(event domain.Event) error {
		r.session.HandleEvent(event)
		r.render(event)
		return nil
	})
	r.out.Flush()
	if err != nil {
		fmt.Printf("Run failed: %v\n", err)
	}
}

func (r *repl) render(event domain.Event) {
	switch e := event.(type) {
	case *domain.RunStartedEvent:
		fmt.Fprintln(r.out, "Agent started processing...")
	case *domain.TextMessageStartEvent:
		fmt.Fprint(r.out, "Assistant: ")
	case *domain.TextMessageContentEvent:
		fmt.Fprint(r.out, e.Delta)
		r.out.Flush()
	case *domain.TextMessageEndEvent:
		fmt.Fprintln(r.out)
	case *domain.ToolCallStartEvent:
		fmt.Fprintf(r.out, "Tool call: %s (id %s)\n", e.ToolCallName, e.ToolCallID)
	case *domain.ToolCallArgsEvent:
		fmt.Fprintf(r.out, "Tool arguments: %s\n", e.Delta)
	case *domain.ToolCallEndEvent:
		fmt.Fprintf(r.out, "Tool call completed (id %s)\n", e.ToolCallID)
	case *domain.StateSnapshotEvent:
		fmt.Fprintln(r.out, "State snapshot received")
	case *domain.StateDeltaEvent:
		fmt.Fprintf(r.out, "State updated: %s\n", string(e.Delta))
	case *domain.ErrorEvent:
		fmt.Fprintf(r.out, "Agent error: %s\n", e.Message)
	case *domain.RunFinishedEvent:
		fmt.Fprintln(r.out, "Agent finished processing")
	}
}

func agentNames(agents map[string]domain.AgentDescriptor) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
