package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/agui/internal/approval"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/policy"
	"github.com/xiaot623/agui/internal/state"
	"github.com/xiaot623/agui/internal/tools"
)

// HitlAgent proposes side-effecting actions, queues them for human
// approval, and only executes a queued action after the user approves it.
// Approval always resolves the queue head; there is no action-id targeting.
type HitlAgent struct {
	store  state.Store
	queue  *approval.Queue
	policy *policy.Engine
}

// NewHitlAgent creates the human-in-the-loop agent.
func NewHitlAgent(store state.Store, queue *approval.Queue, engine *policy.Engine) *HitlAgent {
	return &HitlAgent{store: store, queue: queue, policy: engine}
}

func hitlDefaults() map[string]any {
	return map[string]any{
		"preferences":         map[string]any{},
		"interaction_history": []any{},
		"trust_level":         string(domain.TrustLevelNewUser),
	}
}

// Run implements Agent.
func (a *HitlAgent) Run(ctx context.Context, input *domain.RunAgentInput, em *Emitter) error {
	tree := a.store.GetOrInit(input.ThreadID, hitlDefaults)

	prefs, _ := tree["preferences"].(map[string]any)
	if prefs == nil {
		prefs = map[string]any{}
	}
	if err := em.EmitSnapshot(map[string]any{
		"pending_actions":  a.queue.Pending(input.ThreadID),
		"user_preferences": prefs,
		"interaction_mode": "human_in_the_loop",
	}); err != nil {
		return err
	}

	msg := input.LatestUserMessage()
	if msg == nil {
		return nil
	}
	content := strings.ToLower(msg.Content)

	switch {
	case content == "yes" || content == "approve" || content == "confirm" || content == "y":
		return a.handleApproval(ctx, input.ThreadID, em)
	case content == "no" || content == "reject" || content == "cancel" || content == "n":
		return a.handleRejection(ctx, input.ThreadID, em)
	case strings.Contains(content, "send email"):
		return a.proposeEmail(ctx, input.ThreadID, content, em)
	case strings.Contains(content, "delete") || strings.Contains(content, "remove"):
		return a.proposeDeletion(ctx, input.ThreadID, content, em)
	case strings.Contains(content, "purchase") || strings.Contains(content, "buy"):
		return a.proposePurchase(ctx, input.ThreadID, content, em)
	case strings.Contains(content, "calculate"):
		return a.proposeCalculation(ctx, input.ThreadID, content, em)
	case strings.Contains(content, "trust level"):
		return a.handleTrustLevel(ctx, input.ThreadID, content, em)
	default:
		return a.handleGeneralConversation(ctx, input.ThreadID, em)
	}
}

// propose enqueues the action and mirrors it onto the wire as an append to
// /pending_actions.
func (a *HitlAgent) propose(threadID string, action domain.PendingAction, em *Emitter) error {
	a.queue.Enqueue(threadID, action)
	return em.EmitDelta(domain.AddOp("/pending_actions/-", action))
}

func (a *HitlAgent) proposeEmail(ctx context.Context, threadID, content string, em *Emitter) error {
	action := domain.PendingAction{
		ID:   "act_" + uuid.New().String()[:8],
		Type: domain.ActionTypeSendEmail,
		Details: map[string]any{
			"recipient": "example@example.com",
			"subject":   "Automated Email",
			"content":   strings.TrimSpace(strings.ReplaceAll(content, "send email", "")),
		},
		RiskLevel:        domain.RiskLevelMedium,
		RequiresApproval: true,
	}
	if err := a.propose(threadID, action, em); err != nil {
		return err
	}

	return em.StreamText(ctx, fmt.Sprintf(
		"Action Requires Approval\n\n"+
			"I want to send an email with the following details:\n"+
			"- Recipient: %s\n- Subject: %s\n- Content: %s\n\n"+
			"Do you approve this action? (yes/no)",
		action.Details["recipient"], action.Details["subject"], action.Details["content"]))
}

func (a *HitlAgent) proposeDeletion(ctx context.Context, threadID, content string, em *Emitter) error {
	target := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(content, "delete", ""), "remove", ""))
	action := domain.PendingAction{
		ID:   "act_" + uuid.New().String()[:8],
		Type: domain.ActionTypeDeleteData,
		Details: map[string]any{
			"target":    target,
			"permanent": true,
		},
		RiskLevel:        domain.RiskLevelHigh,
		RequiresApproval: true,
	}
	if err := a.propose(threadID, action, em); err != nil {
		return err
	}

	return em.StreamText(ctx, fmt.Sprintf(
		"HIGH RISK ACTION - Approval Required\n\n"+
			"You want to delete: %s\n"+
			"This action is PERMANENT and cannot be undone.\n\n"+
			"Are you absolutely sure? (yes/no)", target))
}

func (a *HitlAgent) proposePurchase(ctx context.Context, threadID, content string, em *Emitter) error {
	item := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(content, "purchase", ""), "buy", ""))
	action := domain.PendingAction{
		ID:   "act_" + uuid.New().String()[:8],
		Type: domain.ActionTypeMakePurchase,
		Details: map[string]any{
			"item":           item,
			"estimated_cost": "$50.00",
			"vendor":         "Example Store",
		},
		RiskLevel:        domain.RiskLevelMedium,
		RequiresApproval: true,
	}
	if err := a.propose(threadID, action, em); err != nil {
		return err
	}

	return em.StreamText(ctx, fmt.Sprintf(
		"Purchase Approval Required\n\n"+
			"Item: %s\nEstimated Cost: %s\nVendor: %s\n\n"+
			"Proceed with purchase? (yes/no)",
		item, action.Details["estimated_cost"], action.Details["vendor"]))
}

func (a *HitlAgent) proposeCalculation(ctx context.Context, threadID, content string, em *Emitter) error {
	expression := strings.TrimSpace(strings.ReplaceAll(content, "calculate", ""))

	tree := a.store.Snapshot(threadID)
	trustLevel, _ := tree["trust_level"].(string)
	if trustLevel == "" {
		trustLevel = string(domain.TrustLevelNewUser)
	}

	decision, err := a.policy.Evaluate(ctx, map[string]any{
		"action_type": string(domain.ActionTypeCalculation),
		"risk_level":  string(domain.RiskLevelLow),
		"trust_level": trustLevel,
	})
	if err != nil {
		log.Printf("WARN: policy evaluation failed on thread %s, requiring approval: %v", threadID, err)
		decision = policy.DecisionRequireApproval
	}

	if decision == policy.DecisionAutoApprove {
		return a.executeCalculation(ctx, expression, em)
	}

	action := domain.PendingAction{
		ID:   "act_" + uuid.New().String()[:8],
		Type: domain.ActionTypeCalculation,
		Details: map[string]any{
			"expression":       expression,
			"estimated_result": "will be calculated",
		},
		RiskLevel:        domain.RiskLevelLow,
		RequiresApproval: true,
	}
	if err := a.propose(threadID, action, em); err != nil {
		return err
	}

	return em.StreamText(ctx, fmt.Sprintf(
		"Calculation Request\n\n"+
			"Expression: %s\n"+
			"Since you're a new user, I'll ask for approval on calculations.\n\n"+
			"Proceed with calculation? (yes/no)", expression))
}

func (a *HitlAgent) handleApproval(ctx context.Context, threadID string, em *Emitter) error {
	action, ok := a.queue.ResolveHead(threadID)
	if !ok {
		return em.StreamText(ctx, "No pending actions to approve.")
	}
	if err := em.EmitDelta(domain.RemoveOp("/pending_actions/0")); err != nil {
		return err
	}

	switch action.Type {
	case domain.ActionTypeSendEmail:
		return a.executeEmail(ctx, threadID, action, em)
	case domain.ActionTypeDeleteData:
		return a.executeDeletion(ctx, threadID, action, em)
	case domain.ActionTypeMakePurchase:
		return a.executePurchase(ctx, action, em)
	case domain.ActionTypeCalculation:
		expression, _ := action.Details["expression"].(string)
		return a.executeCalculation(ctx, expression, em)
	default:
		return em.StreamText(ctx, fmt.Sprintf("Approved action has unknown type: %s", action.Type))
	}
}

func (a *HitlAgent) handleRejection(ctx context.Context, threadID string, em *Emitter) error {
	action, ok := a.queue.ResolveHead(threadID)
	if !ok {
		return em.StreamText(ctx, "No pending actions to reject.")
	}
	if err := em.EmitDelta(domain.RemoveOp("/pending_actions/0")); err != nil {
		return err
	}
	return em.StreamText(ctx, fmt.Sprintf("Action rejected: %s. I will not proceed with this action.", action.Type))
}

// recordInteraction appends an entry to the thread's interaction history.
// History is internal memory only and never goes out as a delta.
func (a *HitlAgent) recordInteraction(threadID, actionName string, details map[string]any) {
	a.store.ApplyDelta(threadID, []domain.PatchOp{
		domain.AddOp("/interaction_history/-", map[string]any{
			"action":  actionName,
			"details": details,
		}),
	})
}

func (a *HitlAgent) executeEmail(ctx context.Context, threadID string, action domain.PendingAction, em *Emitter) error {
	a.recordInteraction(threadID, "email_sent", action.Details)
	return em.StreamText(ctx, fmt.Sprintf(
		"Email Sent Successfully\n\n"+
			"- To: %s\n- Subject: %s\n- Status: Delivered\n- Time: Just now",
		action.Details["recipient"], action.Details["subject"]))
}

func (a *HitlAgent) executeDeletion(ctx context.Context, threadID string, action domain.PendingAction, em *Emitter) error {
	a.recordInteraction(threadID, "data_deleted", action.Details)
	return em.StreamText(ctx, fmt.Sprintf(
		"Deletion Completed: %s has been permanently removed.", action.Details["target"]))
}

func (a *HitlAgent) executePurchase(ctx context.Context, action domain.PendingAction, em *Emitter) error {
	return em.StreamText(ctx, fmt.Sprintf(
		"Purchase Completed\n\n"+
			"- Item: %s\n- Cost: %s\n- Vendor: %s\n- Status: Order confirmed\n- Order ID: #12345",
		action.Details["item"], action.Details["estimated_cost"], action.Details["vendor"]))
}

// executeCalculation emits the tool call record for transparency even
// though the evaluation runs in-process.
func (a *HitlAgent) executeCalculation(ctx context.Context, expression string, em *Emitter) error {
	if _, err := em.EmitToolCall(ctx, tools.ToolCalculator, tools.CalculatorArgs{Expression: expression}); err != nil {
		return err
	}

	result, err := tools.Evaluate(expression)
	if err != nil {
		return em.StreamText(ctx, fmt.Sprintf("Calculation failed: Invalid expression '%s'", expression))
	}
	return em.StreamText(ctx, fmt.Sprintf("Calculation approved and completed: %s = %s", expression, result))
}

func (a *HitlAgent) handleTrustLevel(ctx context.Context, threadID, content string, em *Emitter) error {
	newLevel := domain.TrustLevelNewUser
	switch {
	case strings.Contains(content, "trusted"):
		newLevel = domain.TrustLevelTrusted
	case strings.Contains(content, "verified"):
		newLevel = domain.TrustLevelVerified
	}

	tree := a.store.Snapshot(threadID)
	oldLevel, _ := tree["trust_level"].(string)
	if oldLevel == "" {
		oldLevel = string(domain.TrustLevelNewUser)
	}
	a.store.ApplyDelta(threadID, []domain.PatchOp{domain.ReplaceOp("/trust_level", string(newLevel))})

	// The wire path differs from the memory path: consumers track trust
	// under user_preferences in their snapshot tree.
	if err := em.EmitDelta(domain.ReplaceOp("/user_preferences/trust_level", string(newLevel))); err != nil {
		return err
	}

	return em.StreamText(ctx, fmt.Sprintf(
		"Trust Level Updated\n\n"+
			"Previous: %s\nNew: %s\n\n"+
			"This affects how much approval I'll request for actions.", oldLevel, newLevel))
}

func (a *HitlAgent) handleGeneralConversation(ctx context.Context, threadID string, em *Emitter) error {
	tree := a.store.Snapshot(threadID)
	trustLevel, _ := tree["trust_level"].(string)
	if trustLevel == "" {
		trustLevel = string(domain.TrustLevelNewUser)
	}

	return em.StreamText(ctx, fmt.Sprintf(
		"Hello! I'm your Human-in-the-Loop assistant.\n\n"+
			"Current status:\n- Trust level: %s\n- Pending actions: %d\n\n"+
			"I can help with emails, calculations, purchases, and more. "+
			"I'll ask for your approval before taking actions that affect your data or cost money.\n\n"+
			"Try: 'send email', 'calculate 5+3', 'purchase coffee', or 'delete old files'",
		trustLevel, a.queue.Len(threadID)))
}

// Descriptor implements Agent.
func (a *HitlAgent) Descriptor() domain.AgentDescriptor {
	return domain.AgentDescriptor{
		Description:     "Human-in-the-loop agent with approval workflows",
		Features:        []string{"text_messages", "tool_calls", "state_management", "approval_queue"},
		Tools:           []string{tools.ToolCalculator},
		StateOperations: []string{"snapshot", "add", "remove", "replace"},
		UseCase:         "Actions gated behind explicit user approval",
	}
}
