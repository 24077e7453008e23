// Package domain defines the core protocol models: the closed event
// vocabulary, run input, and human-in-the-loop actions.
package domain

// EventType identifies one of the protocol's event kinds.
type EventType string

const (
	EventTypeRunStarted         EventType = "RUN_STARTED"
	EventTypeRunFinished        EventType = "RUN_FINISHED"
	EventTypeTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTypeTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventTypeToolCallStart      EventType = "TOOL_CALL_START"
	EventTypeToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventTypeToolCallEnd        EventType = "TOOL_CALL_END"
	EventTypeStateSnapshot      EventType = "STATE_SNAPSHOT"
	EventTypeStateDelta         EventType = "STATE_DELTA"
	EventTypeError              EventType = "ERROR"
)

// AgentType selects one of the built-in agent behaviors.
type AgentType string

const (
	AgentTypeEcho  AgentType = "echo"
	AgentTypeTool  AgentType = "tool"
	AgentTypeState AgentType = "state"
	AgentTypeHitl  AgentType = "hitl"
)

// RiskLevel classifies a proposed action for the approval policy.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// TrustLevel is the per-thread tier that gates low-risk auto-approval.
type TrustLevel string

const (
	TrustLevelNewUser  TrustLevel = "new_user"
	TrustLevelTrusted  TrustLevel = "trusted"
	TrustLevelVerified TrustLevel = "verified"
)

// ActionType identifies a side-effecting action a HITL agent may propose.
type ActionType string

const (
	ActionTypeSendEmail    ActionType = "send_email"
	ActionTypeDeleteData   ActionType = "delete_data"
	ActionTypeMakePurchase ActionType = "make_purchase"
	ActionTypeCalculation  ActionType = "calculation"
)

// RunStatus tracks a run in the journal.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)
