package domain

// PendingAction is a side-effecting action proposed by a HITL agent. It
// waits in the thread's FIFO queue until the next approval or rejection
// turn resolves the queue head.
type PendingAction struct {
	ID               string         `json:"id"`
	Type             ActionType     `json:"type"`
	Details          map[string]any `json:"details"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	RequiresApproval bool           `json:"requires_approval"`
}
