package core

// BaseInput provides common fields for all tool inputs.
// Tools embed this struct to accept the agent's optional reasoning.
type BaseInput struct {
	// Thought contains the agent's reasoning about why it's using this tool.
	// It is logged with the call and never stored.
	Thought string `json:"thought,omitempty"`
}
