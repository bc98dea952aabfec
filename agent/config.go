// Agent configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

import (
	"github.com/richinex/daedalus/tools"
)

// Config holds agent configuration.
type Config struct {
	// Name is a unique identifier for the agent.
	Name string

	// Description explains what this agent does.
	Description string

	// SystemPrompt guides the agent's behavior.
	SystemPrompt string

	// Tools available to this agent.
	Tools []tools.Tool
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		Name:         "agent",
		Description:  "A general-purpose file operations agent",
		SystemPrompt: defaultSystemPrompt,
		Tools:        []tools.Tool{},
	}
}

// HasTools returns true if the agent has tools configured.
func (c *Config) HasTools() bool {
	return len(c.Tools) > 0
}

const defaultSystemPrompt = `You are a coding assistant operating on a local workspace.
Use the available tools to search, read, and modify files. Prefer narrow
searches over reading whole files. Batch independent tool calls together.
When the task is done, reply with a plain text answer and no tool calls.`
