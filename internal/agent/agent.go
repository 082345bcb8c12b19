// Package agent defines the call interface to the external coding agent
// and the incremental chunk stream it produces. The execution driver
// consumes chunks and checkpoints after each observable progress unit.
package agent

import (
	"context"
	"encoding/json"
)

// Usage holds token and spend counters reported by the agent. Values are
// totals for the call, not deltas.
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// ToolCall describes one tool invocation made by the agent.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ChunkType identifies what a stream chunk carries.
type ChunkType string

const (
	// ChunkText is assistant output text. A single turn may emit
	// several text chunks; the terminal result carries the turn count.
	ChunkText ChunkType = "text"
	// ChunkToolUse reports a tool invocation.
	ChunkToolUse ChunkType = "tool_use"
	// ChunkResult is the terminal chunk. It carries final usage and
	// either the result text or an error description.
	ChunkResult ChunkType = "result"
)

// Chunk is one unit of incremental progress from an agent call. The
// stream is terminated by a usage-bearing ChunkResult; a stream that ends
// without one means the call crashed.
type Chunk struct {
	Type ChunkType

	// Text carries assistant output (ChunkText) or the final result or
	// error description (ChunkResult).
	Text string

	// Tool is set for ChunkToolUse.
	Tool *ToolCall

	// Usage is set on ChunkResult.
	Usage *Usage

	// Turns is the total turn count, set on ChunkResult.
	Turns int

	// IsError marks a ChunkResult describing an unrecoverable failure.
	IsError bool
}

// Options configures one agent call.
type Options struct {
	// SystemPrompt is literal system prompt text. With UsePreset it is
	// appended to the agent's preset; otherwise it replaces it.
	SystemPrompt string
	// UsePreset selects the agent's predefined system prompt base.
	UsePreset bool
	// Tools restricts the enabled tool set. Empty enables all tools.
	Tools []string
	// MaxTurns caps turns for this call.
	MaxTurns int
	// Model names the model to use. Empty uses the agent's default.
	Model string
	// WorkDir is the directory the agent operates in.
	WorkDir string
}

// Client executes agent calls and streams progress chunks. The returned
// channel is closed when the call finishes; cancellation of ctx stops
// the call and closes the channel.
type Client interface {
	Execute(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error)
}
