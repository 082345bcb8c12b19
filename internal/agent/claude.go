package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/forgedev/forge/internal/logging"
)

// eventType identifies the type of a claude stream-json event.
type eventType string

const (
	eventTypeSystem    eventType = "system"
	eventTypeAssistant eventType = "assistant"
	eventTypeUser      eventType = "user"
	eventTypeResult    eventType = "result"
)

// streamEvent is one newline-delimited JSON event emitted by the claude
// CLI under --output-format stream-json.
type streamEvent struct {
	Type    eventType `json:"type"`
	Subtype string    `json:"subtype,omitempty"`

	Message *struct {
		Content []contentBlock `json:"content"`
	} `json:"message,omitempty"`

	// Result event fields.
	Result       string  `json:"result,omitempty"`
	IsError      bool    `json:"is_error,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	UsageBlock   *struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// CLIClient runs the claude CLI as a subprocess and translates its
// stream-json output into chunks.
type CLIClient struct {
	// Binary is the executable to run. Defaults to "claude".
	Binary string
	Logger *logging.Logger
}

// NewCLIClient creates a CLIClient with defaults.
func NewCLIClient(logger *logging.Logger) *CLIClient {
	return &CLIClient{Binary: "claude", Logger: logger}
}

// buildArgs constructs the claude command line for one call.
func (c *CLIClient) buildArgs(prompt string, opts Options) []string {
	args := []string{
		"-p", prompt,
		"--output-format", "stream-json",
		"--verbose",
	}

	if opts.SystemPrompt != "" {
		if opts.UsePreset {
			args = append(args, "--append-system-prompt", opts.SystemPrompt)
		} else {
			args = append(args, "--system-prompt", opts.SystemPrompt)
		}
	}
	if len(opts.Tools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.Tools, ","))
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", opts.MaxTurns))
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	return args
}

// Execute starts the claude subprocess and streams parsed chunks. The
// returned channel closes when the process exits or ctx is cancelled.
func (c *CLIClient) Execute(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error) {
	binary := c.Binary
	if binary == "" {
		binary = "claude"
	}

	cmd := exec.CommandContext(ctx, binary, c.buildArgs(prompt, opts)...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer cmd.Wait()

		scanner := bufio.NewScanner(stdout)
		// Stream-json lines can carry whole file contents.
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, 4*1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				c.Logger.Debug("skipping unparseable stream line", "err", err)
				continue
			}

			for _, chunk := range eventChunks(&event) {
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			c.Logger.Warn("agent output stream ended with error", "err", err)
		}
	}()

	return ch, nil
}

// eventChunks converts one stream event into zero or more chunks.
func eventChunks(event *streamEvent) []Chunk {
	switch event.Type {
	case eventTypeAssistant:
		if event.Message == nil {
			return nil
		}
		var chunks []Chunk
		for _, block := range event.Message.Content {
			switch block.Type {
			case "text":
				if block.Text != "" {
					chunks = append(chunks, Chunk{Type: ChunkText, Text: block.Text})
				}
			case "tool_use":
				chunks = append(chunks, Chunk{
					Type: ChunkToolUse,
					Tool: &ToolCall{Name: block.Name, Arguments: block.Input},
				})
			}
		}
		return chunks

	case eventTypeResult:
		usage := &Usage{TotalCostUSD: event.TotalCostUSD}
		if event.UsageBlock != nil {
			usage.InputTokens = event.UsageBlock.InputTokens
			usage.OutputTokens = event.UsageBlock.OutputTokens
		}
		return []Chunk{{
			Type:    ChunkResult,
			Text:    event.Result,
			Usage:   usage,
			Turns:   event.NumTurns,
			IsError: event.IsError || event.Subtype == "error",
		}}
	}

	// System and user (tool result) events carry no checkpointable progress.
	return nil
}
