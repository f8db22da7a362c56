// Package agent loads chat-agent definitions from markdown files with
// YAML frontmatter. The frontmatter carries the model configuration
// and the data sources the agent may draw on; the markdown body is the
// agent's system prompt.
package agent

// ResourceRef names a data source an agent may plan retrieval calls
// against.
type ResourceRef struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Agent is one chat-agent definition.
type Agent struct {
	Name        string   // Derived from filename
	Description string   // From frontmatter
	Provider    string   // Completion provider (e.g. "openai")
	Model       string   // Model identifier
	Temperature *float64 // Optional sampling temperature
	MaxTokens   *int     // Optional output token cap
	Resources   []ResourceRef
	Prompt      string // Markdown content (the system prompt)
	FilePath    string // Original file path
}

// agentFrontmatter is the YAML frontmatter in agent files.
type agentFrontmatter struct {
	Description string        `yaml:"description"`
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature,omitempty"`
	MaxTokens   *int          `yaml:"max_tokens,omitempty"`
	Resources   []ResourceRef `yaml:"resources,omitempty"`
}
