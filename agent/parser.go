package agent

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse parses an agent definition file. The agent's name is the
// filename without its .md suffix.
func Parse(path string) (*Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent file: %w", err)
	}

	agent, err := parseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("parsing agent file %s: %w", path, err)
	}

	agent.Name = strings.TrimSuffix(filepath.Base(path), ".md")
	agent.FilePath = path
	return agent, nil
}

func parseDefinition(data []byte) (*Agent, error) {
	fm, content, err := parseFrontmatter(data)
	if err != nil {
		return nil, err
	}

	agent := &Agent{
		Prompt: content,
	}

	if len(fm) > 0 {
		var meta agentFrontmatter
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return nil, fmt.Errorf("parsing frontmatter: %w", err)
		}
		agent.Description = meta.Description
		agent.Provider = meta.Provider
		agent.Model = meta.Model
		agent.Temperature = meta.Temperature
		agent.MaxTokens = meta.MaxTokens
		agent.Resources = meta.Resources
	}

	return agent, nil
}

// parseFrontmatter extracts YAML frontmatter from markdown content.
// Frontmatter is delimited by "---" at the start and end. Content
// without frontmatter is returned whole.
func parseFrontmatter(data []byte) (frontmatter []byte, content string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, string(data), nil
	}
	firstLine := strings.TrimSpace(scanner.Text())
	if firstLine != "---" {
		return nil, string(data), nil
	}

	var fmLines []string
	foundClosing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			foundClosing = true
			break
		}
		fmLines = append(fmLines, line)
	}

	if !foundClosing {
		return nil, string(data), nil
	}

	var contentLines []string
	for scanner.Scan() {
		contentLines = append(contentLines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, "", fmt.Errorf("scanning file: %w", err)
	}

	frontmatter = []byte(strings.Join(fmLines, "\n"))
	content = strings.TrimSpace(strings.Join(contentLines, "\n"))

	return frontmatter, content, nil
}
