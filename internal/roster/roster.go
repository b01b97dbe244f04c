package roster

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the roster file read when none is configured.
const DefaultPath = "emails.txt"

// Roster is the ordered list of monitored email addresses.
type Roster []string

type yamlRoster struct {
	Emails []string `yaml:"emails"`
}

// Load reads a roster file. A missing file yields an empty roster rather than
// an error. Files ending in .yaml or .yml are read as a mapping with an
// "emails" list; anything else is one address per line.
func Load(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Roster{}, nil
		}
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return Parse(bytes.NewReader(data))
	}
}

// Parse reads newline-separated addresses. Blank lines and surrounding
// whitespace are dropped; order is preserved.
func Parse(r io.Reader) (Roster, error) {
	out := Roster{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return out, nil
}

func parseYAML(data []byte) (Roster, error) {
	var doc yamlRoster
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	out := Roster{}
	for _, email := range doc.Emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		out = append(out, email)
	}
	return out, nil
}
