package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# Name Server Configuration File
#
# Every value can be overridden with an environment variable named
# NAMESERVER_<SECTION>_<KEY>, e.g. NAMESERVER_LOGGING_LEVEL=DEBUG.
`

// sectionComments are written above each top-level section.
var sectionComments = map[string]string{
	"logging":   "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr or a file path)",
	"server":    "Process settings",
	"storage":   "Key-value engine: memory (lost on exit) or badger (persistent, options below)",
	"namespace": "Geometry of new page files in bytes; segment size must be a multiple of chunk size",
	"idgen":     "Id generators; persistent generators keep their position in the storage engine",
	"topology":  "Logical pool new segments are placed in",
	"metrics":   "Prometheus /metrics endpoint",
	"gc":        "Background removal of segments whose file record is gone (nsctl serve)",
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ToYAML renders cfg the way InitConfig writes it.
func ToYAML(cfg *Config) (string, error) {
	return generateYAMLWithComments(cfg)
}

// generateYAMLWithComments renders cfg as YAML with a header and one
// comment per section. Durations are written in their string form so the
// file stays readable.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}
	setScalar(&doc, cfg.Server.ShutdownTimeout.String(), "server", "shutdown_timeout")
	setScalar(&doc, cfg.GC.Interval.String(), "gc", "interval")

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	return buf.String(), nil
}

// setScalar replaces the scalar found by following path through nested
// mappings with a string value.
func setScalar(node *yaml.Node, value string, path ...string) {
	for _, name := range path {
		if node.Kind != yaml.MappingNode {
			return
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == name {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return
		}
		node = next
	}
	node.Kind = yaml.ScalarNode
	node.Tag = "!!str"
	node.Value = value
}
