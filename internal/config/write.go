package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cpw/indexer/internal/log"
)

// DefaultConfigYAML renders the default configuration as commented YAML.
// Paths are written as comments so the repository-root defaults still apply.
func DefaultConfigYAML() ([]byte, error) {
	d := Defaults()

	root := mapping(
		commented("repo_root", "/path/to/repo", "Repository root. Default: nearest ancestor containing modules/registry (env: CPW_REPO_ROOT)"),
		commented("artifacts_root", "Artifacts", "Artifacts view root. Default: <repo>/Artifacts (env: CPW_ARTIFACTS_ROOT)"),
		commented("registry_db", "modules/registry/registry.sqlite", "Registry database. Default: <repo>/modules/registry/registry.sqlite (env: CPW_REGISTRY_DB)"),
		field("workers", d.Workers, "Concurrent placements"),
		field("placement", mapping(
			field("mode", d.Placement.Mode, `"auto" symlinks and falls back to copying, "copy" always copies`),
		), ""),
		field("watch", mapping(
			field("enabled", d.Watch.Enabled, "Rebuild whenever the registry changes"),
			field("debounce", d.Watch.Debounce.String(), ""),
		), ""),
		field("log", mapping(
			commented("path", "/tmp/indexer.log", "Log file. Default: stderr"),
			field("debug", d.Log.Debug, ""),
		), ""),
		field("tracing", mapping(
			field("enabled", d.Tracing.Enabled, ""),
			field("exporter", d.Tracing.Exporter, `"none", "file", "stdout" or "otlp"`),
			commented("file_path", "traces.jsonl", "Default: ~/.config/indexer/traces/traces.jsonl"),
			field("otlp_endpoint", d.Tracing.OTLPEndpoint, ""),
			field("sample_rate", d.Tracing.SampleRate, ""),
		), ""),
	)
	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "Indexer configuration",
		Content:     []*yaml.Node{root.Value},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
// An existing file is left untouched and reported as an error.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config file", err, "path", configPath)
		return fmt.Errorf("creating config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

// entry is one key/value pair of a mapping node.
type entry struct {
	Key   *yaml.Node
	Value *yaml.Node
}

func mapping(entries ...entry) entry {
	n := &yaml.Node{Kind: yaml.MappingNode}
	var pending []string
	for _, e := range entries {
		if e.Key == nil {
			pending = append(pending, e.Value.HeadComment)
			continue
		}
		if len(pending) > 0 {
			e.Key.HeadComment = strings.TrimSpace(strings.Join(append(pending, e.Key.HeadComment), "\n"))
			pending = nil
		}
		n.Content = append(n.Content, e.Key, e.Value)
	}
	if len(pending) > 0 {
		n.FootComment = strings.Join(pending, "\n")
	}
	return entry{Value: n}
}

// field builds a key with a value; value may be a scalar or a mapping entry.
func field(key string, value any, comment string) entry {
	k := &yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: comment}
	if m, ok := value.(entry); ok {
		return entry{Key: k, Value: m.Value}
	}
	v := &yaml.Node{}
	if err := v.Encode(value); err != nil {
		panic(fmt.Sprintf("encoding %s: %v", key, err))
	}
	return entry{Key: k, Value: v}
}

// commented renders a key that is left unset as a comment only. It is
// attached to the next key of the enclosing mapping.
func commented(key, example, comment string) entry {
	return entry{
		Key:   nil,
		Value: &yaml.Node{HeadComment: fmt.Sprintf("%s\n%s: %s", comment, key, example)},
	}
}
