package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/capture"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	captureEnvPrefix   = "CAPTURE_"
	maxCaptureFileSize = 64 * 1024
)

// policyFields are the koanf keys of capture.FlushPolicy, longest first so
// suffix matching picks min_fragment_length over a shorter field
var policyFields = []string{"min_fragment_length", "flush_on_end", "interval", "silence"}

// LoadCapturePolicies returns the built-in flush policies overlaid with the
// YAML file at path (optional) and CAPTURE_<CHANNEL>_<FIELD> variables.
//
// File layout:
//
//	channels:
//	  zoom:
//	    interval: 45s
//	    silence: 5s
//	    min_fragment_length: 4
//
// Fields a source leaves unset keep their built-in value.
func LoadCapturePolicies(path string) (capture.Policies, error) {
	var content []byte
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat capture config: %w", err)
		}
		if info.Size() > maxCaptureFileSize {
			return nil, fmt.Errorf("capture config %s exceeds %d bytes", path, maxCaptureFileSize)
		}
		content, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read capture config: %w", err)
		}
	}
	return loadCapturePolicies(content)
}

func loadCapturePolicies(content []byte) (capture.Policies, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse capture config: %w", err)
		}
	}

	if err := k.Load(env.Provider(captureEnvPrefix, ".", captureEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load capture environment: %w", err)
	}

	defaults := capture.DefaultPolicies()
	overrides := make(capture.Policies)
	for _, channel := range k.MapKeys("channels") {
		source := models.TaskSource(channel)
		if !source.Valid() {
			return nil, fmt.Errorf("unknown capture channel %q", channel)
		}
		policy := defaults.For(source)
		if err := k.Unmarshal("channels."+channel, &policy); err != nil {
			return nil, fmt.Errorf("failed to decode policy for %s: %w", channel, err)
		}
		if policy.Interval < 0 || policy.Silence < 0 || policy.MinFragmentLength < 0 {
			return nil, fmt.Errorf("policy for %s has negative values", channel)
		}
		overrides[source] = policy
	}

	return defaults.Merge(overrides), nil
}

// captureEnvKey maps CAPTURE_BOT_RECALL_FLUSH_ON_END to
// channels.bot_recall.flush_on_end. Unrecognized names are skipped.
func captureEnvKey(key string) string {
	rest := strings.ToLower(strings.TrimPrefix(key, captureEnvPrefix))
	for _, field := range policyFields {
		if channel, ok := strings.CutSuffix(rest, "_"+field); ok && channel != "" {
			return "channels." + channel + "." + field
		}
	}
	return ""
}
