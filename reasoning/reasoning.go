// Package reasoning maps the abstract reasoning-effort setting onto the
// native control each hosted provider family exposes: a discrete thinking
// level, a numeric token budget, or an opt-in request extension object.
package reasoning

import (
	"fmt"
	"strings"
)

// Effort is the abstract reasoning-effort knob shared by every backend.
type Effort string

const (
	EffortNone    Effort = "none"
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortMedium  Effort = "medium"
	EffortHigh    Effort = "high"
	// EffortAuto leaves reasoning control entirely to the provider;
	// every mapper reports "omit the field" for it.
	EffortAuto Effort = "auto"
)

// Parse validates a configuration string as an Effort.
func Parse(s string) (Effort, error) {
	e := Effort(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case EffortNone, EffortMinimal, EffortLow, EffortMedium, EffortHigh, EffortAuto:
		return e, nil
	}
	return "", fmt.Errorf("invalid reasoning effort %q", s)
}

// Level maps an effort onto the discrete reasoning_effort levels used by
// xAI-style chat APIs. The second return is false when the control should
// be omitted from the request. This family cannot disable reasoning
// outright, so "none" is approximated by the lowest level.
func Level(e Effort) (string, bool) {
	switch e {
	case EffortNone, EffortMinimal:
		return "minimal", true
	case EffortLow:
		return "low", true
	case EffortMedium:
		return "medium", true
	case EffortHigh:
		return "high", true
	}
	return "", false
}

// Budget maps an effort onto the thinking-token budgets used by
// Gemini-style APIs. A budget of 0 requests that reasoning be disabled,
// which some models silently ignore.
func Budget(e Effort) (int, bool) {
	switch e {
	case EffortNone:
		return 0, true
	case EffortMinimal:
		return 256, true
	case EffortLow:
		return 1024, true
	case EffortMedium:
		return 4096, true
	case EffortHigh:
		return 8192, true
	}
	return 0, false
}

// ExtensionConfig is the OpenRouter-style reasoning extension object.
// Exclude keeps reasoning tokens out of the visible completion.
type ExtensionConfig struct {
	Effort  string `json:"effort"`
	Exclude bool   `json:"exclude"`
}

// Extension maps an effort onto the opt-in request extension used by
// OpenRouter-style APIs. Every non-auto effort passes through by name.
func Extension(e Effort) (ExtensionConfig, bool) {
	if e == EffortAuto || e == "" {
		return ExtensionConfig{}, false
	}
	return ExtensionConfig{Effort: string(e), Exclude: true}, true
}
