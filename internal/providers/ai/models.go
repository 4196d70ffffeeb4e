package ai

import "strings"

// modelFamily declares the models a vendor serves and the aliases accepted
// for them.
type modelFamily struct {
	fallback  string
	canonical map[string]bool
	aliases   map[string]string
	advanced  map[string]bool
}

var openAIModels = modelFamily{
	fallback: "gpt-4o-mini",
	canonical: map[string]bool{
		"gpt-4o-mini":   true,
		"gpt-4o":        true,
		"gpt-4.1-mini":  true,
		"gpt-4.1":       true,
		"gpt-3.5-turbo": true,
	},
	aliases: map[string]string{
		"gpt-3.5":                "gpt-3.5-turbo",
		"gpt3.5":                 "gpt-3.5-turbo",
		"gpt-35-turbo":           "gpt-3.5-turbo",
		"gpt4o-mini":             "gpt-4o-mini",
		"gpt4omini":              "gpt-4o-mini",
		"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
		"gpt4o":                  "gpt-4o",
		"gpt-4o-2024-08-06":      "gpt-4o",
		"gpt4.1":                 "gpt-4.1",
	},
	advanced: map[string]bool{"gpt-4o": true, "gpt-4.1": true},
}

var anthropicModels = modelFamily{
	fallback: "claude-3-5-haiku-latest",
	canonical: map[string]bool{
		"claude-3-5-haiku-latest":  true,
		"claude-3-5-sonnet-latest": true,
		"claude-3-7-sonnet-latest": true,
		"claude-3-opus-latest":     true,
	},
	aliases: map[string]string{
		"claude-haiku":      "claude-3-5-haiku-latest",
		"claude-3-5-haiku":  "claude-3-5-haiku-latest",
		"claude-sonnet":     "claude-3-7-sonnet-latest",
		"claude-3-5-sonnet": "claude-3-5-sonnet-latest",
		"claude-3-7-sonnet": "claude-3-7-sonnet-latest",
		"claude-opus":       "claude-3-opus-latest",
	},
	advanced: map[string]bool{
		"claude-3-5-sonnet-latest": true,
		"claude-3-7-sonnet-latest": true,
		"claude-3-opus-latest":     true,
	},
}

var geminiModels = modelFamily{
	fallback: "gemini-1.5-flash",
	canonical: map[string]bool{
		"gemini-1.5-flash": true,
		"gemini-1.5-pro":   true,
		"gemini-2.0-flash": true,
	},
	aliases: map[string]string{
		"gemini-flash":            "gemini-1.5-flash",
		"gemini-pro":              "gemini-1.5-pro",
		"gemini-1.5-flash-latest": "gemini-1.5-flash",
		"gemini-1.5-pro-latest":   "gemini-1.5-pro",
		"gemini-2-flash":          "gemini-2.0-flash",
	},
	advanced: map[string]bool{"gemini-1.5-pro": true},
}

var families = []modelFamily{openAIModels, anthropicModels, geminiModels}

func canonicalKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	key = strings.ReplaceAll(key, " ", "-")
	return key
}

// resolve maps name onto the family. The second value is "" for an exact
// match, "alias" for an accepted alias and "defaulted" when the family does
// not serve name.
func (f modelFamily) resolve(name string) (string, string) {
	key := canonicalKey(name)
	if key == "" {
		return f.fallback, ""
	}
	if f.canonical[key] {
		return key, ""
	}
	if alias, ok := f.aliases[key]; ok {
		return alias, "alias"
	}
	return f.fallback, "defaulted"
}

// serves reports whether name is a model or alias of the family.
func (f modelFamily) serves(name string) bool {
	_, reason := f.resolve(name)
	return reason != "defaulted"
}

// IsAdvancedModel reports whether name resolves to a model gated behind the
// advanced_models feature in any family.
func IsAdvancedModel(name string) bool {
	if canonicalKey(name) == "" {
		return false
	}
	for _, f := range families {
		if model, reason := f.resolve(name); reason != "defaulted" && f.advanced[model] {
			return true
		}
	}
	return false
}
