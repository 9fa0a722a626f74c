package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RedactedValue replaces secrets in configs handed to clients
const RedactedValue = "********"

// IsMasked reports whether a secret came back from a client still redacted
func IsMasked(secret string) bool {
	return secret == RedactedValue
}

// Redacted returns a deep copy of c with every secret masked
func (c *AppConfig) Redacted() *AppConfig {
	out := *c
	if c.OpenAI != nil {
		openai := *c.OpenAI
		openai.APIKey = mask(openai.APIKey)
		out.OpenAI = &openai
	}
	if c.Gemini != nil {
		gemini := *c.Gemini
		gemini.APIKey = mask(gemini.APIKey)
		out.Gemini = &gemini
	}
	if c.Ollama != nil {
		ollama := *c.Ollama
		out.Ollama = &ollama
	}
	out.WordPressSites = make([]WordPressSite, len(c.WordPressSites))
	for i, site := range c.WordPressSites {
		site.AppPassword = mask(site.AppPassword)
		out.WordPressSites[i] = site
	}
	return &out
}

// YAML renders the redacted configuration for humans
func (c *AppConfig) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return RedactedValue
}

// RestoreSecrets replaces masked secrets in c with the values from prev.
// Sites are matched by id. A masked value with no counterpart is cleared.
func (c *AppConfig) RestoreSecrets(prev *AppConfig) {
	if c.OpenAI != nil && IsMasked(c.OpenAI.APIKey) {
		c.OpenAI.APIKey = ""
		if prev != nil && prev.OpenAI != nil {
			c.OpenAI.APIKey = prev.OpenAI.APIKey
		}
	}
	if c.Gemini != nil && IsMasked(c.Gemini.APIKey) {
		c.Gemini.APIKey = ""
		if prev != nil && prev.Gemini != nil {
			c.Gemini.APIKey = prev.Gemini.APIKey
		}
	}
	for i := range c.WordPressSites {
		site := &c.WordPressSites[i]
		if !IsMasked(site.AppPassword) {
			continue
		}
		site.AppPassword = ""
		if prev == nil {
			continue
		}
		if old, ok := prev.FindSite(site.ID); ok {
			site.AppPassword = old.AppPassword
		}
	}
}
