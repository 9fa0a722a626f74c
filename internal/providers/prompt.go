package providers

import (
	"encoding/json"
	"strings"

	"github.com/lehigh-university-libraries/mediapress/internal/models"
	"github.com/lehigh-university-libraries/mediapress/internal/taskerr"
)

// UserPrompt accompanies the image in the user turn
const UserPrompt = "Analyze this image and generate SEO metadata in English. Include a descriptive filename slug."

const systemPromptHead = "You are an SEO assistant. Generate metadata for images in ENGLISH ONLY. " +
	"All fields (filename, alt, title, caption, description, tags) must be in English. " +
	"Never use Chinese or other languages. " +
	"Use lowercase slugs for filenames (e.g., 'sunset-beach-waves.webp'). "

const systemPromptGuidelines = `Follow these guidelines:
- filename: Use lowercase letters, hyphens, 3-5 words, descriptive, end with .webp (40-60 chars)
- title: Concise, descriptive title (40-60 chars)
- alt_text: Detailed description for accessibility (100-125 chars)
- description: Longer description with context (150-200 chars)
- tags: 5-8 relevant keywords (single words or short phrases)
Return ONLY valid JSON in this exact format: {"filename":"...","title":"...","description":"...","alt_text":"...","tags":["..."]}`

// SystemPrompt builds the system instruction, placing the site context before the guidelines
func SystemPrompt(siteContext string) string {
	var b strings.Builder
	b.WriteString(systemPromptHead)
	if siteContext != "" {
		b.WriteString("Website context: ")
		b.WriteString(siteContext)
		b.WriteString(". ")
	}
	b.WriteString(systemPromptGuidelines)
	return b.String()
}

// ExtractJSON strips a markdown code fence around the model output.
// A ```json fence wins over a bare ``` fence; unfenced content is only trimmed.
func ExtractJSON(content string) string {
	if _, after, ok := strings.Cut(content, "```json"); ok {
		inner, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(inner)
	}
	if _, after, ok := strings.Cut(content, "```"); ok {
		inner, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(inner)
	}
	return strings.TrimSpace(content)
}

// ParseAnalysis decodes the model output into an ImageAnalysis
func ParseAnalysis(content string) (*models.ImageAnalysis, error) {
	var analysis models.ImageAnalysis
	if err := json.Unmarshal([]byte(ExtractJSON(content)), &analysis); err != nil {
		return nil, taskerr.Decode("Failed to parse analysis result", err)
	}
	return &analysis, nil
}
