package llm

import (
	"fmt"
	"strings"

	"gauntlet-backend/internal/github"
)

// buildPrompt renders the diff into a review prompt: a per-file summary
// followed by the patches, truncated at maxDiffChars.
func buildPrompt(diff *github.Diff) string {
	var b strings.Builder
	b.WriteString("## Code Changes\nThe candidate has made the following changes to the codebase:\n\n")
	b.WriteString("### File Summary\n")
	b.WriteString(fileSummary(diff.Files))
	b.WriteString("\n\n### Detailed Diffs\n")
	b.WriteString(diffText(diff.Files))
	b.WriteString("\n\n## Your Task\n")
	b.WriteString("Please provide:\n")
	b.WriteString("1. A concise summary of what the code does and its overall quality\n")
	b.WriteString("2. Specific strengths and areas for improvement\n")
	b.WriteString("3. A final assessment score (1-5) if appropriate\n\n")
	b.WriteString("Format your response in clear, structured markdown.")
	return b.String()
}

func fileSummary(files []github.DiffFile) string {
	if len(files) == 0 {
		return "No file changes."
	}
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("- %s: %s (+%d/-%d lines)", f.Status, f.Filename, f.Additions, f.Deletions))
	}
	return strings.Join(lines, "\n")
}

func diffText(files []github.DiffFile) string {
	var parts []string
	length := 0
	for _, f := range files {
		if f.Patch == "" {
			continue
		}
		header := fmt.Sprintf("\n--- File: %s (%s) ---\n", f.Filename, f.Status)
		content := header + f.Patch
		if length+len(content) > maxDiffChars {
			remaining := maxDiffChars - length - len(header) - 100
			if remaining > 0 {
				parts = append(parts, header+f.Patch[:remaining]+"\n... (truncated)")
			}
			parts = append(parts, "\n--- Note: Additional file changes truncated due to length limits ---")
			break
		}
		parts = append(parts, content)
		length += len(content)
	}
	if len(parts) == 0 {
		return "No diff content available."
	}
	return strings.Join(parts, "\n")
}
