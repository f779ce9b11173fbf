package emails

import (
	"strings"
	"time"

	"gauntlet-backend/internal/domain"
)

// Default templates, used when an assessment carries no override.
const (
	inviteDefaultSubject = "Your coding interview project is ready"
	inviteDefaultBody    = "Hi {{candidate_name}},\n\n" +
		"Your project for {{assessment_title}} is ready. " +
		"Use the link below to get started and remember to submit before the deadline.\n\n" +
		"{{start_link}}\n"

	startedDefaultSubject = "Your assessment is underway"
	startedDefaultBody    = "Hi {candidate_name}, we're excited to see your progress on {assessment_title}.\n\n" +
		"You can keep working in your project repository: {candidate_repo_url}.\n" +
		"Remember to submit before {complete_deadline}."

	submittedDefaultSubject = "Thanks for submitting {assessment_title}"
	submittedDefaultBody    = "Hi {candidate_name}, thanks for submitting {assessment_title}.\n\n" +
		"We'll review your work and follow up soon."
)

// buildContext collects the placeholder values available to templates.
// Unset timestamps are simply absent so their placeholders survive verbatim
// and template authors can spot the mistake.
func buildContext(invitation *domain.Invitation, assessment *domain.Assessment, startLink string) map[string]string {
	vars := map[string]string{
		"candidate_name":   invitation.CandidateName,
		"candidate_email":  invitation.CandidateEmail,
		"assessment_title": assessment.Title,
	}
	if vars["candidate_name"] == "" {
		vars["candidate_name"] = invitation.CandidateEmail
	}
	if startLink != "" {
		vars["start_link"] = startLink
	}

	optional := map[string]*time.Time{
		"start_deadline":    invitation.StartDeadline,
		"complete_deadline": invitation.CompleteDeadline,
		"started_at":        invitation.StartedAt,
		"submitted_at":      invitation.SubmittedAt,
	}
	for key, value := range optional {
		if value != nil {
			vars[key] = formatDeadline(*value)
		}
	}
	return vars
}

func formatDeadline(value time.Time) string {
	return value.UTC().Format("2006-01-02 15:04 MST")
}

// renderTemplate substitutes {key} and {{key}} placeholders. When
// startLinkFallback is set and the template never referenced the start link,
// it is appended so a custom invite body cannot strand the candidate.
func renderTemplate(template string, vars map[string]string, defaultTemplate string, startLinkFallback bool) string {
	if strings.TrimSpace(template) == "" {
		template = defaultTemplate
	}
	rendered := template
	for key, value := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+key+"}}", value)
		rendered = strings.ReplaceAll(rendered, "{"+key+"}", value)
	}
	if startLinkFallback && vars["start_link"] != "" &&
		!strings.Contains(template, "{{start_link}}") && !strings.Contains(template, "{start_link}") {
		rendered = rendered + "\n\nStart your project: " + vars["start_link"]
	}
	return strings.TrimSpace(rendered)
}

// textToHTML escapes the plain-text body and converts newlines to breaks.
func textToHTML(text string) string {
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		parts[i] = escapeHTML(part)
	}
	return strings.Join(parts, "<br>")
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
