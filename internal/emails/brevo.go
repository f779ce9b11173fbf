package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gauntlet-backend/internal/domain"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender `json:"sender"`
	To          []BrevoTo   `json:"to"`
	Subject     string      `json:"subject"`
	TextContent string      `json:"textContent,omitempty"`
	HTMLContent string      `json:"htmlContent"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Notifier sends candidate lifecycle emails. Every send records an
// EmailEvent row on success. A client with an empty API key is a no-op so
// local environments work without credentials.
type Notifier interface {
	SendInvite(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment, startLinkToken string) error
	SendAssessmentStarted(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment, repoURL string) error
	SendSubmissionReceived(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment) error
}

// BrevoClient sends candidate emails via the Brevo API. Env: BREVO_API_KEY,
// MAIL_FROM, CANDIDATE_APP_URL.
type BrevoClient struct {
	APIKey          string
	MailFrom        string
	CandidateAppURL string
	Client          *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@gauntlet.dev"
}

// send sends one email via Brevo API.
func (c *BrevoClient) send(ctx context.Context, toEmail, subject, text, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "Gauntlet"},
		To:          []BrevoTo{{Email: toEmail}},
		Subject:     subject,
		TextContent: text,
		HTMLContent: html,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, brevoAPI, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendInvite sends the start-link email. The assessment's subject and body
// templates win over the defaults; a body template that never mentions the
// start link still gets it appended so the candidate can always begin.
func (c *BrevoClient) SendInvite(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment, startLinkToken string) error {
	if c.APIKey == "" {
		return nil
	}
	startLink := c.startLink(startLinkToken)
	vars := buildContext(invitation, assessment, startLink)

	subject := renderTemplate(assessment.CandidateEmailSubject, vars, inviteDefaultSubject, false)
	text := renderTemplate(assessment.CandidateEmailBody, vars, inviteDefaultBody, true)

	if err := c.send(ctx, invitation.CandidateEmail, subject, text, textToHTML(text)); err != nil {
		return err
	}
	c.recordEvent(db, invitation, domain.EmailEventInvite, subject)
	return nil
}

// SendAssessmentStarted confirms the work window to a candidate who just
// started, including the repository URL and the completion deadline.
func (c *BrevoClient) SendAssessmentStarted(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment, repoURL string) error {
	if c.APIKey == "" {
		return nil
	}
	vars := buildContext(invitation, assessment, "")
	if repoURL != "" {
		vars["candidate_repo_url"] = repoURL
	}

	subject := renderTemplate("", vars, startedDefaultSubject, false)
	text := renderTemplate("", vars, startedDefaultBody, false)

	if err := c.send(ctx, invitation.CandidateEmail, subject, text, textToHTML(text)); err != nil {
		return err
	}
	c.recordEvent(db, invitation, domain.EmailEventAssessmentStarted, subject)
	return nil
}

// SendSubmissionReceived acknowledges a submission.
func (c *BrevoClient) SendSubmissionReceived(ctx context.Context, db *gorm.DB, invitation *domain.Invitation, assessment *domain.Assessment) error {
	if c.APIKey == "" {
		return nil
	}
	vars := buildContext(invitation, assessment, "")

	subject := renderTemplate("", vars, submittedDefaultSubject, false)
	text := renderTemplate("", vars, submittedDefaultBody, false)

	if err := c.send(ctx, invitation.CandidateEmail, subject, text, textToHTML(text)); err != nil {
		return err
	}
	c.recordEvent(db, invitation, domain.EmailEventSubmissionReceived, subject)
	return nil
}

func (c *BrevoClient) startLink(token string) string {
	base := c.CandidateAppURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + "/candidates/" + token
}

// recordEvent writes the audit row. Failures are logged and swallowed; an
// email that already went out should not fail the request that sent it.
func (c *BrevoClient) recordEvent(db *gorm.DB, invitation *domain.Invitation, eventType, subject string) {
	if db == nil {
		return
	}
	meta, _ := json.Marshal(map[string]string{"subject": subject})
	event := domain.EmailEvent{
		InvitationID: invitation.ID,
		Type:         eventType,
		ToEmail:      invitation.CandidateEmail,
		Status:       "sent",
		Meta:         datatypes.JSON(meta),
	}
	if err := db.Create(&event).Error; err != nil {
		log.Warn().Err(err).Str("invitation_id", invitation.ID.String()).
			Str("type", eventType).Msg("failed to record email event")
	}
}
