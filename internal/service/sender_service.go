package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"gymslots/internal/config"
)

// SenderService is the outbound notification gateway: template emails via
// SendGrid dynamic templates, plus a best-effort SMS nudge via Twilio.
type SenderService struct {
	apiKey    string
	fromEmail string
	fromName  string

	twilioSID   string
	twilioToken string
	twilioFrom  string
}

func NewSenderService(cfg *config.Config) *SenderService {
	return &SenderService{
		apiKey:      cfg.SendGridAPIKey,
		fromEmail:   cfg.SendGridFromEmail,
		fromName:    cfg.SendGridFromName,
		twilioSID:   cfg.TwilioAccountSID,
		twilioToken: cfg.TwilioAuthToken,
		twilioFrom:  cfg.TwilioFromNumber,
	}
}

// SendTemplate sends a dynamic-template email and returns the provider
// message id from the response headers.
func (s *SenderService) SendTemplate(ctx context.Context, toEmail, toName, templateID string, params map[string]string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("SENDGRID_API_KEY is not configured")
	}
	if s.fromEmail == "" {
		return "", fmt.Errorf("SENDGRID_FROM_EMAIL is not configured")
	}
	if templateID == "" {
		return "", fmt.Errorf("missing template id")
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(s.fromName, s.fromEmail))
	message.SetTemplateID(templateID)

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail(toName, toEmail))
	for key, value := range params {
		personalization.SetDynamicTemplateData(key, value)
	}
	message.AddPersonalizations(personalization)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("SendGrid returned non-success status %d: %s", response.StatusCode, response.Body)
	}

	messageID := firstHeader(response.Headers, "X-Message-Id")
	if messageID == "" {
		return "", fmt.Errorf("SendGrid response missing X-Message-Id header")
	}
	return messageID, nil
}

// SendSMS delivers a short text through Twilio. Failures here never affect
// reminder status; callers log and move on.
func (s *SenderService) SendSMS(toNumber, body string) error {
	if s.twilioSID == "" || s.twilioToken == "" || s.twilioFrom == "" {
		return fmt.Errorf("Twilio credentials are not fully configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("WARNING: destination number %q is not E.164, SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: s.twilioSID,
		Password: s.twilioToken,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(s.twilioFrom)
	params.SetBody(body)

	resp, err := client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		log.Printf("SMS sent to %s, message SID %s", toNumber, *resp.Sid)
	}
	return nil
}

func firstHeader(headers map[string][]string, name string) string {
	for key, values := range headers {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
