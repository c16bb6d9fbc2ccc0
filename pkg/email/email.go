package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"contactbook_backend/pkg/logger"
)

const resendEndpoint = "https://api.resend.com/emails"

type Config struct {
	APIKey string
	From   string
	// Endpoint overrides the Resend API URL.
	Endpoint string
}

type EmailService struct {
	apiKey    string
	from      string
	endpoint  string
	http      *http.Client
	templates *template.Template
	log       *logger.Logger
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type WelcomeEmailData struct {
	Name string
}

type PaymentFailedData struct {
	Name     string
	PlanName string
}

type SubscriptionCancelledData struct {
	Name      string
	PlanName  string
	ExpiresAt time.Time
}

type SubscriptionExpiryWarningData struct {
	Name       string
	PlanName   string
	DaysLeft   int
	ExpiryDate time.Time
}

func NewEmailService(cfg Config, log *logger.Logger) (*EmailService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %w", err)
	}

	if cfg.From == "" {
		cfg.From = "Contactbook <noreply@contactbook.app>"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = resendEndpoint
	}
	if log == nil {
		log = logger.Nop()
	}

	return &EmailService{
		apiKey:    cfg.APIKey,
		from:      cfg.From,
		endpoint:  cfg.Endpoint,
		http:      &http.Client{Timeout: 15 * time.Second},
		templates: templates,
		log:       log,
	}, nil
}

func (s *EmailService) sendTemplateEmail(ctx context.Context, to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("resend API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	s.log.Debug("email sent", "email", to, "template", templateName)
	return nil
}

func (s *EmailService) SendWelcomeEmail(ctx context.Context, email, name string) error {
	data := WelcomeEmailData{
		Name: name,
	}
	return s.sendTemplateEmail(ctx, email, "Welcome to Contactbook!", "welcome.html", data)
}

func (s *EmailService) SendPaymentFailedEmail(ctx context.Context, email, name, planName string) error {
	data := PaymentFailedData{
		Name:     name,
		PlanName: planName,
	}
	return s.sendTemplateEmail(ctx, email, "We couldn't process your payment", "payment_failed.html", data)
}

func (s *EmailService) SendSubscriptionCancelledEmail(ctx context.Context, email, name, planName string, expiresAt time.Time) error {
	data := SubscriptionCancelledData{
		Name:      name,
		PlanName:  planName,
		ExpiresAt: expiresAt,
	}
	return s.sendTemplateEmail(ctx, email, "Your Subscription Has Been Cancelled", "subscription_cancelled.html", data)
}

func (s *EmailService) SendSubscriptionExpiryWarning(
	ctx context.Context,
	email, name, planName string,
	expiryDate time.Time,
	daysLeft int,
) error {
	data := SubscriptionExpiryWarningData{
		Name:       name,
		PlanName:   planName,
		DaysLeft:   daysLeft,
		ExpiryDate: expiryDate,
	}
	return s.sendTemplateEmail(
		ctx,
		email,
		fmt.Sprintf("Your Subscription Expires in %d Days", daysLeft),
		"subscription_expiry_warning.html",
		data,
	)
}
