package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/config"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
)

// sendFunc matches smtp.SendMail so tests can capture outgoing mail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	smtpHost     string
	smtpAddr     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	send         sendFunc
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		smtpHost:     cfg.SMTPHost,
		smtpAddr:     cfg.Address(),
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		fromEmail:    cfg.FromEmail,
		send:         smtp.SendMail,
	}
}

// codeEmail is the data for every one-time code message.
type codeEmail struct {
	Heading string
	Name    string
	Intro   string
	Code    string
	Outro   string
}

// SendVerificationCode sends the registration verification code.
func (s *Service) SendVerificationCode(ctx context.Context, toEmail, name, code string) error {
	return s.sendCode(ctx, toEmail, "Verify your email", codeEmail{
		Heading: "Welcome!",
		Name:    name,
		Intro:   "Thanks for signing up. Use this code to verify your email address:",
		Code:    code,
		Outro:   "If you didn't create an account, you can safely ignore this email.",
	})
}

// SendLoginVerificationCode sends the code needed to finish logging in with
// an unverified address.
func (s *Service) SendLoginVerificationCode(ctx context.Context, toEmail, name, code string) error {
	return s.sendCode(ctx, toEmail, "Email Verification Required", codeEmail{
		Heading: "Verify your email to log in",
		Name:    name,
		Intro:   "Your email address is not verified yet. Use this code to verify it and finish logging in:",
		Code:    code,
		Outro:   "If you didn't try to log in, you can safely ignore this email.",
	})
}

// SendPasswordResetCode sends the password reset code.
func (s *Service) SendPasswordResetCode(ctx context.Context, toEmail, name, code string) error {
	return s.sendCode(ctx, toEmail, "Password Reset Verification Code", codeEmail{
		Heading: "Password Reset Request",
		Name:    name,
		Intro:   "Use this code to reset your password:",
		Code:    code,
		Outro:   "If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.",
	})
}

func (s *Service) sendCode(ctx context.Context, toEmail, subject string, data codeEmail) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(codeTemplate, data)
	if err != nil {
		logger.Error("failed to render email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, subject, body); err != nil {
		logger.Error("failed to send email", "email", toEmail, "subject", subject, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("email sent", "email", toEmail, "subject", subject)
	return nil
}

// ContactDetails is a contact or enquiry submission forwarded to staff.
type ContactDetails struct {
	Type    string
	Name    string
	Email   string
	Number  string
	City    string
	Message string
}

// SendContactNotification forwards a contact submission to toEmail.
func (s *Service) SendContactNotification(ctx context.Context, toEmail string, d ContactDetails) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(contactTemplate, d)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	subject := fmt.Sprintf("New %s from %s", d.Type, d.Name)
	if err := s.sendEmail(toEmail, subject, body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("contact notification sent", "type", d.Type)
	return nil
}

// headerSafe drops CR and LF so a value cannot add mail headers.
func headerSafe(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		headerSafe(s.fromEmail), headerSafe(to), headerSafe(subject), body,
	))

	return s.send(s.smtpAddr, auth, s.fromEmail, []string{to}, msg)
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

const layout = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .code {
            font-size: 32px;
            font-weight: bold;
            letter-spacing: 8px;
            color: #4F46E5;
            text-align: center;
            margin: 24px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{block "heading" .}}{{end}}</h1>
    </div>
    <div class="content">
        {{block "content" .}}{{end}}
    </div>
    <div class="footer">
        <p>&copy; 2026 Buddy Rentals. All rights reserved.</p>
    </div>
</body>
</html>
`

var codeTemplate = template.Must(template.Must(template.New("code").Parse(layout)).Parse(`
{{define "heading"}}{{.Heading}}{{end}}
{{define "content"}}
        <p>Hi {{.Name}},</p>
        <p>{{.Intro}}</p>
        <p class="code">{{.Code}}</p>
        <p>This code is valid for 10 minutes.</p>
        <p style="margin-top: 30px;">{{.Outro}}</p>
{{end}}
`))

var contactTemplate = template.Must(template.Must(template.New("contact").Parse(layout)).Parse(`
{{define "heading"}}New {{.Type}}{{end}}
{{define "content"}}
        <p><strong>Name:</strong> {{.Name}}</p>
        {{if .Email}}<p><strong>Email:</strong> {{.Email}}</p>{{end}}
        <p><strong>Phone:</strong> {{.Number}}</p>
        {{if .City}}<p><strong>City:</strong> {{.City}}</p>{{end}}
        <p><strong>Message:</strong></p>
        <p>{{.Message}}</p>
{{end}}
`))
