package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"

	"github.com/BradenHooton/helpdesk/internal/models"
	pkglogger "github.com/BradenHooton/helpdesk/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Notifier tells people about request activity. Delivery is best effort.
type Notifier interface {
	RequestSubmitted(ctx context.Context, req *models.ServiceRequest) error
	StatusChanged(ctx context.Context, req *models.ServiceRequest, previousStatus string) error
}

// NoopNotifier is used when email is disabled
type NoopNotifier struct{}

func (NoopNotifier) RequestSubmitted(context.Context, *models.ServiceRequest) error { return nil }

func (NoopNotifier) StatusChanged(context.Context, *models.ServiceRequest, string) error { return nil }

// SESAPI is the subset of the SES client used by SESNotifier
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier sends notifications using AWS SES
type SESNotifier struct {
	client         SESAPI
	fromAddress    string
	supportAddress string
	baseURL        string
	logger         *slog.Logger
}

// NewSESNotifier creates a notifier backed by the default AWS credential chain
func NewSESNotifier(ctx context.Context, region, fromAddress, supportAddress, baseURL string, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, supportAddress, baseURL, logger), nil
}

func NewSESNotifierWithClient(client SESAPI, fromAddress, supportAddress, baseURL string, logger *slog.Logger) *SESNotifier {
	return &SESNotifier{
		client:         client,
		fromAddress:    fromAddress,
		supportAddress: supportAddress,
		baseURL:        baseURL,
		logger:         logger,
	}
}

// RequestSubmitted alerts the support mailbox and confirms to the requester
func (n *SESNotifier) RequestSubmitted(ctx context.Context, req *models.ServiceRequest) error {
	ref := "#" + strconv.FormatInt(req.ID, 10)

	if n.supportAddress != "" {
		subject := fmt.Sprintf("New %s request %s: %s", req.Priority, ref, req.Category)
		text := fmt.Sprintf("A new service request was submitted.\n\nRequester: %s\nDepartment: %s\nCategory: %s\nPriority: %s\nAttachments: %d\n\n%s\n\nOpen the dashboard: %s/api/requests/%d\n",
			req.RequesterName, req.Department, req.Category, req.Priority, len(req.Attachments),
			req.Description, n.baseURL, req.ID)
		if err := n.send(ctx, n.supportAddress, subject, text); err != nil {
			return err
		}
	}

	if req.Email != "" {
		subject := fmt.Sprintf("We received your request %s", ref)
		text := fmt.Sprintf("Hello %s,\n\nYour %s request (%s) has been received and is Pending.\nWe will contact you by %s.\n\nThis is an automated message. Please do not reply to this email.\n",
			req.RequesterName, req.Category, ref, req.ContactPreference)
		if err := n.send(ctx, req.Email, subject, text); err != nil {
			return err
		}
	}

	return nil
}

// StatusChanged tells the requester, when they left an email, about the new status
func (n *SESNotifier) StatusChanged(ctx context.Context, req *models.ServiceRequest, previousStatus string) error {
	if req.Email == "" || req.Status == previousStatus {
		return nil
	}

	subject := fmt.Sprintf("Request #%d is now %s", req.ID, req.Status)
	text := fmt.Sprintf("Hello %s,\n\nYour %s request #%d moved from %s to %s.\n",
		req.RequesterName, req.Category, req.ID, previousStatus, req.Status)
	if req.AssignedTo != nil {
		text += fmt.Sprintf("It is assigned to %s.\n", *req.AssignedTo)
	}
	text += "\nThis is an automated message. Please do not reply to this email.\n"

	return n.send(ctx, req.Email, subject, text)
}

func (n *SESNotifier) send(ctx context.Context, to, subject, text string) error {
	htmlBody := `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<pre style="white-space: pre-wrap; font-family: inherit;">` + html.EscapeString(text) + `</pre>
</body>
</html>
`

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(text),
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send email via SES",
			slog.String("to", pkglogger.SanitizedEmail(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("notification email sent",
		slog.String("to", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
