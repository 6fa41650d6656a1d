// Package email abstracts outbound email transmission behind a narrow Sender
// interface, with an AWS SES v2 implementation for production and a logging
// no-op for development and tests.
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

// Sender delivers one email. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SESSender sends through AWS SES v2.
type SESSender struct {
	client *sesv2.Client
	from   string
}

// NewSESSender builds a sender for the given verified from-address.
func NewSESSender(cfg aws.Config, from string) (*SESSender, error) {
	if from == "" {
		return nil, fmt.Errorf("email: from address must not be empty")
	}
	return &SESSender{
		client: sesv2.NewFromConfig(cfg),
		from:   from,
	}, nil
}

// Send submits a simple two-part message to SES.
func (s *SESSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
					Text: &types.Content{Data: aws.String(textBody)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}

// LogSender pretends to deliver by writing the send to the log. Used when
// EMAIL_ENABLED is off so the rest of the pipeline can be exercised locally.
type LogSender struct{}

// Send logs the would-be delivery and succeeds.
func (LogSender) Send(_ context.Context, to, subject, _, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("email sending disabled; dropping message")
	return nil
}
