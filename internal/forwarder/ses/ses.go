// Package ses implements a forwarder that re-sends the raw message through
// AWS SES v2.
package ses

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Config holds the configuration for creating a Forwarder.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// Sender is the verified SES identity used as the envelope sender.
	Sender string
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Forwarder forwards raw messages via SES SendEmail with raw content.
type Forwarder struct {
	sender string
	client SendEmailAPI
}

// New creates a Forwarder from the default AWS configuration chain, with
// static credentials when both keys are set.
func New(ctx context.Context, cfg Config) (*Forwarder, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Forwarder with a custom client, used for testing.
func NewWithClient(sender string, client SendEmailAPI) *Forwarder {
	return &Forwarder{
		sender: sender,
		client: client,
	}
}

// Forward sends raw, unmodified, to address. The request is made once.
func (f *Forwarder) Forward(ctx context.Context, address string, raw []byte) error {
	input := &sesv2.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{address},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}
	if f.sender != "" {
		input.FromEmailAddress = aws.String(f.sender)
	}

	out, err := f.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES SendEmail failed: %w", err)
	}

	slog.Debug("message forwarded via SES",
		"to", address,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// Name returns the forwarder name.
func (f *Forwarder) Name() string {
	return "ses"
}
