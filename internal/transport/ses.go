package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/notify-engine/internal/pkg/logger"
)

var sesLog = logger.Component("ses")

// SESAPI is the subset of the SES v2 client used to send.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends through AWS SES v2.
type SES struct {
	client    SESAPI
	from      From
	configSet string
}

// SESOptions configures NewSESFromConfig. Static keys are optional; without
// them the default AWS credential chain is used.
type SESOptions struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	ConfigurationSet string
}

// NewSES creates an SES transport on an existing client.
func NewSES(client SESAPI, from From, configSet string) *SES {
	return &SES{client: client, from: from, configSet: configSet}
}

// NewSESFromConfig loads AWS configuration and creates an SES transport.
func NewSESFromConfig(ctx context.Context, opts SESOptions, from From) (*SES, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewSES(sesv2.NewFromConfig(cfg), from, opts.ConfigurationSet), nil
}

func (s *SES) Send(ctx context.Context, to, subject, body string) error {
	if s.client == nil {
		return errors.New("SES client not initialized")
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if s.configSet != "" {
		input.ConfigurationSetName = aws.String(s.configSet)
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES send: %w", err)
	}
	sesLog.Debug("sent", "recipient", to, "message_id", aws.ToString(result.MessageId))
	return nil
}
