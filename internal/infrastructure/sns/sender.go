package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/go-auth-nosql/internal/config"
	"github.com/go-auth-nosql/internal/domain"
	"github.com/go-auth-nosql/internal/pkg/metrics"
)

const gatewayName = "sns"

// Message types published to the email topic. Subscribers render the email.
const (
	TypeVerification     = "verification"
	TypePasswordRecovery = "recover-password"
	TypePassword         = "password"
)

// Publisher is the subset of *sns.Client used by Sender.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender publishes email requests to an SNS topic.
type Sender struct {
	client   Publisher
	topicARN string
}

func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SNSRegion)}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Sender{client: sns.NewFromConfig(awsCfg, clientOpts...), topicARN: cfg.SNSEmailTopicARN}, nil
}

func (s *Sender) SendVerificationEmail(ctx context.Context, e domain.VerificationEmail) error {
	return s.publish(ctx, "send verification email", TypeVerification, e)
}

func (s *Sender) SendPasswordRecoveryEmail(ctx context.Context, e domain.PasswordRecoveryEmail) error {
	return s.publish(ctx, "send password recovery email", TypePasswordRecovery, e)
}

func (s *Sender) SendGeneratedPassword(ctx context.Context, e domain.GeneratedPasswordEmail) error {
	return s.publish(ctx, "send generated password", TypePassword, e)
}

func (s *Sender) publish(ctx context.Context, op, msgType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return s.fail(op, domain.Terminal, fmt.Errorf("marshal %s message: %w", msgType, err))
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(msgType)},
		},
	})
	if err != nil {
		return s.fail(op, classify(err), err)
	}
	metrics.RecordGateway(gatewayName, "ok")
	return nil
}

// classify treats faults the caller caused as terminal. Server faults and
// transport failures are retryable.
func classify(err error) domain.GatewayKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return domain.Terminal
	}
	return domain.Retryable
}

func (s *Sender) fail(op string, kind domain.GatewayKind, err error) error {
	metrics.RecordGateway(gatewayName, kind.String())
	return &domain.GatewayError{Gateway: gatewayName, Op: op, Kind: kind, Err: err}
}
