// Package mainconfig holds the backend wiring shared by the API server and the
// generation Lambda so both point at the same LocalStack or AWS endpoints.
package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/wolfman30/booking-engine/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// LoadAWSConfig builds the SDK config. Static credentials are used only when
// both halves are set; otherwise the default chain applies.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewDynamoClient returns a DynamoDB client honouring AWS_ENDPOINT_OVERRIDE.
func NewDynamoClient(awsCfg aws.Config, cfg *appconfig.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := endpointOverride(cfg); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewSQSClient returns an SQS client honouring AWS_ENDPOINT_OVERRIDE.
func NewSQSClient(awsCfg aws.Config, cfg *appconfig.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint := endpointOverride(cfg); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func endpointOverride(cfg *appconfig.Config) string {
	if cfg == nil {
		return ""
	}
	return strings.TrimSpace(cfg.AWSEndpointOverride)
}

// ConnectBackends opens Redis, Postgres, DynamoDB and SQS. In memory mode
// nothing is opened.
func ConnectBackends(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (bootstrap.Backends, func(), error) {
	var b bootstrap.Backends
	if cfg.UseMemoryStores {
		return b, func() {}, nil
	}

	redisClient, err := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if err != nil {
		return b, func() {}, fmt.Errorf("redis is required: %w", err)
	}
	b.Redis = redisClient
	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		_ = b.Redis.Close()
		return b, func() {}, err
	}
	b.Postgres = pool

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		_ = b.Redis.Close()
		if pool != nil {
			pool.Close()
		}
		return b, func() {}, fmt.Errorf("load AWS config: %w", err)
	}
	b.Dynamo = NewDynamoClient(awsCfg, cfg)
	if cfg.NotificationQueueURL != "" {
		b.SQS = NewSQSClient(awsCfg, cfg)
	}

	cleanup := func() {
		_ = b.Redis.Close()
		if b.Postgres != nil {
			b.Postgres.Close()
		}
	}
	return b, cleanup, nil
}
