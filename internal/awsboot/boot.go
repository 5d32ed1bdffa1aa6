// Package awsboot provides the shared Lambda cold-start bootstrap.
//
// Both Lambdas need some subset of: AWS config, S3, DynamoDB, EventBridge,
// the Lambda client, and the Gemini key from SSM. Each resource is optional
// and enabled by a non-empty name in config.AWS.
package awsboot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/ai-video-generator/internal/config"
	"github.com/fpang/ai-video-generator/internal/events"
	"github.com/fpang/ai-video-generator/internal/logging"
	"github.com/fpang/ai-video-generator/internal/s3util"
	"github.com/fpang/ai-video-generator/internal/store"
)

// APIKeyEnv is the environment variable holding the Gemini API key.
const APIKeyEnv = "GEMINI_API_KEY"

// Clients holds every AWS-backed dependency of a run. Nil fields are disabled.
type Clients struct {
	Config    aws.Config
	SSM       *ssm.Client
	Publisher *s3util.Publisher
	Store     *store.DynamoStore
	Events    *events.Emitter
	Lambda    *lambdasvc.Client
}

// InitAWS loads the default AWS config.
func InitAWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// Init creates the clients for every resource named in settings.
func Init(ctx context.Context, settings config.AWS) (*Clients, error) {
	cfg, err := InitAWS(ctx)
	if err != nil {
		return nil, err
	}
	c := &Clients{Config: cfg, SSM: ssm.NewFromConfig(cfg)}
	c.Publisher = InitS3(cfg, settings.BucketName, settings.URLExpiry)
	c.Store = InitDynamo(cfg, settings.TableName)
	c.Events = InitEvents(cfg, settings.EventBus)
	if settings.WorkerFunction != "" {
		c.Lambda = lambdasvc.NewFromConfig(cfg)
	}
	return c, nil
}

// InitS3 returns a Publisher for bucket, or nil when bucket is empty.
func InitS3(cfg aws.Config, bucket string, expiry time.Duration) *s3util.Publisher {
	if bucket == "" {
		log.Warn().Msg("Artifact bucket not set, S3 publishing disabled")
		return nil
	}
	return s3util.NewPublisher(s3.NewFromConfig(cfg), bucket, expiry)
}

// InitDynamo returns a run store for table, or nil when table is empty.
func InitDynamo(cfg aws.Config, table string) *store.DynamoStore {
	if table == "" {
		log.Warn().Msg("DynamoDB table not set, run records disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// InitEvents returns an Emitter for bus, or nil when bus is empty.
func InitEvents(cfg aws.Config, bus string) *events.Emitter {
	if bus == "" {
		log.Debug().Msg("Event bus not set, completion events disabled")
		return nil
	}
	return events.NewEmitter(eventbridge.NewFromConfig(cfg), bus)
}

// RunStore returns the DynamoDB store as a store.RunStore, or nil.
func (c *Clients) RunStore() store.RunStore {
	if c.Store == nil {
		return nil
	}
	return c.Store
}

type parameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store into
// GEMINI_API_KEY unless it is already set.
func LoadGeminiKey(ctx context.Context, client parameterAPI, paramName string) error {
	if os.Getenv(APIKeyEnv) != "" {
		return nil
	}
	if paramName == "" {
		return fmt.Errorf("%s is not set and no SSM parameter is configured", APIKeyEnv)
	}
	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to read API key from SSM %s: %w", paramName, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	os.Setenv(APIKeyEnv, aws.ToString(result.Parameter.Value))
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return nil
}

// StartupLog returns a startup logger describing the configured resources.
func StartupLog(name string, initStart time.Time, settings config.AWS) *logging.StartupLogger {
	return logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		Resources(ResourceSummary(settings))
}

// ResourceSummary maps the AWS settings onto the startup summary.
func ResourceSummary(settings config.AWS) logging.Resources {
	return logging.Resources{
		Bucket:         settings.BucketName,
		Table:          settings.TableName,
		EventBus:       settings.EventBus,
		WorkerFunction: settings.WorkerFunction,
		KeyParam:       settings.APIKeyParam,
	}
}
