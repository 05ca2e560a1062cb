package worker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/synapseflow/compute-orchestrator/internal/platform/logger"
	"github.com/synapseflow/compute-orchestrator/internal/resource"
)

// BedrockCredentials configures how the bedrock cloud-LLM variant resolves
// AWS credentials: explicit static keys when provided, otherwise the
// default AWS credential chain (environment, shared config, IMDS).
type BedrockCredentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// ResolveAWSConfig builds an aws.Config for the bedrock client, preferring
// static credentials when both key fields are set.
func ResolveAWSConfig(ctx context.Context, creds BedrockCredentials) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(creds.Region),
	}
	if creds.AccessKeyID != "" && creds.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to resolve aws credentials: %w", err)
	}
	return cfg, nil
}

// NewBedrockCloudLLMWorker builds a CloudLLMWorker whose api_type is
// "bedrock", using client as the minimum invocation contract (the Bedrock
// runtime wire protocol itself is out of scope here). Callers construct
// client using the aws.Config returned by ResolveAWSConfig.
func NewBedrockCloudLLMWorker(id string, costPer1kTokens float64, concurrencyCap int, client CloudLLMClient, pool *resource.LLMAPIPool, log logger.Logger) *CloudLLMWorker {
	return NewCloudLLMWorker(id, "bedrock", costPer1kTokens, concurrencyCap, client, pool, log)
}
