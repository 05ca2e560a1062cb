package main

import (
	"context"
	"fmt"
)

// loopbackLLMClient is a dependency-free stand-in for a local inference
// backend, used when no real endpoint is configured for this demo
// entrypoint.
type loopbackLLMClient struct{}

func (c *loopbackLLMClient) Ping(ctx context.Context) error { return nil }

func (c *loopbackLLMClient) Complete(ctx context.Context, prompt string, params map[string]interface{}) (string, int, error) {
	return fmt.Sprintf("echo: %s", prompt), len(prompt) / 4, nil
}

// loopbackCloudLLMClient is a dependency-free stand-in for a cloud LLM
// provider.
type loopbackCloudLLMClient struct{}

func (c *loopbackCloudLLMClient) Complete(ctx context.Context, prompt string, params map[string]interface{}) (string, int, error) {
	return fmt.Sprintf("echo: %s", prompt), len(prompt) / 4, nil
}

// loopbackContainerRunner is a dependency-free stand-in for a container
// daemon.
type loopbackContainerRunner struct{}

func (r *loopbackContainerRunner) Ping(ctx context.Context) error { return nil }

func (r *loopbackContainerRunner) Run(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	return payload, nil
}

// loopbackRemoteClient is a dependency-free stand-in for an out-of-process
// worker endpoint.
type loopbackRemoteClient struct{}

func (c *loopbackRemoteClient) Ping(ctx context.Context, url, authToken string) error { return nil }

func (c *loopbackRemoteClient) Invoke(ctx context.Context, url, authToken string, payload map[string]interface{}) (map[string]interface{}, error) {
	return payload, nil
}
