package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/silinternational/colly"
)

// RelayEvent names a colly lambda and environment to invoke with the given payload.
type RelayEvent struct {
	Name    string          `json:"name"`
	Env     string          `json:"env"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	lambda.Start(handler)
}

func handler(ctx context.Context, event RelayEvent) (json.RawMessage, error) {
	if event.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	runner := colly.NewRunner(&colly.Config{Options: colly.Options{Env: event.Env, Name: event.Name}})
	result, err := runner.InvokeDeployed(ctx, awsCfg, payload)
	if err != nil {
		return nil, err
	}
	if result.FunctionError != "" {
		return nil, fmt.Errorf("%s invocation failed: %s", event.Name, result.Payload)
	}
	return result.Payload, nil
}
