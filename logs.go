package colly

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

type LogsAPI interface {
	cloudwatchlogs.FilterLogEventsAPIClient
}

// LogTailer prints recent CloudWatch log events of a deployed lambda.
type LogTailer struct {
	resolver *Resolver
	client   LogsAPI
	out      io.Writer
}

func NewLogTailer(awsCfg aws.Config, config *Config) (*LogTailer, error) {
	config = withDefaults(config)
	resolver := NewResolver(config.Options, config.HandlerExt)

	if config.Options.Region != "" {
		awsCfg.Region = config.Options.Region
	} else {
		lc, err := resolver.LambdaConfigFile()
		if ignoreMissing(err) != nil {
			return nil, err
		}
		pc, err := resolver.ProjectConfig()
		if ignoreMissing(err) != nil {
			return nil, err
		}
		SetAwsRegion(&awsCfg, lc, pc)
	}

	return &LogTailer{
		resolver: resolver,
		client:   cloudwatchlogs.NewFromConfig(awsCfg),
		out:      config.Out,
	}, nil
}

// LogGroupName is the log group Lambda writes to for the remote function.
func (t *LogTailer) LogGroupName() string {
	return "/aws/lambda/" + t.resolver.FunctionName()
}

// Tail prints the log events written since the given duration ago and returns how many were printed.
func (t *LogTailer) Tail(ctx context.Context, since time.Duration) (int, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(t.LogGroupName()),
		StartTime:    aws.Int64(time.Now().Add(-since).UnixMilli()),
	}

	count := 0
	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(t.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isAPIErrorCode(err, errCodeResourceNotFound) {
				return 0, &ConfigMissingError{Key: t.LogGroupName(), Source: "cloudwatch logs"}
			}
			return count, &ApiError{Op: "FilterLogEvents", Err: err}
		}

		for _, e := range page.Events {
			ts := time.UnixMilli(aws.ToInt64(e.Timestamp)).UTC().Format(time.RFC3339)
			_, _ = fmt.Fprintf(t.out, "%s %s\n", ts, strings.TrimRight(aws.ToString(e.Message), "\n"))
			count++
		}
	}

	return count, nil
}
