package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/smithy-go"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/model"
)

// DefaultGroupLimit bounds DescribeLogGroups results when no limit is given.
const DefaultGroupLimit = 50

// LogsAPI is the subset of the CloudWatch Logs API we use.
type LogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// AuthOptions selects the region and credentials source.
type AuthOptions struct {
	Region  string
	Profile string
}

// BackendError is a failed CloudWatch Logs call.
type BackendError struct {
	Op   string
	Code string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendError(op string, err error) error {
	be := &BackendError{Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		be.Code = apiErr.ErrorCode()
	}
	return be
}

// CloudWatchClient wraps the CloudWatch Logs API.
type CloudWatchClient struct {
	client LogsAPI
	// MaxEvents stops pagination once this many events are collected
	// for a group. Zero means no limit.
	MaxEvents int
}

// New wraps an existing LogsAPI implementation.
func New(api LogsAPI) *CloudWatchClient {
	return &CloudWatchClient{client: api}
}

// NewCloudWatchOptions builds config load options from AuthOptions and the
// environment. The profile comes from the flag, then AWS_PROFILE. Without a
// profile the SDK default chain resolves credentials.
func NewCloudWatchOptions(o AuthOptions) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	profile := o.Profile
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	return opts
}

// NewCloudWatchClient loads AWS configuration and returns a client.
func NewCloudWatchClient(ctx context.Context, o AuthOptions) (*CloudWatchClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, NewCloudWatchOptions(o)...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return New(cloudwatchlogs.NewFromConfig(cfg)), nil
}

// DescribeLogGroups lists up to limit log groups whose name contains
// pattern (case-insensitive). An empty pattern lists all groups.
func (c *CloudWatchClient) DescribeLogGroups(ctx context.Context, pattern string, limit int32) ([]model.LogGroup, error) {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}
	in := &cloudwatchlogs.DescribeLogGroupsInput{Limit: aws.Int32(limit)}
	if pattern != "" {
		in.LogGroupNamePattern = aws.String(pattern)
	}
	out, err := c.client.DescribeLogGroups(ctx, in)
	if err != nil {
		return nil, backendError("describe log groups", err)
	}
	groups := make([]model.LogGroup, 0, len(out.LogGroups))
	for _, g := range out.LogGroups {
		groups = append(groups, model.LogGroup{
			Name:            aws.ToString(g.LogGroupName),
			StoredBytes:     aws.ToInt64(g.StoredBytes),
			CreationTime:    time.UnixMilli(aws.ToInt64(g.CreationTime)),
			RetentionInDays: aws.ToInt32(g.RetentionInDays),
		})
	}
	return groups, nil
}

// SearchGroup returns events in group matching filterPattern within
// [startMs, endMs], following continuation tokens.
func (c *CloudWatchClient) SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error) {
	var records []model.LogRecord
	var next *string
	for {
		in := &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(group),
			StartTime:    aws.Int64(startMs),
			EndTime:      aws.Int64(endMs),
			NextToken:    next,
		}
		if filterPattern != "" {
			in.FilterPattern = aws.String(filterPattern)
		}
		out, err := c.client.FilterLogEvents(ctx, in)
		if err != nil {
			return nil, backendError("filter log events in "+group, err)
		}
		for _, e := range out.Events {
			records = append(records, model.LogRecord{
				Timestamp: time.Unix(0, aws.ToInt64(e.Timestamp)*int64(time.Millisecond)),
				LogGroup:  group,
				LogStream: aws.ToString(e.LogStreamName),
				Message:   aws.ToString(e.Message),
			})
		}
		if c.MaxEvents > 0 && len(records) >= c.MaxEvents {
			return records[:c.MaxEvents], nil
		}
		if out.NextToken == nil || (next != nil && aws.ToString(out.NextToken) == aws.ToString(next)) {
			break
		}
		next = out.NextToken
	}
	return records, nil
}
