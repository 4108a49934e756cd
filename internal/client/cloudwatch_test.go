package client_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/client"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
)

// mockLogsAPI implements client.LogsAPI for testing.
type mockLogsAPI struct {
	responses []*cloudwatchlogs.FilterLogEventsOutput
	inputs    []*cloudwatchlogs.FilterLogEventsInput
	err       error
	call      int

	groups      []types.LogGroup
	groupInputs []*cloudwatchlogs.DescribeLogGroupsInput
}

func (m *mockLogsAPI) DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	m.groupInputs = append(m.groupInputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatchlogs.DescribeLogGroupsOutput{LogGroups: m.groups}, nil
}

func (m *mockLogsAPI) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	if m.call < len(m.responses) {
		r := m.responses[m.call]
		m.call++
		return r, nil
	}
	// Default empty page if not enough responses provided
	m.call++
	return &cloudwatchlogs.FilterLogEventsOutput{}, nil
}

func TestSearchGroup(t *testing.T) {
	ts1 := int64(1700000000123) // milliseconds
	ts2 := int64(1700000000456)

	tests := []struct {
		name           string
		group          string
		filter         string
		startMs        int64
		endMs          int64
		mock           *mockLogsAPI
		wantRecords    []model.LogRecord
		wantCalls      int
		wantErr        bool
		assertInputIdx []int // which recorded inputs to assert basic params on
	}{
		{
			name:    "single page returns records",
			group:   "/aws/lambda/foo",
			filter:  "ERROR",
			startMs: 0,
			endMs:   2000000000000,
			mock: &mockLogsAPI{responses: []*cloudwatchlogs.FilterLogEventsOutput{
				{
					Events: []types.FilteredLogEvent{
						{Timestamp: aws.Int64(ts1), LogStreamName: aws.String("s1"), Message: aws.String("hello")},
						{Timestamp: aws.Int64(ts2), LogStreamName: aws.String("s2"), Message: aws.String("world")},
					},
					NextToken: nil,
				},
			}},
			wantRecords: []model.LogRecord{
				{Timestamp: time.Unix(0, ts1*int64(time.Millisecond)), LogGroup: "/aws/lambda/foo", LogStream: "s1", Message: "hello"},
				{Timestamp: time.Unix(0, ts2*int64(time.Millisecond)), LogGroup: "/aws/lambda/foo", LogStream: "s2", Message: "world"},
			},
			wantCalls:      1,
			wantErr:        false,
			assertInputIdx: []int{0},
		},
		{
			name:    "paginates until token repeats",
			group:   "/aws/ecs/bar",
			filter:  "WARN",
			startMs: 1000,
			endMs:   9999,
			mock: &mockLogsAPI{responses: []*cloudwatchlogs.FilterLogEventsOutput{
				{
					Events: []types.FilteredLogEvent{
						{Timestamp: aws.Int64(ts1), LogStreamName: aws.String("a"), Message: aws.String("m1")},
					},
					NextToken: aws.String("A"),
				},
				{
					Events: []types.FilteredLogEvent{
						{Timestamp: aws.Int64(ts2), LogStreamName: aws.String("b"), Message: aws.String("m2")},
					},
					// Same token as previous -> stop
					NextToken: aws.String("A"),
				},
			}},
			wantRecords: []model.LogRecord{
				{Timestamp: time.Unix(0, ts1*int64(time.Millisecond)), LogGroup: "/aws/ecs/bar", LogStream: "a", Message: "m1"},
				{Timestamp: time.Unix(0, ts2*int64(time.Millisecond)), LogGroup: "/aws/ecs/bar", LogStream: "b", Message: "m2"},
			},
			wantCalls:      2,
			wantErr:        false,
			assertInputIdx: []int{0, 1},
		},
		{
			name:    "propagates api error",
			group:   "group-x",
			filter:  "INFO",
			startMs: 1,
			endMs:   2,
			mock:    &mockLogsAPI{err: errors.New("boom")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cwc := client.New(tt.mock)

			got, err := cwc.SearchGroup(context.Background(), tt.group, tt.filter, tt.startMs, tt.endMs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if tt.wantCalls != 0 && tt.mock.call != tt.wantCalls {
				t.Fatalf("FilterLogEvents calls = %d, want %d", tt.mock.call, tt.wantCalls)
			}

			if len(got) != len(tt.wantRecords) {
				t.Fatalf("records len = %d, want %d", len(got), len(tt.wantRecords))
			}
			for i := range tt.wantRecords {
				if !got[i].Timestamp.Equal(tt.wantRecords[i].Timestamp) ||
					got[i].LogGroup != tt.wantRecords[i].LogGroup ||
					got[i].LogStream != tt.wantRecords[i].LogStream ||
					got[i].Message != tt.wantRecords[i].Message {
					t.Fatalf("record[%d] = %+v, want %+v", i, got[i], tt.wantRecords[i])
				}
			}

			for _, idx := range tt.assertInputIdx {
				if idx >= len(tt.mock.inputs) {
					t.Fatalf("missing recorded input at idx %d", idx)
				}
				in := tt.mock.inputs[idx]
				if aws.ToString(in.LogGroupName) != tt.group {
					t.Fatalf("LogGroupName = %q, want %q", aws.ToString(in.LogGroupName), tt.group)
				}
				if aws.ToString(in.FilterPattern) != tt.filter {
					t.Fatalf("FilterPattern = %q, want %q", aws.ToString(in.FilterPattern), tt.filter)
				}
				if aws.ToInt64(in.StartTime) != tt.startMs || aws.ToInt64(in.EndTime) != tt.endMs {
					t.Fatalf("Start/End = (%d,%d), want (%d,%d)", aws.ToInt64(in.StartTime), aws.ToInt64(in.EndTime), tt.startMs, tt.endMs)
				}
			}
		})
	}
}

func TestNewCloudWatchOptions(t *testing.T) {
	tests := []struct {
		name    string
		options client.AuthOptions
		env     map[string]string // key -> value, value="" means unset
		wantLen int
	}{
		{
			name:    "no region or profile, no env",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 0,
		},
		{
			name:    "with region",
			options: client.AuthOptions{Region: "us-east-1"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 1,
		},
		{
			name:    "with profile flag",
			options: client.AuthOptions{Profile: "my-profile"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 1,
		},
		{
			name:    "with AWS_PROFILE env",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "env-profile", "AWS_ACCESS_KEY_ID": "", "AWS_SECRET_ACCESS_KEY": ""},
			wantLen: 1,
		},
		{
			name:    "profile flag overrides AWS_PROFILE",
			options: client.AuthOptions{Profile: "flag-profile"},
			env:     map[string]string{"AWS_PROFILE": "env-profile"},
			wantLen: 1,
		},
		{
			name:    "static creds left to the default chain",
			options: client.AuthOptions{},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": "secret"},
			wantLen: 0,
		},
		{
			name:    "profile overrides static creds",
			options: client.AuthOptions{Profile: "my-profile"},
			env:     map[string]string{"AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": "secret"},
			wantLen: 1,
		},
		{
			name:    "with region and profile",
			options: client.AuthOptions{Region: "us-west-2", Profile: "another-profile"},
			env:     map[string]string{},
			wantLen: 2,
		},
		{
			name:    "region with static creds",
			options: client.AuthOptions{Region: "us-west-2"},
			env:     map[string]string{"AWS_PROFILE": "", "AWS_ACCESS_KEY_ID": "key", "AWS_SECRET_ACCESS_KEY": "secret"},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
				if v == "" {
					os.Unsetenv(k)
				}
			}

			opts := client.NewCloudWatchOptions(tt.options)
			if len(opts) != tt.wantLen {
				t.Errorf("NewCloudWatchOptions() returned %d options, want %d", len(opts), tt.wantLen)
			}
		})
	}
}

func TestSearchGroupStopsAtMaxEvents(t *testing.T) {
	mock := &mockLogsAPI{responses: []*cloudwatchlogs.FilterLogEventsOutput{
		{
			Events: []types.FilteredLogEvent{
				{Timestamp: aws.Int64(1), Message: aws.String("a")},
				{Timestamp: aws.Int64(2), Message: aws.String("b")},
			},
			NextToken: aws.String("T1"),
		},
		{
			Events: []types.FilteredLogEvent{
				{Timestamp: aws.Int64(3), Message: aws.String("c")},
			},
			NextToken: aws.String("T2"),
		},
	}}
	cwc := client.New(mock)
	cwc.MaxEvents = 2
	got, err := cwc.SearchGroup(context.Background(), "g", "", 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || mock.call != 1 {
		t.Fatalf("records=%d calls=%d, want 2 records after 1 call", len(got), mock.call)
	}
	if mock.inputs[0].FilterPattern != nil {
		t.Fatalf("empty pattern should not be sent, got %q", aws.ToString(mock.inputs[0].FilterPattern))
	}
}

func TestDescribeLogGroups(t *testing.T) {
	created := int64(1700000000000)
	mock := &mockLogsAPI{groups: []types.LogGroup{
		{LogGroupName: aws.String("/aws/lambda/production-api-service"), StoredBytes: aws.Int64(2048), CreationTime: aws.Int64(created), RetentionInDays: aws.Int32(14)},
		{LogGroupName: aws.String("/aws/lambda/staging-api-service")},
	}}
	cwc := client.New(mock)

	groups, err := cwc.DescribeLogGroups(context.Background(), "api", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups len = %d, want 2", len(groups))
	}
	want := model.LogGroup{Name: "/aws/lambda/production-api-service", StoredBytes: 2048, CreationTime: time.UnixMilli(created), RetentionInDays: 14}
	if groups[0].Name != want.Name || groups[0].StoredBytes != want.StoredBytes || !groups[0].CreationTime.Equal(want.CreationTime) || groups[0].RetentionInDays != want.RetentionInDays {
		t.Fatalf("groups[0] = %+v, want %+v", groups[0], want)
	}
	in := mock.groupInputs[0]
	if aws.ToString(in.LogGroupNamePattern) != "api" {
		t.Fatalf("LogGroupNamePattern = %q, want api", aws.ToString(in.LogGroupNamePattern))
	}
	if aws.ToInt32(in.Limit) != client.DefaultGroupLimit {
		t.Fatalf("Limit = %d, want %d", aws.ToInt32(in.Limit), client.DefaultGroupLimit)
	}

	if _, err := cwc.DescribeLogGroups(context.Background(), "", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.groupInputs[1].LogGroupNamePattern != nil {
		t.Fatalf("empty pattern should list all groups")
	}
}

func TestBackendErrorCarriesAPICode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
	cwc := client.New(&mockLogsAPI{err: apiErr})

	_, err := cwc.DescribeLogGroups(context.Background(), "x", 10)
	var be *client.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %v", err)
	}
	if be.Code != "ThrottlingException" {
		t.Fatalf("Code = %q, want ThrottlingException", be.Code)
	}
	if !errors.Is(err, apiErr) {
		t.Fatalf("BackendError should unwrap to the API error")
	}

	_, err = cwc.SearchGroup(context.Background(), "g", "ERROR", 0, 1)
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError from SearchGroup, got %v", err)
	}
}
