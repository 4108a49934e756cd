package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Options holds global CLI options after parsing flags and env defaults.
type Options struct {
	Region    string
	Profile   string
	StorePath string
	AWSBinary string
	LogLevel  string
	Verbose   bool
}

// DefaultOptions returns Options seeded from the environment.
func DefaultOptions() *Options {
	o := &Options{
		Region:    os.Getenv("AWS_REGION"),
		Profile:   os.Getenv("AWS_PROFILE"),
		StorePath: os.Getenv("CWTAIL_STORE"),
		AWSBinary: os.Getenv("CWTAIL_AWS_BIN"),
		LogLevel:  os.Getenv("CWTAIL_LOG_LEVEL"),
	}
	if o.AWSBinary == "" {
		o.AWSBinary = "aws"
	}
	return o
}

// AddFlags registers the global flags; current values become defaults.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Region, "region", o.Region, "AWS region (or set AWS_REGION; falls back to AWS defaults)")
	fs.StringVar(&o.Profile, "profile", o.Profile, "AWS shared config profile (or set AWS_PROFILE)")
	fs.StringVar(&o.StorePath, "store", o.StorePath, "path of the favorites/recent searches file (or set CWTAIL_STORE)")
	fs.StringVar(&o.AWSBinary, "aws-bin", o.AWSBinary, "AWS CLI executable used for tailing (or set CWTAIL_AWS_BIN)")
	fs.BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "enable debug logging")
}

// Level returns the effective log level.
func (o *Options) Level() string {
	if o.Verbose {
		return "debug"
	}
	if o.LogLevel != "" {
		return o.LogLevel
	}
	return "warn"
}

// ParseGroupsCSV turns a comma-separated groups string into slice, trimming empties.
func ParseGroupsCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(csv, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// DefaultWindow is the search window used when no start time is given.
const DefaultWindow = 24 * time.Hour

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseTimeValue resolves a --start-time/--end-time value. "Nm" means N
// minutes before now; anything else must be an absolute timestamp.
// Timestamps without a zone are read in now's location.
func ParseTimeValue(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, ok := strings.CutSuffix(s, "m"); ok {
		minutes, err := strconv.Atoi(n)
		if err != nil || minutes < 0 {
			return time.Time{}, fmt.Errorf("invalid relative time %q; expected e.g. 30m", s)
		}
		return now.Add(-time.Duration(minutes) * time.Minute), nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q; expected Nm or a timestamp like 2025-08-30T15:04:05Z", s)
}

// ResolveTimeRange computes [start,end] for a filter query.
// Rules:
// - end empty: now
// - start empty: end - DefaultWindow
// - start after end: ErrStartAfterEnd
func ResolveTimeRange(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	end := now
	if endStr != "" {
		t, err := ParseTimeValue(endStr, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.Add(-DefaultWindow)
	if startStr != "" {
		t, err := ParseTimeValue(startStr, now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrStartAfterEnd
	}
	return start, end, nil
}

// ErrStartAfterEnd represents an invalid time window where start > end.
var ErrStartAfterEnd = &timeRangeError{"start is after end"}

type timeRangeError struct{ s string }

func (e *timeRangeError) Error() string { return e.s }
