package model

import "time"

// LogRecord represents a single log entry matched across groups.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	LogGroup  string    `json:"logGroup" yaml:"logGroup"`
	LogStream string    `json:"logStream" yaml:"logStream"`
	Message   string    `json:"message" yaml:"message"`
}

// LogGroup describes a CloudWatch log group returned by a name search.
type LogGroup struct {
	Name            string
	StoredBytes     int64
	CreationTime    time.Time
	RetentionInDays int32
}
