package inspector

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/model"
)

// DefaultWorkers is the number of groups searched concurrently.
const DefaultWorkers = 4

// GroupSearcher filters the events of a single log group.
type GroupSearcher interface {
	SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error)
}

// Inspector searches CloudWatch Logs across multiple groups.
type Inspector struct {
	client    GroupSearcher
	groups    []string
	startTime time.Time
	endTime   time.Time
	workers   int
}

// New creates an Inspector.
func New(client GroupSearcher, groups []string, startTime, endTime time.Time) *Inspector {
	return &Inspector{client: client, groups: groups, startTime: startTime, endTime: endTime, workers: DefaultWorkers}
}

// SetWorkers bounds the number of concurrent group searches (minimum 1).
func (in *Inspector) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	in.workers = n
}

// Search finds logs matching the given filter pattern across configured
// groups. The pattern is sent as given; an empty pattern matches everything.
// Results are sorted by timestamp, then group, stream and message.
func (in *Inspector) Search(ctx context.Context, filterPattern string) ([]model.LogRecord, error) {
	if len(in.groups) == 0 {
		return nil, errors.New("no log groups configured")
	}
	if in.startTime.After(in.endTime) {
		return nil, errors.New("start time is after end time")
	}
	startMs := in.startTime.UnixMilli()
	endMs := in.endTime.UnixMilli()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	groups := make(chan string, len(in.groups))
	for _, g := range in.groups {
		groups <- g
	}
	close(groups)

	results := make(chan []model.LogRecord, len(in.groups))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for range min(in.workers, len(in.groups)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groups {
				records, err := in.client.SearchGroup(ctx, group, filterPattern, startMs, endMs)
				if err != nil {
					// The first failure cancels the remaining searches.
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				results <- records
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var all []model.LogRecord
	for records := range results {
		all = append(all, records...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	slices.SortFunc(all, compareRecords)
	return all, nil
}

// compareRecords orders by timestamp, then group, stream and message.
func compareRecords(a, b model.LogRecord) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return cmp.Or(
		cmp.Compare(a.LogGroup, b.LogGroup),
		cmp.Compare(a.LogStream, b.LogStream),
		cmp.Compare(a.Message, b.Message),
	)
}
