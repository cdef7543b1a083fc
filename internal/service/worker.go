package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// TaskError accumulates multiple errors produced during bulk ingestion.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d errors:", len(e.Errors))
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// IngestReport counts what a dataset ingestion wrote. Skipped entries were
// already stored.
type IngestReport struct {
	Users       int64
	Cinemas     int64
	Friendships int64
	Visits      int64
	Skipped     int64
}

// BulkIngestor loads datasets through the services using worker pools.
type BulkIngestor struct {
	users   *UserService
	cinemas *CinemaService
	workers int
	logger  *slog.Logger
}

// NewBulkIngestor creates a new BulkIngestor instance with the provided concurrency.
func NewBulkIngestor(users *UserService, cinemas *CinemaService, workers int, logger *slog.Logger) *BulkIngestor {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BulkIngestor{
		users:   users,
		cinemas: cinemas,
		workers: workers,
		logger:  logger.With("component", "ingestor"),
	}
}

// IngestDataset stores users and cinemas first, then the relationships
// between them. It stops before the relationships when a node fails.
func (bi *BulkIngestor) IngestDataset(ctx context.Context, ds Dataset) (IngestReport, error) {
	var report IngestReport
	if err := bi.IngestUsers(ctx, ds.Users, &report); err != nil {
		return report, fmt.Errorf("ingest users: %w", err)
	}
	if err := bi.IngestCinemas(ctx, ds.Cinemas, &report); err != nil {
		return report, fmt.Errorf("ingest cinemas: %w", err)
	}
	if err := bi.IngestFriendships(ctx, ds.Friendships, &report); err != nil {
		return report, fmt.Errorf("ingest friendships: %w", err)
	}
	if err := bi.IngestVisits(ctx, ds.Visits, &report); err != nil {
		return report, fmt.Errorf("ingest visits: %w", err)
	}
	bi.logger.Info("dataset ingested",
		"users", report.Users,
		"cinemas", report.Cinemas,
		"friendships", report.Friendships,
		"visits", report.Visits,
		"skipped", report.Skipped,
	)
	return report, nil
}

// IngestUsers registers the provided users concurrently. Users whose email is
// already registered are skipped.
func (bi *BulkIngestor) IngestUsers(ctx context.Context, users []UserInput, report *IngestReport) error {
	return bi.run(ctx, len(users), bi.workers, func(idx int) error {
		_, err := bi.users.Register(ctx, users[idx])
		switch {
		case errors.Is(err, ErrConflict):
			atomic.AddInt64(&report.Skipped, 1)
			return nil
		case err != nil:
			return fmt.Errorf("user #%d: %w", idx, err)
		}
		atomic.AddInt64(&report.Users, 1)
		return nil
	})
}

// IngestCinemas creates the provided cinemas concurrently, skipping names
// already taken.
func (bi *BulkIngestor) IngestCinemas(ctx context.Context, cinemas []CinemaInput, report *IngestReport) error {
	return bi.run(ctx, len(cinemas), bi.workers, func(idx int) error {
		_, err := bi.cinemas.Create(ctx, cinemas[idx])
		switch {
		case errors.Is(err, ErrConflict):
			atomic.AddInt64(&report.Skipped, 1)
			return nil
		case err != nil:
			return fmt.Errorf("cinema #%d: %w", idx, err)
		}
		atomic.AddInt64(&report.Cinemas, 1)
		return nil
	})
}

// IngestFriendships links the provided users one pair at a time. Saving a user
// rewrites all of its FRIEND_OF relationships, so two pairs sharing a user
// must not be saved concurrently.
func (bi *BulkIngestor) IngestFriendships(ctx context.Context, friendships []FriendshipInput, report *IngestReport) error {
	return bi.run(ctx, len(friendships), 1, func(idx int) error {
		if _, err := bi.users.BefriendByEmail(ctx, friendships[idx]); err != nil {
			return fmt.Errorf("friendship #%d: %w", idx, err)
		}
		atomic.AddInt64(&report.Friendships, 1)
		return nil
	})
}

// IngestVisits records visits concurrently across cinemas and sequentially
// within one cinema.
func (bi *BulkIngestor) IngestVisits(ctx context.Context, visits []VisitInput, report *IngestReport) error {
	var keys []string
	groups := make(map[string][]int)
	for i, v := range visits {
		key := strings.ToLower(sanitizeString(v.Cinema))
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}
	return bi.run(ctx, len(keys), bi.workers, func(idx int) error {
		var taskErr TaskError
		for _, i := range groups[keys[idx]] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := bi.cinemas.Visit(ctx, visits[i]); err != nil {
				taskErr.append(fmt.Errorf("visit #%d: %w", i, err))
				continue
			}
			atomic.AddInt64(&report.Visits, 1)
		}
		return taskErr.asError()
	})
}

func (bi *BulkIngestor) run(ctx context.Context, total, workers int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	if err := ctx.Err(); err != nil {
		return err
	}
	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var nested *TaskError
		if errors.As(err, &nested) {
			taskErr.Errors = append(taskErr.Errors, nested.Errors...)
			continue
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
