package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	dbconfig "chatmatch/pkg/database"
	"chatmatch/pkg/types"
)

const (
	defaultQueueSize  = 256
	defaultRetryDelay = time.Second
	timeLayout        = "2006-01-02 15:04:05.000"
)

// Store implements interfaces.StatsStore on sqlite. Writes are funnelled
// through a single writer goroutine; Record* calls only enqueue and never
// wait, so the hub is never held up by disk I/O.
type Store struct {
	db           *sql.DB
	timeout      time.Duration
	retryDelay   time.Duration
	logger       *zap.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
	dropped      atomic.Uint64
}

type writeOperation struct {
	name      string
	operation func(ctx context.Context, db *sql.DB) error
	done      chan error
}

// NewStore opens the database, applies migrations, validates the schema and
// starts the writer. timeout bounds every individual statement.
func NewStore(config *dbconfig.Config, timeout time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	db, err := dbconfig.Open(config)
	if err != nil {
		return nil, err
	}
	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate statistics database: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(db).Validate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statistics schema invalid: %w", err)
	}

	s := &Store{
		db:           db,
		timeout:      timeout,
		retryDelay:   defaultRetryDelay,
		logger:       logger,
		writeChannel: make(chan writeOperation, defaultQueueSize),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	logger.Info("statistics store opened", zap.String("path", config.DatabasePath))
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			s.execute(op)

		case <-s.shutdown:
			// Drain what was queued before Close so session ends are kept
			for {
				select {
				case op := <-s.writeChannel:
					s.execute(op)
				default:
					return
				}
			}
		}
	}
}

// execute runs one write, retrying once after retryDelay
func (s *Store) execute(op writeOperation) {
	if op.operation == nil {
		op.done <- nil
		return
	}

	err := s.run(op)
	if err != nil {
		s.logger.Warn("statistics write failed, retrying",
			zap.String("operation", op.name), zap.Error(err))
		time.Sleep(s.retryDelay)
		err = s.run(op)
		if err != nil {
			s.logger.Error("statistics write failed after retry",
				zap.String("operation", op.name), zap.Error(err))
		}
	}
	if op.done != nil {
		op.done <- err
	}
}

func (s *Store) run(op writeOperation) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return op.operation(ctx, s.db)
}

// enqueue queues a write without blocking. Writes that do not fit are
// dropped and counted.
func (s *Store) enqueue(op writeOperation) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	select {
	case s.writeChannel <- op:
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

// RecordSessionStart stores a new pair session and its shared interests
func (s *Store) RecordSessionStart(record types.SessionRecord) {
	err := s.enqueue(writeOperation{
		name: "session_start",
		operation: func(ctx context.Context, db *sql.DB) error {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("failed to begin transaction: %w", err)
			}
			defer func() { _ = tx.Rollback() }()

			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO pair_sessions (id, started_at) VALUES (?, ?)`,
				record.ID, record.StartedAt.UTC().Format(timeLayout))
			if err != nil {
				return fmt.Errorf("failed to insert session: %w", err)
			}
			for _, interest := range record.SharedInterests {
				_, err = tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO session_interests (session_id, interest) VALUES (?, ?)`,
					record.ID, interest)
				if err != nil {
					return fmt.Errorf("failed to insert session interest: %w", err)
				}
			}
			return tx.Commit()
		},
	})
	if err != nil {
		s.logger.Warn("session start not recorded", zap.String("session_id", record.ID), zap.Error(err))
	}
}

// RecordSessionEnd marks a pair session as ended. Already-ended sessions
// keep their first end time.
func (s *Store) RecordSessionEnd(sessionID string, endedAt time.Time, reason string) {
	err := s.enqueue(writeOperation{
		name: "session_end",
		operation: func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx,
				`UPDATE pair_sessions SET ended_at = ?, end_reason = ? WHERE id = ? AND ended_at IS NULL`,
				endedAt.UTC().Format(timeLayout), reason, sessionID)
			return err
		},
	})
	if err != nil {
		s.logger.Warn("session end not recorded", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Flush waits until every write queued before it has been executed
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	done := make(chan error, 1)
	select {
	case s.writeChannel <- writeOperation{name: "flush", done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many writes were discarded because the queue was full
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// SessionSummary aggregates all recorded sessions
func (s *Store) SessionSummary(ctx context.Context) (*types.SessionSummary, error) {
	var (
		summary types.SessionSummary
		average sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(ended_at),
			AVG(CASE WHEN ended_at IS NOT NULL
				THEN (julianday(ended_at) - julianday(started_at)) * 86400.0 END)
		FROM pair_sessions
	`).Scan(&summary.TotalSessions, &summary.EndedSessions, &average)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise sessions: %w", err)
	}
	if average.Valid {
		summary.AverageDurationSeconds = average.Float64
	}
	return &summary, nil
}

// TopInterests returns the interests most often shared by paired users,
// most frequent first and alphabetical among ties
func (s *Store) TopInterests(ctx context.Context, limit int) ([]types.InterestCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT interest, COUNT(*) AS sessions
		FROM session_interests
		GROUP BY interest
		ORDER BY sessions DESC, interest ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := []types.InterestCount{}
	for rows.Next() {
		var count types.InterestCount
		if err := rows.Scan(&count.Interest, &count.Sessions); err != nil {
			return nil, fmt.Errorf("failed to scan interest: %w", err)
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

// HealthCheck validates database connectivity
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pair_sessions").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close flushes queued writes, stops the writer and closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info("statistics store closed")
	return nil
}
