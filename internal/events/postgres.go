package events

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/txscan-engine/internal/model"
)

// queueCapacity bounds the in-process buffer between Emit and the
// writer goroutine; a burst beyond this is dropped and logged rather
// than blocking the scan pipeline.
const queueCapacity = 1024

// insertTimeout bounds each batched write so a slow database never
// accumulates an unbounded backlog.
const insertTimeout = 2 * time.Second

// txExecutor is the narrow slice of pgx.Tx that writeBatch needs,
// declared locally so tests can supply a fake transaction without a
// live Postgres connection.
type txExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// beginner is the one pool method PostgresSink needs.
type beginner interface {
	Begin(ctx context.Context) (txExecutor, error)
}

// poolBeginner adapts *pgxpool.Pool to beginner; pgx.Tx structurally
// satisfies txExecutor so the returned transaction converts for free.
type poolBeginner struct {
	pool *pgxpool.Pool
}

func (p poolBeginner) Begin(ctx context.Context) (txExecutor, error) {
	return p.pool.Begin(ctx)
}

// PostgresSink persists scan events for offline analytics. Writes are
// batched off a buffered channel and wrapped in a transaction, mirroring
// the teacher's SaveAnalysisResult shape.
type PostgresSink struct {
	pool       beginner
	events     chan model.ScanEvent
	done       chan struct{}
	batch      int
	flushEvery time.Duration
}

// NewPostgresSink builds a PostgresSink and starts its background
// batching writer. batchSize and flushEvery bound how long an event can
// sit unflushed.
func NewPostgresSink(pool *pgxpool.Pool, batchSize int, flushEvery time.Duration) *PostgresSink {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	s := &PostgresSink{
		pool:       poolBeginner{pool: pool},
		events:     make(chan model.ScanEvent, queueCapacity),
		done:       make(chan struct{}),
		batch:      batchSize,
		flushEvery: flushEvery,
	}
	go s.run()
	return s
}

// newPostgresSinkWithBeginner builds a PostgresSink against any
// beginner, letting tests supply a fake pool without a live database.
func newPostgresSinkWithBeginner(pool beginner, batchSize int, flushEvery time.Duration) *PostgresSink {
	s := &PostgresSink{
		pool:       pool,
		events:     make(chan model.ScanEvent, queueCapacity),
		done:       make(chan struct{}),
		batch:      batchSize,
		flushEvery: flushEvery,
	}
	go s.run()
	return s
}

// Emit enqueues event for the background writer. Never blocks: a full
// queue drops the event and logs, the same degrade-rather-than-stall
// policy used by the pattern catalogue's counter table.
func (s *PostgresSink) Emit(event model.ScanEvent) {
	select {
	case s.events <- event:
	default:
		log.Printf("events: postgres sink queue full, dropping scan %s", event.ScanID)
	}
}

// Close stops the background writer after flushing whatever is queued.
func (s *PostgresSink) Close() {
	close(s.done)
}

func (s *PostgresSink) run() {
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	pending := make([]model.ScanEvent, 0, s.batch)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		s.writeBatch(pending)
		pending = pending[:0]
	}

	for {
		select {
		case <-s.done:
			for drained := false; !drained; {
				select {
				case ev := <-s.events:
					pending = append(pending, ev)
				default:
					drained = true
				}
			}
			flush()
			return
		case ev := <-s.events:
			pending = append(pending, ev)
			if len(pending) >= s.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *PostgresSink) writeBatch(events []model.ScanEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		log.Printf("events: postgres sink begin failed: %v", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertSQL = `
		INSERT INTO scan_events
			(scan_id, user_wallet, risk_level, risk_score, confidence, scan_time_ms,
			 program_count, instruction_count, pattern_matches_count, scan_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (scan_id) DO NOTHING;
	`
	for _, ev := range events {
		_, err := tx.Exec(ctx, insertSQL,
			ev.ScanID, ev.UserWallet, ev.RiskLevel, ev.RiskScore, ev.Confidence, ev.ScanTimeMs,
			ev.ProgramCount, ev.InstructionCount, ev.PatternMatchesCount, ev.ScanType, ev.Timestamp,
		)
		if err != nil {
			log.Printf("events: postgres sink insert failed for scan %s: %v", ev.ScanID, err)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("events: postgres sink commit failed: %v", err)
	}
}

var _ ScanEventSink = (*PostgresSink)(nil)
