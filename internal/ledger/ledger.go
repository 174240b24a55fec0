package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 50
	defaultMaxOpenConns  = 50
)

// PoolConfig mirrors the connection-pool tuning knobs named in spec §9.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	return c
}

// Ledger is the gateway's durable store: a buffered async request logger
// plus the replay-protected used-proof table.
type Ledger struct {
	db  *gorm.DB
	log zerolog.Logger

	flushInterval time.Duration
	batchSize     int

	mu      sync.Mutex
	buffer  []RequestEntry
	flushCh chan struct{}
	doneCh  chan struct{}
	stopped chan struct{}
	closed  bool
}

// Open connects to Postgres via the given gorm dialector-ready db handle
// (the caller constructs the *gorm.DB so tests can substitute sqlite),
// applies connection-pool tuning, runs auto-migration, and starts the
// background flusher goroutine.
func Open(db *gorm.DB, pool PoolConfig, log zerolog.Logger) (*Ledger, error) {
	pool = pool.withDefaults()

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := db.AutoMigrate(&RequestEntry{}, &UsedProof{}); err != nil {
		return nil, err
	}

	l := &Ledger{
		db:            db,
		log:           log,
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		flushCh:       make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go l.flushLoop()
	return l, nil
}

// LogRequest enqueues a request-log entry. It never blocks on I/O and never
// returns an error to the caller (spec §4.F: "insertion failures are logged
// but never propagate").
func (l *Ledger) LogRequest(entry RequestEntry) {
	l.mu.Lock()
	l.buffer = append(l.buffer, entry)
	full := len(l.buffer) >= l.batchSize
	l.mu.Unlock()

	if full {
		select {
		case l.flushCh <- struct{}{}:
		default:
		}
	}
}

func (l *Ledger) flushLoop() {
	defer close(l.stopped)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.flush()
		case <-l.flushCh:
			l.flush()
		case <-l.doneCh:
			l.flush()
			return
		}
	}
}

func (l *Ledger) flush() {
	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.buffer
	l.buffer = nil
	l.mu.Unlock()

	if err := l.db.Create(&batch).Error; err != nil {
		l.log.Error().Err(err).Int("batch_size", len(batch)).Msg("ledger: request log flush failed")
	}
}

// Close drains the buffer and stops the background flusher, returning once
// the final flush has finished. It must be called during graceful shutdown
// so no buffered entries are lost. The database pool stays open; closing it
// is left to the caller that opened it.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.doneCh)
	<-l.stopped
	return nil
}

// RecordProof performs the atomic insert-or-ignore that is the sole source
// of payment-admission truth (spec §4.F). It returns true iff this call
// performed the first insert of proofKey.
func (l *Ledger) RecordProof(ctx context.Context, proofKey, payer, amountBaseUnits, caip2 string) (bool, error) {
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&UsedProof{
			ProofKey:       proofKey,
			Payer:          payer,
			AmountBaseUnit: amountBaseUnits,
			CAIP2:          caip2,
			AcceptedAt:     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IsProofUsed is a fast, non-authoritative existence probe (spec §4.F:
// "never as the source of truth for admission").
func (l *Ledger) IsProofUsed(ctx context.Context, proofKey string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&UsedProof{}).Where("proof_key = ?", proofKey).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Stats reports approximate totals plus a bounded recent window, per spec
// §4.F ("approximate row counts... not sequential scans").
type Stats struct {
	TotalRequestsApprox int64
	TotalProofsApprox   int64
	RequestsLastDay     int64
	ProofsLastDay       int64
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	db := l.db.WithContext(ctx)

	if err := db.Raw(approxCountQuery("requests")).Scan(&s.TotalRequestsApprox).Error; err != nil {
		// Fall back to an exact count for non-Postgres dialects (e.g.
		// sqlite in tests), where the catalog estimate query doesn't exist.
		if err2 := db.Model(&RequestEntry{}).Count(&s.TotalRequestsApprox).Error; err2 != nil {
			return s, err2
		}
	}
	if err := db.Raw(approxCountQuery("used_proofs")).Scan(&s.TotalProofsApprox).Error; err != nil {
		if err2 := db.Model(&UsedProof{}).Count(&s.TotalProofsApprox).Error; err2 != nil {
			return s, err2
		}
	}

	since := time.Now().Add(-24 * time.Hour)
	if err := db.Model(&RequestEntry{}).Where("created_at > ?", since).Count(&s.RequestsLastDay).Error; err != nil {
		return s, err
	}
	if err := db.Model(&UsedProof{}).Where("accepted_at > ?", since).Count(&s.ProofsLastDay).Error; err != nil {
		return s, err
	}
	return s, nil
}

func approxCountQuery(table string) string {
	return "SELECT reltuples::bigint FROM pg_class WHERE relname = '" + table + "'"
}

// CleanupOldRequests deletes request-log rows older than the given
// retention window. Intended to run on a daily schedule (spec §4.F).
func (l *Ledger) CleanupOldRequests(ctx context.Context, retention time.Duration) (int64, error) {
	deadline := time.Now().Add(-retention)
	result := l.db.WithContext(ctx).Where("created_at < ?", deadline).Delete(&RequestEntry{})
	return result.RowsAffected, result.Error
}
