package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"newsletter-backend/models"

	"gorm.io/gorm"
)

// Config tunes how long a request waits for a concurrent execution of the
// same key before giving up with ErrInFlight.
type Config struct {
	// PollInterval is the first wait between claim attempts; it doubles on
	// every retry up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	// WaitTimeout is the hard budget for the whole wait-and-replay loop.
	WaitTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    50 * time.Millisecond,
		MaxPollInterval: time.Second,
		WaitTimeout:     10 * time.Second,
	}
}

// Processor serializes concurrent attempts on the same (user, key) pair and
// replays saved responses. The database is the sole serialization point: the
// claim is a conditional insert against the composite primary key, so it holds
// across processes sharing the store.
type Processor struct {
	db  *gorm.DB
	cfg Config
}

func NewProcessor(db *gorm.DB, cfg Config) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultConfig().WaitTimeout
	}
	return &Processor{db: db, cfg: cfg}
}

// NextAction is the outcome of one claim attempt. When Saved is nil the
// caller won the claim and must run the effect exactly once; otherwise it must
// replay the saved response without executing anything.
type NextAction struct {
	Saved *Response
}

func (n NextAction) StartProcessing() bool { return n.Saved == nil }

// TryStart makes one claim attempt for (userID, key). The placeholder insert
// and the fallback read run in a single transaction, so a lost race always
// observes a consistent row. Returns ErrInFlight when the row exists but its
// response is not yet saved.
func (p *Processor) TryStart(ctx context.Context, userID string, key Key) (NextAction, error) {
	var action NextAction
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			INSERT INTO idempotency (user_id, idempotency_key, response_headers, response_body, created_at)
			VALUES (?, ?, '[]'::jsonb, ''::bytea, now())
			ON CONFLICT (user_id, idempotency_key) DO NOTHING`,
			userID, key.String(),
		)
		if res.Error != nil {
			return fmt.Errorf("idempotency claim insert failed: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			// Claim won; the caller owns completing this key.
			return nil
		}

		var rec models.IdempotencyRecord
		err := tx.Where("user_id = ? AND idempotency_key = ?", userID, key.String()).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The holder released the claim between our insert and read;
			// treat as in-flight and let the caller's poll loop re-claim.
			return ErrInFlight
		}
		if err != nil {
			return fmt.Errorf("idempotency lookup failed: %w", err)
		}
		if !rec.Complete() {
			return ErrInFlight
		}
		saved, err := decodeRecord(&rec)
		if err != nil {
			return err
		}
		action.Saved = &saved
		return nil
	})
	if err != nil {
		return NextAction{}, err
	}
	return action, nil
}

// Complete persists the response and releases the claim in one atomic UPDATE.
// There is no window where the row is neither placeholder nor complete, and a
// row that is already complete is never overwritten.
func (p *Processor) Complete(ctx context.Context, userID string, key Key, resp Response) error {
	if err := resp.Validate(); err != nil {
		return err
	}
	status, headers, body := encodeRecord(resp)
	res := p.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("user_id = ? AND idempotency_key = ? AND response_status_code IS NULL", userID, key.String()).
		Updates(map[string]any{
			"response_status_code": status,
			"response_headers":     headers,
			"response_body":        body,
		})
	if res.Error != nil {
		return fmt.Errorf("saving idempotent response failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("idempotency claim for (%s, %s) was lost before completion", userID, key.String())
	}
	return nil
}

// Release removes an incomplete claim so a later retry can re-attempt the
// operation. Complete rows are immutable and never touched. This is also the
// mutation path an external reaper uses to force-clear a single stuck claim.
func (p *Processor) Release(ctx context.Context, userID string, key Key) error {
	res := p.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND response_status_code IS NULL", userID, key.String()).
		Delete(&models.IdempotencyRecord{})
	if res.Error != nil {
		return fmt.Errorf("releasing idempotency claim failed: %w", res.Error)
	}
	return nil
}

// PurgeStale clears incomplete claims older than the cutoff, e.g. left behind
// by a process that died mid-execution. When to call it, and with what age,
// is the caller's retention policy.
func (p *Processor) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := p.db.WithContext(ctx).
		Where("response_status_code IS NULL AND created_at < ?", cutoff).
		Delete(&models.IdempotencyRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging stale idempotency claims failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Execute runs effect at most once for (userID, key).
//
// The first caller claims the key, runs the effect, persists its response and
// returns it with replayed=false. Callers that find a saved response get it
// back byte-identical with replayed=true. Callers that collide with an
// in-flight execution poll with capped exponential backoff until the holder
// finishes or the wait budget runs out, then fail with ErrInFlight.
//
// If the effect fails its claim is released, so a legitimate retry can
// re-attempt the operation; the effect's error is returned unchanged.
func (p *Processor) Execute(ctx context.Context, userID string, key Key, effect func() (Response, error)) (resp Response, replayed bool, err error) {
	deadline := time.Now().Add(p.cfg.WaitTimeout)
	interval := p.cfg.PollInterval

	for {
		action, err := p.TryStart(ctx, userID, key)
		if errors.Is(err, ErrInFlight) {
			if time.Now().Add(interval).After(deadline) {
				return Response{}, false, ErrInFlight
			}
			select {
			case <-ctx.Done():
				return Response{}, false, ctx.Err()
			case <-time.After(interval):
			}
			if interval *= 2; interval > p.cfg.MaxPollInterval {
				interval = p.cfg.MaxPollInterval
			}
			continue
		}
		if err != nil {
			return Response{}, false, err
		}
		if !action.StartProcessing() {
			return *action.Saved, true, nil
		}

		resp, err := effect()
		if err != nil {
			if relErr := p.Release(ctx, userID, key); relErr != nil {
				log.Printf("idempotency: releasing claim (%s, %s) after failed effect: %v", userID, key.String(), relErr)
			}
			return Response{}, false, err
		}
		if err := p.Complete(ctx, userID, key, resp); err != nil {
			if errors.Is(err, ErrMalformedResponse) {
				// Nothing was persisted; free the key for a corrected retry.
				if relErr := p.Release(ctx, userID, key); relErr != nil {
					log.Printf("idempotency: releasing claim (%s, %s) after malformed response: %v", userID, key.String(), relErr)
				}
			}
			return Response{}, false, err
		}
		return resp, false, nil
	}
}
