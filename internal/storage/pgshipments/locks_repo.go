package pgshipments

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// AdvisoryLocker is the owner lock for deployments without Redis. It holds a
// session-level pg_advisory_lock on a dedicated pool connection until Unlock;
// if the process dies the connection closes and Postgres drops the lock, so
// ttl is not needed.
type AdvisoryLocker struct {
	db *pgxpool.Pool

	mu   sync.Mutex
	held map[string]*pgxpool.Conn // token -> соединение, держащее лок
}

func NewAdvisoryLocker(s *Storage) *AdvisoryLocker {
	return &AdvisoryLocker{db: s.db, held: make(map[string]*pgxpool.Conn)}
}

func (l *AdvisoryLocker) TryLock(ctx context.Context, key string, _ time.Duration) (string, bool, error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return "", false, errors.Wrap(err, "pg lock: acquire conn")
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		conn.Release()
		return "", false, errors.Wrap(err, "pg lock")
	}
	if !ok {
		conn.Release()
		return "", false, nil
	}

	token := uuid.NewString()
	l.mu.Lock()
	l.held[token] = conn
	l.mu.Unlock()
	return token, true, nil
}

func (l *AdvisoryLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	conn, ok := l.held[token]
	delete(l.held, token)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	var released bool
	if err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, key).Scan(&released); err != nil {
		// лок остался на сессии: закрываем соединение, а не возвращаем его в пул
		_ = conn.Hijack().Close(context.WithoutCancel(ctx))
		return errors.Wrap(err, "pg unlock")
	}
	conn.Release()
	return nil
}

// Cooldown is the alert cooldown for deployments without Redis: one row per key,
// a slot is free again once expires_at has passed.
type Cooldown struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewCooldown(s *Storage) *Cooldown {
	return &Cooldown{db: s.db, now: time.Now}
}

func (c *Cooldown) WithClock(now func() time.Time) *Cooldown {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *Cooldown) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	now := c.now().UTC()
	var got string
	err := c.db.QueryRow(ctx, `
INSERT INTO alert_cooldowns (key, expires_at)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
WHERE alert_cooldowns.expires_at <= $3
RETURNING key
`, key, now.Add(window), now).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "pg cooldown")
	}
	return true, nil
}

func (c *Cooldown) Release(ctx context.Context, key string) error {
	if _, err := c.db.Exec(ctx, `DELETE FROM alert_cooldowns WHERE key = $1`, key); err != nil {
		return errors.Wrap(err, "pg cooldown release")
	}
	return nil
}
