package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool manages a pool of scoring-head sessions for concurrent batch scoring.
type Pool struct {
	sessions chan *Session
	cfg      SessionConfig
	size     int
	mu       sync.Mutex
	closed   bool
}

// NewPool creates a pool of size sessions for the model described by cfg.
func NewPool(cfg SessionConfig, size int) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		sessions: make(chan *Session, size),
		cfg:      cfg,
		size:     size,
	}

	// Pre-create all sessions
	for i := 0; i < size; i++ {
		session, err := NewSession(cfg)
		if err != nil {
			// Clean up already created sessions
			_ = pool.Close() // Best-effort cleanup; original error takes precedence
			return nil, fmt.Errorf("creating session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire gets a session from the pool, blocking if none available.
// Respects context cancellation. Returns error if pool is closed.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	// Holding mu across the send keeps Close from closing the channel under us.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close() // Pool closed; clean up session
		return
	}

	select {
	case p.sessions <- s:
	default:
		_ = s.Close() // Pool full; clean up excess session
	}
}

// Close closes all sessions in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.sessions)

	var errs []error
	for session := range p.sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Scores acquires a session, scores features with it and releases it.
func (p *Pool) Scores(ctx context.Context, features [][]float32) ([][]float64, error) {
	session, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(session)

	return session.Scores(ctx, features)
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}
