package retry

import (
	"context"
	"math/rand"
	"time"
)

type Operation = func() error

type Config struct {
	Attempts int           // total attempts, including the first
	MinDelay time.Duration // backoff lower bound
	MaxDelay time.Duration // backoff cap
}

func NewDefaultConfig() *Config {
	return &Config{
		Attempts: 3,
		MinDelay: 1 * time.Second,
		MaxDelay: 10 * time.Second,
	}
}

type Retrier struct {
	config *Config
}

func NewRetrier(config *Config) *Retrier {
	return &Retrier{
		config: config,
	}
}

func NewDefaultRetrier() *Retrier {
	return NewRetrier(NewDefaultConfig())
}

// Do runs op until it succeeds or the attempt budget is exhausted, sleeping
// a randomized exponential delay between attempts. The last error is
// returned as-is.
func (r *Retrier) Do(ctx context.Context, op Operation) error {
	var err error
	// Per-call source: Do runs on the caller's goroutine and a Retrier is
	// shared across exchanges.
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt < r.config.Attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}

		if attempt == r.config.Attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay(rnd, attempt)):
		}
	}
	return err
}

// delay picks a random duration between MinDelay and min(MaxDelay,
// MinDelay<<attempt+1).
func (r *Retrier) delay(rnd *rand.Rand, attempt int) time.Duration {
	high := r.config.MinDelay << uint(attempt+1)
	if high > r.config.MaxDelay {
		high = r.config.MaxDelay
	}
	if high <= r.config.MinDelay {
		return r.config.MinDelay
	}
	return r.config.MinDelay + time.Duration(rnd.Int63n(int64(high-r.config.MinDelay)))
}
