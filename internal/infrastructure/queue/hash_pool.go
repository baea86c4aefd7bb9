package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmiq/farmiq-backend/internal/api/metrics"
)

const (
	// HashCost is the bcrypt cost every stored password is hashed with.
	HashCost = bcrypt.DefaultCost

	// MaxPasswordBytes is the longest input bcrypt accepts. Longer passwords
	// are cut to it, on a rune boundary.
	MaxPasswordBytes = 72

	defaultHashTimeout = 5 * time.Second
	channelBuffer      = 256
)

// ErrPoolStopped is returned for jobs submitted after Stop.
var ErrPoolStopped = errors.New("hash pool stopped")

type hashOp string

const (
	opHash    hashOp = "hash"
	opCompare hashOp = "compare"
)

type hashJob struct {
	ctx      context.Context
	op       hashOp
	password string
	hash     string
	result   chan hashResult
}

type hashResult struct {
	hash    string
	matched bool
	err     error
}

// HashPool runs bcrypt on a fixed set of worker goroutines so CPU-bound
// hashing never piles up unbounded behind incoming requests.
type HashPool struct {
	jobs    chan hashJob
	done    chan struct{}
	workers int
	cost    int
	timeout time.Duration
	log     zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHashPool creates a pool with numWorkers workers. If numWorkers <= 0,
// runtime.NumCPU() is used; a non-positive timeout falls back to 5s.
func NewHashPool(numWorkers, cost int, timeout time.Duration, log zerolog.Logger) *HashPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if timeout <= 0 {
		timeout = defaultHashTimeout
	}
	return &HashPool{
		jobs:    make(chan hashJob, channelBuffer),
		done:    make(chan struct{}),
		workers: numWorkers,
		cost:    cost,
		timeout: timeout,
		log:     log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or Stop is called.
func (p *HashPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Stop rejects new jobs and waits for the workers to exit.
func (p *HashPool) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Hash returns the bcrypt hash of password.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	res, err := p.submit(ctx, hashJob{op: opHash, password: password})
	if err != nil {
		return "", err
	}
	return res.hash, res.err
}

// Compare reports whether password matches hash in constant time.
func (p *HashPool) Compare(ctx context.Context, hash, password string) (bool, error) {
	res, err := p.submit(ctx, hashJob{op: opCompare, hash: hash, password: password})
	if err != nil {
		return false, err
	}
	return res.matched, res.err
}

func (p *HashPool) submit(ctx context.Context, job hashJob) (hashResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	job.ctx = ctx
	job.result = make(chan hashResult, 1)

	select {
	case <-p.done:
		return hashResult{}, ErrPoolStopped
	default:
	}

	select {
	case p.jobs <- job:
		metrics.HashQueueDepth.Inc()
	case <-p.done:
		return hashResult{}, ErrPoolStopped
	case <-ctx.Done():
		return hashResult{}, fmt.Errorf("%s: %w", job.op, ctx.Err())
	}

	select {
	case res := <-job.result:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, fmt.Errorf("%s: %w", job.op, ctx.Err())
	}
}

func (p *HashPool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case job := <-p.jobs:
			metrics.HashQueueDepth.Dec()
			job.result <- p.run(job)
			if job.ctx.Err() != nil {
				p.log.Debug().Int("worker_id", id).Str("op", string(job.op)).Msg("hash job finished after caller gave up")
			}
		}
	}
}

func (p *HashPool) run(job hashJob) hashResult {
	if err := job.ctx.Err(); err != nil {
		return hashResult{err: err}
	}

	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues(string(job.op)).Observe(time.Since(start).Seconds())
	}()

	switch job.op {
	case opHash:
		h, err := bcrypt.GenerateFromPassword(truncatePassword(job.password), p.cost)
		if err != nil {
			return hashResult{err: fmt.Errorf("bcrypt: %w", err)}
		}
		return hashResult{hash: string(h)}
	case opCompare:
		err := bcrypt.CompareHashAndPassword([]byte(job.hash), truncatePassword(job.password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return hashResult{matched: false}
		}
		if err != nil {
			return hashResult{err: fmt.Errorf("bcrypt: %w", err)}
		}
		return hashResult{matched: true}
	default:
		return hashResult{err: fmt.Errorf("unknown hash op %q", job.op)}
	}
}

// truncatePassword returns at most MaxPasswordBytes of password without
// splitting a multibyte character.
func truncatePassword(password string) []byte {
	if len(password) <= MaxPasswordBytes {
		return []byte(password)
	}
	cut := MaxPasswordBytes
	for cut > 0 && !utf8.RuneStart(password[cut]) {
		cut--
	}
	return []byte(password[:cut])
}
