package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	dequeueTimeout = 30 * time.Second
	lockTTL        = 10 * time.Minute
	baseBackoff    = 2 * time.Second
	maxBackoff     = time.Minute
)

// Queue is the job transport. RedisQueue is the production implementation.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error)
	Enqueue(ctx context.Context, id uuid.UUID) error
	Lock(ctx context.Context, id uuid.UUID) (bool, error)
	Unlock(ctx context.Context, id uuid.UUID) error
}

// Processor runs one job. retry asks the pool to re-queue it.
type Processor interface {
	Process(ctx context.Context, jobID uuid.UUID) (retry bool, err error)
}

// ErrEmpty is returned by Dequeue when nothing arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

type Pool struct {
	queue       Queue
	processor   Processor
	workerCount int
	log         logrus.FieldLogger

	backoff func(retries int) time.Duration

	mu      sync.Mutex
	retries map[uuid.UUID]int
	pending map[uuid.UUID]*time.Timer
	timers  sync.WaitGroup

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewPool(queue Queue, processor Processor, workerCount int, log logrus.FieldLogger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:       queue,
		processor:   processor,
		workerCount: workerCount,
		log:         log.WithField("component", "worker"),
		backoff:     exponentialBackoff,
		retries:     make(map[uuid.UUID]int),
		pending:     make(map[uuid.UUID]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.WithField("workers", p.workerCount).Info("started generation workers")
}

// Stop cancels in-flight work and waits for every worker to return. Retries
// still waiting on their backoff are pushed back onto the queue at once, so
// the queue must stay open until Stop returns.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()

		p.mu.Lock()
		var due []uuid.UUID
		for id, t := range p.pending {
			if t.Stop() {
				due = append(due, id)
				p.timers.Done()
			}
			delete(p.pending, id)
		}
		p.mu.Unlock()

		for _, id := range due {
			p.requeue(id)
		}
		p.timers.Wait()
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.WithField("worker", id)

	for {
		if p.ctx.Err() != nil {
			log.Debug("worker shutting down")
			return
		}

		jobID, err := p.queue.Dequeue(p.ctx, dequeueTimeout)
		if err != nil {
			if !errors.Is(err, ErrEmpty) && p.ctx.Err() == nil {
				log.WithError(err).Warn("dequeue failed")
				time.Sleep(time.Second)
			}
			continue
		}

		p.handle(log, jobID)
	}
}

func (p *Pool) handle(log logrus.FieldLogger, jobID uuid.UUID) {
	ctx := p.ctx
	log = log.WithField("job_id", jobID)

	locked, err := p.queue.Lock(ctx, jobID)
	if err != nil {
		log.WithError(err).Warn("failed to lock job, returning it to the queue")
		p.requeue(jobID)
		return
	}
	if !locked {
		// Another worker has this job
		return
	}
	defer func() {
		if err := p.queue.Unlock(context.Background(), jobID); err != nil {
			log.WithError(err).Warn("failed to release job lock")
		}
	}()

	log.Info("processing generation job")
	retry, err := p.processor.Process(ctx, jobID)
	if err == nil {
		p.forget(jobID)
		log.Info("generation job finished")
		return
	}
	if !retry {
		p.forget(jobID)
		log.WithError(err).Warn("generation job failed")
		return
	}

	if ctx.Err() != nil {
		log.WithError(err).Info("pool stopping, returning generation job to the queue")
		p.requeue(jobID)
		return
	}

	delay := p.backoff(p.bump(jobID))
	log.WithError(err).WithField("retry_in", delay.String()).Warn("generation job will be retried")
	p.schedule(jobID, delay)
}

// schedule re-queues id after delay. Stop flushes timers that have not fired.
func (p *Pool) schedule(id uuid.UUID, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers.Add(1)
	p.pending[id] = time.AfterFunc(delay, func() {
		defer p.timers.Done()
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		p.requeue(id)
	})
}

func (p *Pool) requeue(id uuid.UUID) {
	if err := p.queue.Enqueue(context.Background(), id); err != nil {
		p.log.WithError(err).WithField("job_id", id).Error("failed to re-queue generation job")
	}
}

func (p *Pool) bump(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries[id]++
	return p.retries[id]
}

func (p *Pool) forget(id uuid.UUID) {
	p.mu.Lock()
	delete(p.retries, id)
	p.mu.Unlock()
}

func exponentialBackoff(retries int) time.Duration {
	d := baseBackoff << uint(retries-1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// RedisQueue keeps job ids in a Redis list and locks them with SETNX.
type RedisQueue struct {
	redis *redis.Client
	key   string
}

func NewRedisQueue(redisClient *redis.Client, key string) *RedisQueue {
	return &RedisQueue{redis: redisClient, key: key}
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	result, err := q.redis.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrEmpty
	}
	if err != nil {
		return uuid.Nil, err
	}
	if len(result) < 2 {
		return uuid.Nil, ErrEmpty
	}
	return uuid.Parse(result[1])
}

func (q *RedisQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	return q.redis.LPush(ctx, q.key, id.String()).Err()
}

func (q *RedisQueue) Lock(ctx context.Context, id uuid.UUID) (bool, error) {
	return q.redis.SetNX(ctx, lockKey(id), "1", lockTTL).Result()
}

func (q *RedisQueue) Unlock(ctx context.Context, id uuid.UUID) error {
	return q.redis.Del(ctx, lockKey(id)).Err()
}

func lockKey(id uuid.UUID) string {
	return "job_lock:" + id.String()
}
