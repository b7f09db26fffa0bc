package workers

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/camden-git/faceattend/recognition"
)

var ErrPoolStopped = errors.New("embed pool stopped")

type EmbedJob struct {
	Ctx  context.Context
	Task func(ctx context.Context)
	done *sync.WaitGroup
}

// EmbedPool runs per-image decode and embedding work on a fixed set of
// long-lived workers. Gallery builds and enrollment batches share it, so the
// number of concurrent provider calls never exceeds the worker count.
type EmbedPool struct {
	JobQueue chan EmbedJob
	Wg       sync.WaitGroup
	StopChan chan struct{}

	mu      sync.RWMutex
	stopped bool
}

var _ recognition.Runner = (*EmbedPool)(nil)

func NewEmbedPool(queueSize, numWorkers int) *EmbedPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	pool := &EmbedPool{
		JobQueue: make(chan EmbedJob, queueSize),
		StopChan: make(chan struct{}),
	}
	pool.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker(i)
	}
	log.Printf("workers: Started %d embedding worker(s) with queue size %d", numWorkers, queueSize)
	return pool
}

func (p *EmbedPool) worker(id int) {
	defer p.Wg.Done()
	for {
		select {
		case job := <-p.JobQueue:
			p.process(id, job)
		case <-p.StopChan:
			// release batches still waiting on queued jobs
			for {
				select {
				case job := <-p.JobQueue:
					job.done.Done()
				default:
					log.Printf("workers: Embedding worker %d stopping", id)
					return
				}
			}
		}
	}
}

func (p *EmbedPool) process(id int, job EmbedJob) {
	defer job.done.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("workers: Embedding worker %d: ERROR task panicked: %v", id, r)
		}
	}()
	if job.Ctx.Err() != nil {
		return
	}
	job.Task(job.Ctx)
}

// Run queues every task and blocks until all of them have finished. When ctx
// is cancelled, queuing stops, already queued tasks are skipped, and the
// context error is returned once in-flight tasks are done.
func (p *EmbedPool) Run(ctx context.Context, tasks []func(ctx context.Context)) error {
	var batch sync.WaitGroup
	err := p.submit(ctx, tasks, &batch)
	batch.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (p *EmbedPool) submit(ctx context.Context, tasks []func(ctx context.Context), batch *sync.WaitGroup) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	for _, task := range tasks {
		batch.Add(1)
		select {
		case p.JobQueue <- EmbedJob{Ctx: ctx, Task: task, done: batch}:
		case <-ctx.Done():
			batch.Done()
			return ctx.Err()
		}
	}
	return nil
}

func (p *EmbedPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.StopChan)
	p.mu.Unlock()

	log.Println("workers: Stopping embedding workers...")
	p.Wg.Wait()
	log.Println("workers: All embedding workers stopped")
}
