package enrollment

import (
	"context"
	"errors"
	"sync"
	"time"

	"face-attendance-go/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// ErrPoolClosed wird zurückgegeben, wenn der Pool bereits heruntergefahren wurde
var ErrPoolClosed = errors.New("enrollment pool is shut down")

// WorkerPool führt Registrierungen in einer festen Anzahl von Goroutinen aus.
// Mit einem Worker wird jede Registrierung gegen einen konsistenten Korpus geprüft.
type WorkerPool struct {
	enroller        *Enroller
	jobs            chan *enrollJob
	workerCount     int
	activeJobs      int
	activeJobsMutex sync.Mutex
	shutdown        chan struct{}
	shutdownOnce    sync.Once
	wg              sync.WaitGroup
}

type enrollJob struct {
	ctx      context.Context
	request  Request
	resultCh chan *jobResult
}

type jobResult struct {
	result *Result
	err    error
}

// NewWorkerPool erstellt den Pool und startet die Worker
func NewWorkerPool(enroller *Enroller, workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}

	log.Infof("Initializing enrollment worker pool with %d workers", workers)

	pool := &WorkerPool{
		enroller:    enroller,
		jobs:        make(chan *enrollJob, workers*2),
		workerCount: workers,
		shutdown:    make(chan struct{}),
	}
	pool.startWorkers()
	return pool
}

func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Enrollment worker %d started", workerID)

			for {
				select {
				case job := <-p.jobs:
					p.run(workerID, job)
				case <-p.shutdown:
					log.Debugf("Enrollment worker %d received shutdown signal", workerID)
					return
				}
			}
		}(i)
	}
}

func (p *WorkerPool) run(workerID int, job *enrollJob) {
	if err := job.ctx.Err(); err != nil {
		job.resultCh <- &jobResult{err: err}
		return
	}

	p.activeJobsMutex.Lock()
	p.activeJobs++
	p.activeJobsMutex.Unlock()

	start := timezone.Now()
	result, err := p.enroller.Enroll(job.ctx, job.request)

	p.activeJobsMutex.Lock()
	p.activeJobs--
	p.activeJobsMutex.Unlock()

	// resultCh ist gepuffert, der Worker blockiert nie
	job.resultCh <- &jobResult{result: result, err: err}

	log.Infof("Worker %d finished enrollment of %s in %v", workerID, job.request.RollNumber, time.Since(start))
}

// Enroll reicht eine Registrierung ein und wartet auf das Ergebnis
func (p *WorkerPool) Enroll(ctx context.Context, req Request) (*Result, error) {
	resultCh := make(chan *jobResult, 1)
	job := &enrollJob{ctx: ctx, request: req, resultCh: resultCh}

	select {
	case <-p.shutdown:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
	case <-p.shutdown:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Delete entfernt einen Studenten samt Korpus
func (p *WorkerPool) Delete(id string) error {
	return p.enroller.Delete(id)
}

// ActiveJobCount gibt die Anzahl laufender Registrierungen zurück
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// QueuedJobCount gibt die Anzahl wartender Registrierungen zurück
func (p *WorkerPool) QueuedJobCount() int {
	return len(p.jobs)
}

// GetWorkerCount gibt die Anzahl der Worker zurück
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity gibt die Kapazität der Warteschlange zurück
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// Shutdown stoppt die Worker und wartet, bis laufende Registrierungen beendet sind
func (p *WorkerPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	p.wg.Wait()
}
