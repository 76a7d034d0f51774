package usage

import (
	"context"
	"sync"

	"github.com/orangecat-xyz/autorouter/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker drains decision records onto the database off the request path.
type Worker struct {
	service  *Service
	tasks    chan RecordTask
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// RecordTask is one queued decision write.
type RecordTask struct {
	Params    models.RecordDecisionParams
	RequestID string
}

// NewWorker starts poolSize goroutines draining a buffer of bufferSize tasks.
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	if poolSize <= 0 {
		poolSize = 2
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}

	w := &Worker{
		service: service,
		tasks:   make(chan RecordTask, bufferSize),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Submit queues a decision write. When the buffer is full the task is
// dropped with a warning; the request path never blocks on logging.
func (w *Worker) Submit(params models.RecordDecisionParams, requestID string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		fiberlog.Warnf("[%s] Decision worker stopped, cannot submit record task", requestID)
		return
	}

	select {
	case w.tasks <- RecordTask{Params: params, RequestID: requestID}:
	default:
		fiberlog.Warnf("[%s] Decision record buffer full, dropping task", requestID)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for task := range w.tasks {
		if _, err := w.service.RecordDecision(context.Background(), task.Params); err != nil {
			fiberlog.Errorf("[%s] Failed to record routing decision: %v", task.RequestID, err)
		}
	}
}

// Stop drains queued tasks and waits for the workers to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.tasks)
		w.mu.Unlock()
		w.wg.Wait()
	})
}
