package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder persists usage records asynchronously. Recording never blocks the
// request path: when the buffer is full the record is dropped with a warning.
type Recorder struct {
	repo   Repository
	logger *zap.Logger
	buffer chan *Record
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewRecorder creates a usage recorder and starts its drain loop.
func NewRecorder(repo Repository, logger *zap.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		buffer: make(chan *Record, bufferSize),
		done:   make(chan struct{}),
	}
	r.start()
	return r
}

// Record queues a usage record for persistence.
func (r *Recorder) Record(record *Record) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	select {
	case r.buffer <- record:
		// Successfully queued
	default:
		r.logger.Warn("usage record buffer full, dropping record",
			zap.String("request_id", record.RequestID),
		)
	}
}

// Close stops the recorder and flushes remaining records.
func (r *Recorder) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case record := <-r.buffer:
				r.persist(record)
			case <-r.done:
				// Flush remaining records
				for {
					select {
					case record := <-r.buffer:
						r.persist(record)
					default:
						return
					}
				}
			}
		}
	}()
}

func (r *Recorder) persist(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.Create(ctx, record); err != nil {
		r.logger.Error("failed to persist usage record",
			zap.Error(err),
			zap.String("request_id", record.RequestID),
		)
	}
}
