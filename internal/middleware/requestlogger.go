package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/quota-gateway/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LogSink interface {
	CreateBatch(ctx context.Context, logs []models.RequestLog) error
}

type RequestLoggerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// RequestLogger records every request through a buffered channel and writes
// them to the sink in batches. A full buffer drops entries instead of
// blocking the request.
type RequestLogger struct {
	sink          LogSink
	entries       chan models.RequestLog
	batchSize     int
	flushInterval time.Duration
	log           *zap.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewRequestLogger(sink LogSink, cfg RequestLoggerConfig, log *zap.Logger) *RequestLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	r := &RequestLogger{
		sink:          sink,
		entries:       make(chan models.RequestLog, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		log:           log,
		done:          make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *RequestLogger) run() {
	defer r.wg.Done()

	batch := make([]models.RequestLog, 0, r.batchSize)
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-r.entries:
			batch = append(batch, entry)

			if len(batch) >= r.batchSize {
				batch = r.flush(batch)
			}
		case <-ticker.C:
			batch = r.flush(batch)
		case <-r.done:
			for {
				select {
				case entry := <-r.entries:
					batch = append(batch, entry)
					if len(batch) >= r.batchSize {
						batch = r.flush(batch)
					}
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *RequestLogger) flush(batch []models.RequestLog) []models.RequestLog {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.sink.CreateBatch(ctx, batch); err != nil {
		r.log.Error("failed to insert request logs", zap.Int("count", len(batch)), zap.Error(err))
	}

	return make([]models.RequestLog, 0, r.batchSize)
}

func (r *RequestLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := models.RequestLog{
			Timestamp:      start,
			RequestID:      c.GetString(requestIDKey),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}
		if identity, ok := IdentityFrom(c); ok {
			entry.IdentityKey = identity.Key
			entry.Tier = identity.Tier.String()
		}

		select {
		case r.entries <- entry:
		default:
			r.log.Warn("request log buffer full, dropping entry", zap.String("path", entry.Path))
		}
	}
}

// Close flushes buffered entries and stops the worker
func (r *RequestLogger) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}
