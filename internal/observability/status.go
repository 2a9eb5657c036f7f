// File: internal/observability/status.go
package observability

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

// StatusSink receives one-way status and log records from a run. Emit must
// never block the caller.
type StatusSink interface {
	Emit(rec schemas.StatusRecord)
}

// ZapSink writes status records through a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink returns a sink that logs every record.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("status")}
}

func (s *ZapSink) Emit(rec schemas.StatusRecord) {
	fields := make([]zap.Field, 0, 2)
	if rec.Status != "" {
		fields = append(fields, zap.String("status", string(rec.Status)))
	}
	if rec.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rec.TraceID))
	}
	switch rec.Level {
	case schemas.LevelDebug:
		s.logger.Debug(rec.Message, fields...)
	case schemas.LevelWarn:
		s.logger.Warn(rec.Message, fields...)
	case schemas.LevelError:
		s.logger.Error(rec.Message, fields...)
	default:
		s.logger.Info(rec.Message, fields...)
	}
}

// ChannelSink fans records out to subscribers over buffered channels. A full
// subscriber buffer drops the record for that subscriber.
type ChannelSink struct {
	mu      sync.RWMutex
	subs    map[int]chan schemas.StatusRecord
	nextID  int
	bufSize int
	closed  bool
	dropped atomic.Uint64
}

// NewChannelSink creates a sink whose subscribers buffer up to bufSize records.
func NewChannelSink(bufSize int) *ChannelSink {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &ChannelSink{subs: make(map[int]chan schemas.StatusRecord), bufSize: bufSize}
}

// Subscribe registers a consumer. The returned cancel func unregisters it and
// closes the channel.
func (s *ChannelSink) Subscribe() (<-chan schemas.StatusRecord, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan schemas.StatusRecord, s.bufSize)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *ChannelSink) Emit(rec schemas.StatusRecord) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			s.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were discarded on full buffers.
func (s *ChannelSink) Dropped() uint64 { return s.dropped.Load() }

// Close closes every subscriber channel. Later emits are discarded.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// MultiSink forwards every record to each sink in order.
type MultiSink []StatusSink

func (m MultiSink) Emit(rec schemas.StatusRecord) {
	for _, s := range m {
		if s != nil {
			s.Emit(rec)
		}
	}
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(schemas.StatusRecord) {}
