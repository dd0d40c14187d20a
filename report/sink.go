package report

import (
	"context"
	"log/slog"
)

// Sink is the output interface for engine events. Implementations deliver
// to different backends; a sink must tolerate concurrent calls.
type Sink interface {
	Send(ctx context.Context, scan Scan) error
	SendMask(ctx context.Context, mask Mask) error
	Close() error
}

// Router fans out events to all configured sinks. One failing sink does
// not block the others — errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, scan Scan) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, scan); err != nil {
			r.logger.Warn("report: send scan failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendMask(ctx context.Context, mask Mask) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendMask(ctx, mask); err != nil {
			r.logger.Warn("report: send mask failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
