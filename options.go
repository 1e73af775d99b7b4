package runloop

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// defaultNestedPumpInterval is the wait clamp applied while a nested
// message pump is active.
const defaultNestedPumpInterval = time.Millisecond

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger             *logiface.Logger[logiface.Event]
	sources            []Source
	nestedPumpInterval time.Duration
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements Option.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger attaches a structured logger to the loop. A nil logger (the
// default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithSource attaches an event source adapter. May be given multiple
// times; sources are drained in attachment order within each cycle.
func WithSource(source Source) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if source == nil {
			return errors.New("runloop: source must not be nil")
		}
		opts.sources = append(opts.sources, source)
		return nil
	}}
}

// WithNestedPumpInterval sets the wait clamp used while a nested message
// pump is active (see [Waker.EnterNestedPump]). Default 1ms.
func WithNestedPumpInterval(interval time.Duration) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if interval <= 0 {
			return errors.New("runloop: nested pump interval must be positive")
		}
		opts.nestedPumpInterval = interval
		return nil
	}}
}

// resolveLoopOptions applies Option instances to loopOptions.
func resolveLoopOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		nestedPumpInterval: defaultNestedPumpInterval,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
