// Package loop is the polling control loop: it feeds raw samples into a
// fixed-point filter and polls cooperative timers to decide when to report
// the filtered value.
package loop

import (
	"context"
	"time"

	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/filter"
	"codeberg.org/mutker/pollctl/internal/logger"
	"codeberg.org/mutker/pollctl/internal/metrics"
	"codeberg.org/mutker/pollctl/internal/source"
	"codeberg.org/mutker/pollctl/internal/timer"
)

type Options struct {
	Source source.Source
	Filter *filter.Binary16
	Clock  timer.Clock

	// ReportPeriod is the milliseconds between reports of the filtered value.
	ReportPeriod uint32
	// Warmup suppresses reports for this many milliseconds after Start.
	Warmup uint32
	// MaxReadFailures consecutive failed reads abort Run. 0 never aborts.
	MaxReadFailures int

	Collector metrics.Collector
	Logger    logger.Logger
	Now       func() time.Time
}

// Sample describes one Step.
type Sample struct {
	Raw      uint16
	Previous uint16 // filtered value before Raw was applied
	Filtered uint16
	Clock    uint32
	Warm     bool
	Reported bool
}

type Controller struct {
	opts     Options
	report   *timer.Timer
	warmup   *timer.Timer
	warm     bool
	failures int
}

func New(opts Options) (*Controller, error) {
	errFactory := errors.New()

	switch {
	case opts.Source == nil:
		return nil, errFactory.WithData(ErrInvalidOptions, "nil source")
	case opts.Filter == nil:
		return nil, errFactory.WithData(ErrInvalidOptions, "nil filter")
	case opts.Clock == nil:
		return nil, errFactory.WithData(ErrInvalidOptions, "nil clock")
	case opts.ReportPeriod == 0:
		return nil, errFactory.WithData(ErrInvalidOptions, "zero report period")
	}

	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		opts:   opts,
		report: timer.New(opts.Clock, opts.ReportPeriod, true),
	}
	if opts.Warmup > 0 {
		c.warmup = timer.New(opts.Clock, opts.Warmup, false)
	}
	c.warm = c.warmup == nil

	return c, nil
}

// Start arms the report and warmup timers from the current clock reading.
func (c *Controller) Start() {
	c.report.Start()
	c.warm = c.warmup == nil
	if c.warmup != nil {
		c.warmup.Start()
	}

	c.opts.Logger.Debug().
		Uint32("report_period_ms", c.opts.ReportPeriod).
		Uint32("warmup_ms", c.opts.Warmup).
		Uint8("attenuation", c.opts.Filter.Attenuation()).
		Uint16("seed", c.opts.Filter.Value()).
		Msg("Control loop started")
}

// Stop disarms the timers. Steps taken afterwards still filter samples but
// never report.
func (c *Controller) Stop() {
	c.report.Stop()
	if c.warmup != nil {
		c.warmup.Stop()
	}
}

// Step reads one sample, applies it to the filter and polls the timers.
func (c *Controller) Step(ctx context.Context) (Sample, error) {
	errFactory := errors.New()

	raw, err := c.opts.Source.Read(ctx)
	if err != nil {
		c.failures++
		if c.opts.MaxReadFailures > 0 && c.failures >= c.opts.MaxReadFailures {
			return Sample{}, errFactory.Wrap(ErrSourceFailed, err).WithData(struct {
				Source   string
				Failures int
				Error    string
			}{c.opts.Source.Name(), c.failures, err.Error()})
		}

		return Sample{}, errFactory.Wrap(ErrSampleRead, err)
	}
	c.failures = 0

	s := Sample{
		Raw:      raw,
		Previous: c.opts.Filter.AddSample(raw),
		Filtered: c.opts.Filter.Value(),
		Clock:    c.opts.Clock.Millis(),
	}

	if !c.warm && c.warmup.Process() {
		c.warm = true
		c.opts.Logger.Info().
			Uint16("filtered", s.Filtered).
			Msg("Filter warmup complete")
	}
	s.Warm = c.warm

	if c.report.Process() && c.warm {
		s.Reported = true
		c.publish(ctx, s)
	}

	return s, nil
}

func (c *Controller) publish(ctx context.Context, s Sample) {
	c.opts.Logger.Info().
		Str("source", c.opts.Source.Name()).
		Uint16("raw", s.Raw).
		Uint16("filtered", s.Filtered).
		Uint32("clock_ms", s.Clock).
		Msg("")

	if c.opts.Collector == nil {
		return
	}

	err := c.opts.Collector.Record(ctx, &metrics.Snapshot{
		Timestamp:   c.opts.Now(),
		ClockMillis: s.Clock,
		Source:      c.opts.Source.Name(),
		Raw:         s.Raw,
		Filtered:    s.Filtered,
		Attenuation: c.opts.Filter.Attenuation(),
	})
	if err != nil {
		c.opts.Logger.Error().Err(err).Msg("Failed to record metrics")
	}
}

// Run starts the timers and steps every interval until ctx is cancelled or
// the source fails MaxReadFailures times in a row.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	c.Start()
	defer c.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.HasCode(err, ErrSourceFailed) {
					return err
				}
				c.opts.Logger.Warn().Err(err).Msg("Skipping sample")
			}
		}
	}
}
