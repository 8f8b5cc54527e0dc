package eventbus

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const DefaultSweepSchedule = "@every 5m"

// StartJanitor sweeps expired runs on schedule (a cron spec or descriptor
// such as "@every 5m"). The returned stop func waits for a running sweep.
func (b *Broker) StartJanitor(schedule string, log zerolog.Logger) (stop func(), err error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		for _, runID := range b.Sweep(b.opts.Now()) {
			log.Info().Str("run_id", runID).Msg("cleaned up old run")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	c.Start()
	return func() {
		ctx := c.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}, nil
}
