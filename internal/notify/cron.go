package notify

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom,
// month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RunDigestSchedule posts the digest on the given cron schedule until ctx
// is cancelled.
func (n *Notifier) RunDigestSchedule(ctx context.Context, schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("notify: digest schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithParser(cronParser))
	c.AddFunc(schedule, func() { n.PostDigest(ctx) })
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
