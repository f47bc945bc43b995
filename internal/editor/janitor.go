package editor

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// NewJanitor sweeps idle sessions out of the store every interval.
func NewJanitor(store *Store, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("janitor interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(sweep, store),
		gocron.WithName("session-janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	log.WithField("interval", interval).Info("Starting session janitor")
	scheduler.Start()
	return scheduler, nil
}

func sweep(store *Store) {
	if evicted := store.Sweep(); evicted > 0 {
		log.WithFields(log.Fields{
			"evicted":   evicted,
			"remaining": store.Len(),
		}).Info("Evicted idle sessions")
	}
}
