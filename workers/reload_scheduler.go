package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Reloader rebuilds the gallery from its image source.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// ReloadScheduler periodically reloads the gallery so that images copied into
// the known faces directory by hand are picked up. Runs never overlap.
type ReloadScheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

func NewReloadScheduler(reloader Reloader, interval time.Duration) (*ReloadScheduler, error) {
	if interval <= 0 {
		return nil, errors.New("reload interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).WaitForSchedule().SingletonMode().Do(func() {
		n, err := reloader.Reload(ctx)
		if err != nil {
			log.Printf("workers: ERROR scheduled reload failed: %v", err)
			return
		}
		log.Printf("workers: Scheduled reload complete, %d identities loaded", n)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule gallery reload: %w", err)
	}
	return &ReloadScheduler{scheduler: s, cancel: cancel}, nil
}

func (rs *ReloadScheduler) Start() {
	rs.scheduler.StartAsync()
}

// Stop cancels a running reload and stops the schedule.
func (rs *ReloadScheduler) Stop() {
	rs.cancel()
	rs.scheduler.Stop()
}
