package bot

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	PRUNE_RUN_LOCKS_TAG = "PRUNE_RUN_LOCKS"
)

type Scheduler struct {
	gocron.Scheduler
}

func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		Scheduler: scheduler,
	}, nil
}

func (s *Scheduler) AddDurationJob(duration time.Duration, tag string, jobFunc interface{}) error {
	_, err := s.NewJob(
		gocron.DurationJob(duration),
		gocron.NewTask(jobFunc),
		gocron.WithTags(tag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// AddRunLockPruneJob periodically drops run locks idle for longer than ttl.
func (s *Scheduler) AddRunLockPruneJob(state *State, ttl time.Duration) error {
	// checking at half the ttl keeps a lock around at most 1.5x ttl
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	return s.AddDurationJob(interval, PRUNE_RUN_LOCKS_TAG, func() {
		if removed := state.PruneIdle(ttl); removed > 0 {
			log.Printf("pruned %d idle run locks, %d still tracked\n", removed, state.Len())
		}
	})
}

func (s *Scheduler) CancelRunLockPruneJob() {
	s.RemoveByTags(PRUNE_RUN_LOCKS_TAG)
}
