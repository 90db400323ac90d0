package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/engine"
)

// Submitter enqueues commands. *engine.Engine implements it.
type Submitter interface {
	Submit(ctx context.Context, cmd engine.Command) error
}

// Scheduler fires registered schedules. Schedules are kept in memory.
type Scheduler struct {
	mu        sync.RWMutex
	schedules map[string]Schedule

	submit Submitter
	tz     *time.Location
	now    func() time.Time

	reschedule chan struct{}
}

// New creates a scheduler that submits to s and evaluates times in tz.
func New(s Submitter, tz *time.Location) *Scheduler {
	if tz == nil {
		tz = time.Local
	}
	return &Scheduler{
		schedules:  make(map[string]Schedule),
		submit:     s,
		tz:         tz,
		now:        time.Now,
		reschedule: make(chan struct{}, 1),
	}
}

// Register adds or replaces a schedule
func (s *Scheduler) Register(sched Schedule) {
	s.mu.Lock()
	s.schedules[sched.ID()] = sched
	s.mu.Unlock()

	log.Debug().
		Str("id", sched.ID()).
		Str("when", sched.Describe()).
		Str("command", sched.Command().Name()).
		Msg("Schedule registered")

	s.notifyReschedule()
}

// Unregister removes a schedule
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	delete(s.schedules, id)
	s.mu.Unlock()
	s.notifyReschedule()
}

// Len returns the number of registered schedules.
func (s *Scheduler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schedules)
}

func (s *Scheduler) notifyReschedule() {
	select {
	case s.reschedule <- struct{}{}:
	default:
	}
}

// Run sleeps until the earliest occurrence, submits its command and repeats
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Int("schedules", s.Len()).Msg("Scheduler started")

	var fired time.Time
	for {
		now := s.now()
		// Never pick an occurrence that already fired, even if the timer ran early.
		after := now
		if after.Before(fired) {
			after = fired
		}
		at, due := s.nextOccurrence(after)

		sleepDuration := time.Hour // default if no schedules
		if len(due) > 0 {
			sleepDuration = max(at.Sub(now), 0)
		}

		log.Debug().Dur("sleep_duration", sleepDuration).Msg("Scheduler sleeping")
		timer := time.NewTimer(sleepDuration)

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopping")
			return nil

		case <-s.reschedule:
			timer.Stop()
			log.Debug().Msg("Schedule changed, recomputing")
			continue

		case <-timer.C:
			for _, sched := range due {
				s.fire(ctx, sched, at)
			}
			fired = at
		}
	}
}

// nextOccurrence finds the earliest next time across all schedules and
// every schedule due at that time.
func (s *Scheduler) nextOccurrence(after time.Time) (time.Time, []Schedule) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	var due []Schedule

	for _, sched := range s.schedules {
		t := sched.Next(after)
		switch {
		case len(due) == 0 || t.Before(earliest):
			earliest, due = t, []Schedule{sched}
		case t.Equal(earliest):
			due = append(due, sched)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ID() < due[j].ID() })
	return earliest, due
}

func (s *Scheduler) fire(ctx context.Context, sched Schedule, at time.Time) {
	log.Info().
		Str("schedule_id", sched.ID()).
		Str("command", sched.Command().Name()).
		Time("time", at).
		Msg("Firing schedule")

	if err := s.submit.Submit(ctx, sched.Command()); err != nil {
		log.Warn().Err(err).Str("schedule_id", sched.ID()).Msg("Failed to submit scheduled command")
	}
}

// FormatDay returns a human-readable list of the occurrences on one day.
func (s *Scheduler) FormatDay(day time.Time) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.schedules) == 0 {
		return "No schedules"
	}

	type entry struct {
		id, when, command string
		at                time.Time
	}

	dayInTz := day.In(s.tz)
	startOfDay := time.Date(dayInTz.Year(), dayInTz.Month(), dayInTz.Day(), 0, 0, 0, 0, s.tz)
	endOfDay := startOfDay.AddDate(0, 0, 1)

	var entries []entry
	for _, sched := range s.schedules {
		cursor := startOfDay.Add(-time.Second)
		for {
			t := sched.Next(cursor)
			if !t.Before(endOfDay) {
				break
			}
			entries = append(entries, entry{id: sched.ID(), when: sched.Describe(), command: sched.Command().Name(), at: t})
			cursor = t
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].at.Equal(entries[j].at) {
			return entries[i].id < entries[j].id
		}
		return entries[i].at.Before(entries[j].at)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Schedule for %s (timezone: %s)\n", dayInTz.Format("2006-01-02"), s.tz.String()))
	sb.WriteString(fmt.Sprintf("%-20s %-20s %-10s %s\n", "ID", "WHEN", "TIME", "COMMAND"))
	sb.WriteString(strings.Repeat("-", 64) + "\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%-20s %-20s %-10s %s\n", e.id, e.when, e.at.In(s.tz).Format("15:04:05"), e.command))
	}
	if len(entries) == 0 {
		sb.WriteString("No occurrences for this day\n")
	}

	return sb.String()
}
