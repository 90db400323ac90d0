package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/config"
	"github.com/dokzlo13/huemotion/internal/repl"
	"github.com/dokzlo13/huemotion/internal/schedule"
)

// buildScheduler parses configured schedules. Commands use the interactive
// command syntax and are stamped with source "schedule:<id>".
func buildScheduler(cfgs []config.ScheduleConfig, submit schedule.Submitter, tz *time.Location) (*schedule.Scheduler, error) {
	sched := schedule.New(submit, tz)

	for _, sc := range cfgs {
		cmd, err := repl.Parse(sc.Command, "schedule:"+sc.ID)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", sc.ID, err)
		}

		var s schedule.Schedule
		if sc.At != "" {
			s, err = schedule.NewDaily(sc.ID, sc.At, tz, cmd)
		} else {
			s, err = schedule.NewPeriodic(sc.ID, sc.Every.Duration(), time.Now(), cmd)
		}
		if err != nil {
			return nil, err
		}

		sched.Register(s)
		log.Debug().Str("id", sc.ID).Str("when", s.Describe()).Str("command", sc.Command).Msg("Schedule registered")
	}

	return sched, nil
}
