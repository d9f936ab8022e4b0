/*
refresher.go - Automated calendar refresh

PURPOSE:
  Periodically re-materializes a rolling window of run dates for every
  schedule, so the cached calendar stays current as rules change and time
  advances. Manual materialization through the API stays available; this
  only keeps the cache from going stale between manual runs.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Re-materializes [today, today+WindowDays] per schedule
  - Skips schedules without an active version or rule instead of failing
    the whole sweep

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 hour)
  - WindowDays: How far ahead to materialize (default: 90)

USAGE:
  refresher := NewCalendarRefresher(store, materializer, log)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: Materialize endpoint (manual refresh)
  - engine/materialize.go: MaterializationService
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/schedule-guard/engine"
)

// CalendarRefresher keeps the materialized calendars warm.
type CalendarRefresher struct {
	Store         engine.ScheduleStore
	Materializer  *engine.MaterializationService
	CheckInterval time.Duration
	WindowDays    int

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCalendarRefresher creates a refresher with default interval and window.
func NewCalendarRefresher(store engine.ScheduleStore, materializer *engine.MaterializationService, log zerolog.Logger) *CalendarRefresher {
	return &CalendarRefresher{
		Store:         store,
		Materializer:  materializer,
		CheckInterval: time.Hour,
		WindowDays:    90,
		log:           log,
	}
}

// Start launches the background refresh loop. Calling Start twice is a no-op.
func (s *CalendarRefresher) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		// One sweep at startup, then on every tick.
		s.refreshAll()
		for {
			select {
			case <-s.ticker.C:
				s.refreshAll()
			case <-s.stop:
				return
			}
		}
	}()

	s.log.Info().
		Dur("interval", s.CheckInterval).
		Int("window_days", s.WindowDays).
		Msg("calendar refresher started")
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *CalendarRefresher) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
}

func (s *CalendarRefresher) refreshAll() {
	ctx := context.Background()

	schedules, err := s.Store.ListSchedules(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("refresh sweep: listing schedules failed")
		return
	}

	from := engine.Today()
	to := from.AddDays(s.WindowDays)

	for _, schedule := range schedules {
		if !schedule.Active {
			continue
		}
		dates, err := s.Materializer.MaterializeCalendar(ctx, schedule.ID, from, to)
		if err != nil {
			// A half-configured schedule shouldn't poison the sweep.
			if engine.IsNotFound(err) {
				s.log.Debug().
					Stringer("schedule_id", schedule.ID).
					Err(err).
					Msg("refresh skipped")
				continue
			}
			s.log.Error().
				Stringer("schedule_id", schedule.ID).
				Err(err).
				Msg("refresh failed")
			continue
		}
		s.log.Debug().
			Stringer("schedule_id", schedule.ID).
			Int("dates", len(dates)).
			Msg("calendar refreshed")
	}
}
