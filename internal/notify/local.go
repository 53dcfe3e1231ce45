package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Local is an in-process Notifier backed by a cron engine for repeating
// triggers and one-shot timers for snoozes. It stands in for the OS
// scheduled-alert API and owns the process-wide schedule table.
type Local struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu       sync.RWMutex
	granted  bool
	entries  map[Handle]*localEntry
	fireFn   FireFunc
	actionFn ActionFunc
}

type localEntry struct {
	scheduled Scheduled
	cronID    cron.EntryID
	timer     *time.Timer
}

// NewLocal creates a Local notifier firing in loc. Permission starts granted;
// SetPermission mirrors the OS grant state.
func NewLocal(loc *time.Location, logger *zap.Logger) *Local {
	c := cron.New(cron.WithLocation(loc))
	c.Start()
	return &Local{
		cron:    c,
		logger:  logger,
		granted: true,
		entries: make(map[Handle]*localEntry),
	}
}

// SetPermission records the OS permission grant state.
func (l *Local) SetPermission(granted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.granted = granted
}

func (l *Local) Permission() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.granted
}

func (l *Local) OnFire(fn FireFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fireFn = fn
}

func (l *Local) OnAction(fn ActionFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actionFn = fn
}

func (l *Local) ScheduleDaily(hour, minute int, p Payload) (Handle, error) {
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	return l.addRepeating(spec, Scheduled{
		Payload: p,
		Repeat:  RepeatDaily,
		Hour:    hour,
		Minute:  minute,
	})
}

func (l *Local) ScheduleWeekly(weekday time.Weekday, hour, minute int, p Payload) (Handle, error) {
	spec := fmt.Sprintf("%d %d * * %d", minute, hour, int(weekday))
	return l.addRepeating(spec, Scheduled{
		Payload: p,
		Repeat:  RepeatWeekly,
		Hour:    hour,
		Minute:  minute,
		Weekday: weekday,
	})
}

func (l *Local) addRepeating(spec string, sched Scheduled) (Handle, error) {
	handle := Handle(uuid.NewString())
	sched.Handle = handle

	id, err := l.cron.AddFunc(spec, func() {
		l.fire(sched.Payload)
	})
	if err != nil {
		return "", fmt.Errorf("invalid trigger spec %q: %w", spec, err)
	}

	l.mu.Lock()
	l.entries[handle] = &localEntry{scheduled: sched, cronID: id}
	l.mu.Unlock()

	l.logger.Debug("Trigger installed",
		zap.String("handle", string(handle)),
		zap.String("spec", spec),
		zap.String("medication_id", sched.Payload.MedicationID),
	)
	return handle, nil
}

func (l *Local) ScheduleOneShot(delay time.Duration, p Payload) (Handle, error) {
	if delay <= 0 {
		return "", fmt.Errorf("one-shot delay must be positive, got %s", delay)
	}

	handle := Handle(uuid.NewString())
	sched := Scheduled{
		Handle:  handle,
		Payload: p,
		Repeat:  RepeatOneShot,
		FiresAt: time.Now().Add(delay),
	}

	timer := time.AfterFunc(delay, func() {
		l.mu.Lock()
		delete(l.entries, handle)
		l.mu.Unlock()
		l.fire(p)
	})

	l.mu.Lock()
	l.entries[handle] = &localEntry{scheduled: sched, timer: timer}
	l.mu.Unlock()

	return handle, nil
}

func (l *Local) Cancel(h Handle) error {
	l.mu.Lock()
	entry, ok := l.entries[h]
	if ok {
		delete(l.entries, h)
	}
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown handle %s", h)
	}
	if entry.timer != nil {
		entry.timer.Stop()
	} else {
		l.cron.Remove(entry.cronID)
	}
	return nil
}

func (l *Local) List() []Scheduled {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Scheduled, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry.scheduled)
	}
	return out
}

// EmitAction delivers a user response to the registered action callback. The
// platform invokes this from its notification-response hook.
func (l *Local) EmitAction(action Action, p Payload) {
	l.mu.RLock()
	fn := l.actionFn
	l.mu.RUnlock()

	if fn != nil {
		fn(action, p)
	}
}

func (l *Local) fire(p Payload) {
	l.mu.RLock()
	fn := l.fireFn
	l.mu.RUnlock()

	if fn != nil {
		fn(p)
	}
}

// Stop halts the cron engine and stops pending one-shots.
func (l *Local) Stop() {
	l.cron.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	for h, entry := range l.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(l.entries, h)
	}
}
