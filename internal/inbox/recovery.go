package inbox

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Stage is one step of a recovery run.
type Stage int

const (
	StageCollapseOverlay Stage = iota
	StageOpenControls
	StageSelectRefresh
	StageReturnFromRequests
	StageSettle
	stageCount
)

var stageNames = [...]string{
	StageCollapseOverlay:    "collapse_overlay",
	StageOpenControls:       "open_controls",
	StageSelectRefresh:      "select_refresh",
	StageReturnFromRequests: "return_from_requests",
	StageSettle:             "settle",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Recovery forces the conversation list to re-render. The list sometimes
// stops reflowing on new messages until an unrelated interaction happens;
// switching the list filter back and forth is that interaction.
type Recovery struct {
	page    Page
	sel     Selectors
	timings Timings
	lock    *TypingLock
	logger  zerolog.Logger

	running atomic.Bool
}

func NewRecovery(page Page, sel Selectors, t Timings, lock *TypingLock, logger zerolog.Logger) *Recovery {
	return &Recovery{page: page, sel: sel, timings: t, lock: lock, logger: logger}
}

// Delay is the wait before a stage runs.
func (r *Recovery) Delay(s Stage) time.Duration {
	switch s {
	case StageCollapseOverlay:
		return 0
	case StageSettle:
		return r.timings.RecoverySettle
	default:
		return r.timings.StageDelay
	}
}

// Step performs the UI action of a single stage.
func (r *Recovery) Step(ctx context.Context, s Stage) error {
	switch s {
	case StageCollapseOverlay:
		minimized, err := r.page.Exists(ctx, r.sel.OverlayMinimized)
		if err != nil || !minimized {
			return err
		}
		return r.page.Click(ctx, r.sel.OverlayHeader, 0)
	case StageOpenControls:
		return r.page.Click(ctx, r.sel.OverlayControls, 0)
	case StageSelectRefresh:
		return r.page.Click(ctx, r.sel.DropdownItem, r.sel.RefreshOption)
	case StageReturnFromRequests:
		inRequests, err := r.page.Exists(ctx, r.sel.RequestsBack)
		if err != nil || !inRequests {
			return err
		}
		return r.page.Click(ctx, r.sel.RequestsBack, 0)
	case StageSettle:
		return nil
	default:
		return fmt.Errorf("unknown recovery stage %d", int(s))
	}
}

// Run drives the stages in order. It reports finished=false without touching
// the lock when a reply cycle holds the lock at any stage, when another run
// is already in flight, or when a stage fails.
func (r *Recovery) Run(ctx context.Context) (bool, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Debug().Msg("recovery already running")
		return false, nil
	}
	defer r.running.Store(false)

	for s := StageCollapseOverlay; s < stageCount; s++ {
		if err := sleep(ctx, r.Delay(s)); err != nil {
			return false, err
		}
		if r.lock.Held() {
			r.logger.Debug().Stringer("stage", s).Msg("reply in progress, recovery abandoned")
			return false, nil
		}
		if err := r.Step(ctx, s); err != nil {
			return false, fmt.Errorf("recovery %s: %w", s, err)
		}
	}
	return true, nil
}
