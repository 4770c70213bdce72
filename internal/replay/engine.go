// Package replay fetches an agent run's log lines and plays them into the
// chat stream one line per tick. The completion edge of a cycle is the sole
// trigger for profit settlement.
package replay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"conflux/internal/logger"
	"conflux/internal/pkg/clock"
	"conflux/internal/tradelog"

	"github.com/google/uuid"
)

// Snapshot is the engine's externally visible replay state.
type Snapshot struct {
	CycleID   string `json:"cycle_id"`
	Lines     int    `json:"lines"`
	Cursor    int    `json:"cursor"`
	Completed bool   `json:"completed"`
}

// Engine owns one playback loop at a time. Starting a new cycle cancels the
// previous loop before any line of the new cycle is emitted, so two loops
// never interleave.
type Engine struct {
	source    tradelog.Source
	tick      time.Duration
	clk       clock.Clock
	waitPolls int

	onLine     func(cycleID, line string)
	onComplete func(cycleID string, lines []string)

	mu        sync.Mutex
	gen       int
	cancel    context.CancelFunc
	cycleID   string
	lines     []string
	cursor    int
	completed bool
}

type Config struct {
	Source tradelog.Source
	// Tick is the fixed playback period per line.
	Tick  time.Duration
	Clock clock.Clock
	// MaxWaitPolls bounds how many ticks a cycle waits for the producer's
	// run to publish its lines before giving up.
	MaxWaitPolls int
	// OnLine receives each replayed line, strictly in fetch order.
	OnLine func(cycleID, line string)
	// OnComplete fires exactly once per cycle, after the last line.
	OnComplete func(cycleID string, lines []string)
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("replay engine requires a trade log source")
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 200 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.MaxWaitPolls <= 0 {
		// Two minutes of waiting at the default tick.
		cfg.MaxWaitPolls = 600
	}
	return &Engine{
		source:     cfg.Source,
		tick:       cfg.Tick,
		clk:        cfg.Clock,
		waitPolls:  cfg.MaxWaitPolls,
		onLine:     cfg.OnLine,
		onComplete: cfg.OnComplete,
	}, nil
}

// Snapshot returns the current replay state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		CycleID:   e.cycleID,
		Lines:     len(e.lines),
		Cursor:    e.cursor,
		Completed: e.completed,
	}
}

// StartCycle kicks the producer and begins playback. The producer runs
// asynchronously: it clears its log buffer when the run starts and publishes
// the run's lines when it finishes, so an immediate fetch usually sees an
// empty list. An empty first fetch therefore puts the cycle into a polling
// phase that re-reads the logs each tick until the run's lines arrive.
// Any previous playback loop is cancelled first and the completed flag is
// reset before the new loop can fire it, so a stale true is never observable.
func (e *Engine) StartCycle(ctx context.Context) (string, error) {
	if err := e.source.StartTrade(ctx); err != nil {
		return "", err
	}
	lines, err := e.source.FetchLogs(ctx)
	if err != nil {
		return "", err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	gen := e.gen
	e.cancel = cancel
	e.cycleID = uuid.NewString()
	e.lines = lines
	e.cursor = 0
	e.completed = false
	cycleID := e.cycleID
	e.mu.Unlock()

	if len(lines) == 0 {
		logger.Infof("replay: cycle %s started, awaiting producer run", cycleID)
	} else {
		logger.Infof("replay: cycle %s started with %d lines", cycleID, len(lines))
	}
	go e.run(loopCtx, gen, cycleID, lines)
	return cycleID, nil
}

// Stop tears the current playback loop down without completing it.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	e.mu.Unlock()
}

// run waits for the producer's lines when the initial fetch came back empty,
// then plays them.
func (e *Engine) run(ctx context.Context, gen int, cycleID string, lines []string) {
	if len(lines) == 0 {
		fetched, ok := e.awaitRun(ctx, cycleID)
		if !ok {
			return
		}
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		e.lines = fetched
		e.mu.Unlock()
		lines = fetched
		logger.Infof("replay: cycle %s received %d lines", cycleID, len(lines))
	}
	e.play(ctx, gen, cycleID, lines)
}

// awaitRun polls the producer each tick until a finished run shows up: a
// non-empty list ending in a terminal line, or one whose length held steady
// across two polls. Fetch errors are transient here; the poll budget is the
// real bound.
func (e *Engine) awaitRun(ctx context.Context, cycleID string) ([]string, bool) {
	prev := -1
	for poll := 0; poll < e.waitPolls; poll++ {
		select {
		case <-ctx.Done():
			return nil, false
		case <-e.clk.After(e.tick):
		}
		lines, err := e.source.FetchLogs(ctx)
		if err != nil {
			logger.Warnf("replay: cycle %s log poll failed: %v", cycleID, err)
			continue
		}
		if len(lines) == 0 {
			prev = -1
			continue
		}
		if terminalLine(lines[len(lines)-1]) || len(lines) == prev {
			return lines, true
		}
		prev = len(lines)
	}
	logger.Errorf("replay: cycle %s abandoned, producer never delivered a run", cycleID)
	return nil, false
}

// terminalLine reports whether line can only be the last line of a run.
func terminalLine(line string) bool {
	return strings.HasPrefix(line, "Return on Investment:") ||
		strings.HasPrefix(line, "Total profit:") ||
		strings.HasPrefix(line, "Error:")
}

func (e *Engine) play(ctx context.Context, gen int, cycleID string, lines []string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.clk.After(e.tick):
		}

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		if e.cursor < len(lines) {
			line := lines[e.cursor]
			e.cursor++
			e.mu.Unlock()
			if e.onLine != nil {
				e.onLine(cycleID, line)
			}
			continue
		}
		e.completed = true
		e.cancel = nil
		e.mu.Unlock()

		logger.Infof("replay: cycle %s completed (%d lines)", cycleID, len(lines))
		if e.onComplete != nil {
			e.onComplete(cycleID, lines)
		}
		return
	}
}
