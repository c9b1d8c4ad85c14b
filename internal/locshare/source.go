package locshare

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
)

// Source produces device location fixes until ctx is cancelled. The
// returned channel is closed when the subscription ends.
type Source interface {
	Watch(ctx context.Context) (<-chan domain.Fix, error)
}

// ChannelSource is fed by the gateway with fixes posted from the shell.
// Only one subscription is live at a time.
type ChannelSource struct {
	mu     sync.Mutex
	sub    chan domain.Fix
	buffer int
}

func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{buffer: buffer}
}

func (c *ChannelSource) Watch(ctx context.Context) (<-chan domain.Fix, error) {
	ch := make(chan domain.Fix, c.buffer)

	c.mu.Lock()
	c.sub = ch
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if c.sub == ch {
			c.sub = nil
		}
		close(ch)
		c.mu.Unlock()
	}()
	return ch, nil
}

// Push hands a fix to the live subscription. It returns false when nobody
// is subscribed or the buffer is full.
func (c *ChannelSource) Push(f domain.Fix) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		return false
	}
	select {
	case c.sub <- f:
		return true
	default:
		return false
	}
}

// Subscribed reports whether a sharer is currently listening.
func (c *ChannelSource) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// ReplaySource replays a recorded track, one JSON fix per line, looping
// at a fixed interval.
type ReplaySource struct {
	path   string
	every  time.Duration
	logger *slog.Logger
}

func NewReplaySource(path string, every time.Duration, logger *slog.Logger) *ReplaySource {
	return &ReplaySource{path: path, every: every, logger: logger.With("component", "replay_source")}
}

var ErrEmptyTrack = errors.New("replay track has no valid fixes")

func (r *ReplaySource) Watch(ctx context.Context) (<-chan domain.Fix, error) {
	track, err := r.load()
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.Fix)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(r.every)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(track) {
			fix := track[i]
			fix.Timestamp = time.Now().UTC()
			select {
			case <-ctx.Done():
				return
			case ch <- fix:
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch, nil
}

func (r *ReplaySource) load() ([]domain.Fix, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open replay track: %w", err)
	}
	defer f.Close()

	var track []domain.Fix
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var fix domain.Fix
		if err := json.Unmarshal([]byte(text), &fix); err != nil {
			r.logger.Warn("skipping malformed fix", "line", line, "error", err)
			continue
		}
		if !geo.ValidCoordinate(fix.Lat, fix.Lng) {
			r.logger.Warn("skipping invalid fix", "line", line)
			continue
		}
		track = append(track, fix)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replay track: %w", err)
	}
	if len(track) == 0 {
		return nil, ErrEmptyTrack
	}
	return track, nil
}

var ErrInvalidState = errors.New("invalid app state")

// StateFeed carries app foreground/background transitions to the sharer.
// When the reader lags, the newest state replaces the pending one. The last
// state is kept so a sharer started later begins from it.
type StateFeed struct {
	mu   sync.Mutex
	ch   chan domain.AppState
	last domain.AppState
}

func NewStateFeed() *StateFeed {
	return &StateFeed{ch: make(chan domain.AppState, 1), last: domain.AppStateActive}
}

func (f *StateFeed) C() <-chan domain.AppState { return f.ch }

// Last returns the most recent state set, active if none was.
func (f *StateFeed) Last() domain.AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *StateFeed) Set(st domain.AppState) error {
	if !st.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, st)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = st
	for {
		select {
		case f.ch <- st:
			return nil
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}
