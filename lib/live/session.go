// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-c9/aegis/lib/clock"
	"github.com/aegis-c9/aegis/lib/feed"
	"github.com/aegis-c9/aegis/lib/matchstate"
	"github.com/aegis-c9/aegis/lib/schema/match"
)

const (
	// StreamPath is the stream endpoint, relative to the base URL.
	StreamPath = "stream-telemetry"

	// DefaultRetryDelay is the wait between a failure and the next
	// connection attempt.
	DefaultRetryDelay = 5 * time.Second

	// readBufferSize bounds a single read from the response body.
	readBufferSize = 32 * 1024

	// maxErrorBody bounds how much of a non-2xx body is kept.
	maxErrorBody = 4 * 1024
)

// Config controls a [Session].
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8000".
	// Required.
	BaseURL string

	// Roster is the session's players, in the order the feed's
	// predictions are aligned to. Required.
	Roster []match.PlayerData

	// HTTPClient issues the stream request. It must not set a
	// Timeout: that would cut off the long-lived response. Nil uses a
	// fresh client with the default transport.
	HTTPClient *http.Client

	// RetryDelay is the fixed delay before reconnecting. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration

	// Clock stamps anomalies and times the retry delay. Nil means
	// clock.Real().
	Clock clock.Clock

	// Logger receives session diagnostics. Nil means slog.Default().
	Logger *slog.Logger

	// OnStateChange, if set, is called from the Run goroutine after
	// every connection state transition. It must not block.
	OnStateChange func(from, to ConnectionState)
}

// Session is one telemetry session: a single stream connection
// (re-established after failures) and the match state derived from
// it.
type Session struct {
	id            string
	endpoint      string
	httpClient    *http.Client
	retryDelay    time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	onStateChange func(from, to ConnectionState)
	reducer       *matchstate.Reducer
	started       atomic.Bool

	// Owned by the Run goroutine. The reducer never mutates its
	// inputs, so these may share storage with the published snapshot.
	game    match.GameState
	players []match.PlayerData

	mu       sync.Mutex
	snapshot Snapshot
	updates  chan struct{}
}

// NewSession validates config and returns a session in StateIdle,
// with the roster at its starting values and a neutral game state.
func NewSession(config Config) (*Session, error) {
	if config.BaseURL == "" {
		return nil, errors.New("live: BaseURL is required")
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("live: parsing BaseURL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("live: BaseURL scheme must be http or https, got %q", base.Scheme)
	}
	if err := matchstate.ValidateRoster(config.Roster); err != nil {
		return nil, fmt.Errorf("live: %w", err)
	}
	if config.RetryDelay < 0 {
		return nil, fmt.Errorf("live: negative RetryDelay %s", config.RetryDelay)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	retryDelay := config.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	game := match.NewGameState()
	players := slices.Clone(config.Roster)

	return &Session{
		id:            id,
		endpoint:      base.JoinPath(StreamPath).String(),
		httpClient:    httpClient,
		retryDelay:    retryDelay,
		clock:         clk,
		logger:        logger.With("session_id", id),
		onStateChange: config.OnStateChange,
		reducer:       matchstate.NewReducer(clk),
		game:          game,
		players:       players,
		snapshot: Snapshot{
			SessionID: id,
			State:     StateIdle,
			Game:      game,
			Players:   players,
		},
		updates: make(chan struct{}, 1),
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Endpoint returns the stream URL.
func (s *Session) Endpoint() string { return s.endpoint }

// Snapshot returns a copy of the current published state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.clone()
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.State
}

// Updates returns a channel that is signalled (at most one pending
// signal) whenever the snapshot changes.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Run drives the session until the stream ends cleanly, the server
// answers with no body, or ctx is cancelled. Transport failures are
// retried indefinitely after the fixed delay and never returned. Run
// returns nil in every one of those cases; the only error is
// ErrAlreadyStarted.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer s.transition(StateClosed)

	s.logger.Info("telemetry session starting",
		"endpoint", s.endpoint,
		"roster_size", len(s.players),
		"retry_delay", s.retryDelay,
	)

	for attempt := 1; ; attempt++ {
		s.transition(StateConnecting)
		err := s.connect(ctx, attempt)
		if ctx.Err() != nil {
			s.logger.Info("telemetry session cancelled")
			return nil
		}
		if err == nil {
			return nil
		}

		s.transition(StateRetrying)
		s.logger.Warn("telemetry stream failed, will reconnect",
			"error", err,
			"attempt", attempt,
			"delay", s.retryDelay,
		)
		select {
		case <-s.clock.After(s.retryDelay):
		case <-ctx.Done():
			s.logger.Info("telemetry session cancelled while waiting to reconnect")
			return nil
		}
	}
}

// connect makes one connection attempt and streams until the body
// ends. A nil return means the session is finished.
func (s *Session) connect(ctx context.Context, attempt int) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating stream request: %w", err)
	}
	request.Header.Set("Accept", "application/x-ndjson")
	// Setting Accept-Encoding ourselves turns off the transport's
	// transparent gzip; feed.NewBodyReader handles every coding.
	request.Header.Set("Accept-Encoding", feed.AcceptEncoding)

	s.updateStats(func(stats *Stats) { stats.Connections++ })
	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.endpoint, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		return &StatusError{
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if response.Body == http.NoBody || response.ContentLength == 0 {
		s.logger.Warn("telemetry stream response has no body, ending session",
			"status", response.Status,
		)
		return nil
	}

	body, err := feed.NewBodyReader(response.Header.Get("Content-Encoding"), response.Body)
	if err != nil {
		return err
	}
	defer body.Close()

	s.transition(StateStreaming)
	s.logger.Info("telemetry stream connected",
		"attempt", attempt,
		"status", response.Status,
		"content_encoding", response.Header.Get("Content-Encoding"),
	)
	return s.stream(ctx, body)
}

// stream reads body to its end, folding each complete record. It
// returns nil when the body ends cleanly.
func (s *Session) stream(ctx context.Context, body io.Reader) error {
	var framer feed.Framer
	buffer := make([]byte, readBufferSize)

	for {
		count, readErr := body.Read(buffer)
		for line := range framer.Feed(buffer[:count]) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.fold(line)
		}

		if errors.Is(readErr, io.EOF) {
			if tail, ok := framer.Flush(); ok && ctx.Err() == nil {
				s.fold(tail)
			}
			s.logger.Info("telemetry stream ended")
			return nil
		}
		if readErr != nil {
			if pending := framer.Pending(); pending > 0 && ctx.Err() == nil {
				s.logger.Warn("discarding partial telemetry record from failed connection",
					"pending_bytes", pending,
				)
			}
			return fmt.Errorf("reading stream: %w", readErr)
		}
	}
}

// fold decodes one record and applies it to the session state.
func (s *Session) fold(line string) {
	sample, err := feed.Decode(line)
	if err != nil {
		s.updateStats(func(stats *Stats) { stats.DecodeFailures++ })
		s.logger.Warn("skipping malformed telemetry record",
			"error", err,
			"length", len(line),
		)
		return
	}

	game, players, emitted := s.reducer.Reduce(s.game, s.players, sample)
	s.game, s.players = game, players

	for _, anomaly := range emitted {
		s.logger.Debug("anomaly emitted",
			"anomaly_id", anomaly.ID,
			"player", anomaly.PlayerTarget,
			"message", anomaly.Message,
		)
	}

	s.mu.Lock()
	s.snapshot.Game = game
	s.snapshot.Players = players
	s.snapshot.Telemetry = sample.Raw
	s.snapshot.Stats.Samples++
	s.snapshot.Stats.Anomalies += uint64(len(emitted))
	s.mu.Unlock()
	s.notify()
}

// transition records a state change, notifies observers, and signals
// renderers.
func (s *Session) transition(to ConnectionState) {
	s.mu.Lock()
	from := s.snapshot.State
	s.snapshot.State = to
	s.mu.Unlock()

	if from == to {
		return
	}
	s.logger.Debug("connection state changed", "from", from, "to", to)
	if s.onStateChange != nil {
		s.onStateChange(from, to)
	}
	s.notify()
}

func (s *Session) updateStats(update func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snapshot.Stats)
}

// notify signals Updates without blocking.
func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
