// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/aegis-c9/aegis/lib/clock"
	"github.com/aegis-c9/aegis/lib/feed"
	"github.com/aegis-c9/aegis/lib/matchstate"
	"github.com/aegis-c9/aegis/lib/schema/match"
	"github.com/aegis-c9/aegis/lib/testutil"
)

const testTimeout = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 20, 15, 0, 0, time.UTC)

// transitionRecorder collects state transitions reported through
// Config.OnStateChange.
type transitionRecorder struct {
	mu          sync.Mutex
	transitions []ConnectionState
	changes     chan ConnectionState
}

func newTransitionRecorder() *transitionRecorder {
	return &transitionRecorder{changes: make(chan ConnectionState, 256)}
}

func (r *transitionRecorder) observe(_, to ConnectionState) {
	r.mu.Lock()
	r.transitions = append(r.transitions, to)
	r.mu.Unlock()
	r.changes <- to
}

// waitFor consumes transitions until want arrives.
func (r *transitionRecorder) waitFor(t *testing.T, want ConnectionState) {
	t.Helper()
	for {
		got := testutil.RequireReceive(t, r.changes, testTimeout, "waiting for state %s", want)
		if got == want {
			return
		}
	}
}

func (r *transitionRecorder) states() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.transitions)
}

type harness struct {
	session  *Session
	clock    *clock.FakeClock
	recorder *transitionRecorder
}

func newHarness(t *testing.T, baseURL string) *harness {
	t.Helper()
	return newHarnessWithLogger(t, baseURL, slog.New(slog.DiscardHandler))
}

func newHarnessWithLogger(t *testing.T, baseURL string, logger *slog.Logger) *harness {
	t.Helper()
	fakeClock := clock.Fake(epoch)
	recorder := newTransitionRecorder()
	session, err := NewSession(Config{
		BaseURL:       baseURL,
		Roster:        matchstate.DefaultRoster(),
		Clock:         fakeClock,
		Logger:        logger,
		OnStateChange: recorder.observe,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return &harness{session: session, clock: fakeClock, recorder: recorder}
}

// start runs the session in a goroutine. The returned channel yields
// Run's result.
func (h *harness) start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- h.session.Run(ctx) }()
	return done
}

func flush(w http.ResponseWriter) {
	w.(http.Flusher).Flush()
}

const highUtilityLine = `{"predictions": [{"name": "Zven", "high_assist_probability": 0.95, "recommendation": "Flank bot"}, {"name": "Blaber", "high_assist_probability": 0.2, "recommendation": "Reset"}]}`

func TestSessionStreamsUntilEnd(t *testing.T) {
	var requests atomic.Int32
	var mu sync.Mutex
	var seenPath, seenAccept, seenEncoding string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mu.Lock()
		seenPath, seenAccept, seenEncoding = r.URL.Path, r.Header.Get("Accept"), r.Header.Get("Accept-Encoding")
		mu.Unlock()

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, "{\"win_prob\": 60.5}\n\ngarbage\n"+highUtilityLine)
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	err := testutil.RequireReceive(t, h.start(context.Background()), testTimeout, "session exit")
	if err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1 (no reconnect after a clean end)", got)
	}
	mu.Lock()
	if seenPath != "/stream-telemetry" || seenAccept != "application/x-ndjson" || seenEncoding != feed.AcceptEncoding {
		t.Errorf("request = %s accept=%q encoding=%q", seenPath, seenAccept, seenEncoding)
	}
	mu.Unlock()

	want := []ConnectionState{StateConnecting, StateStreaming, StateClosed}
	if got := h.recorder.states(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if h.clock.PendingCount() != 0 {
		t.Errorf("a retry timer is pending after a clean end")
	}

	snapshot := h.session.Snapshot()
	if snapshot.State != StateClosed {
		t.Errorf("State = %s, want closed", snapshot.State)
	}
	if snapshot.Game.WinProbability != 60.5 {
		t.Errorf("WinProbability = %v, want 60.5", snapshot.Game.WinProbability)
	}
	if snapshot.Players[0].Impact != 95 || snapshot.Players[0].Status != match.StatusOptimal {
		t.Errorf("player 0 = %+v", snapshot.Players[0])
	}
	if snapshot.Players[1].Impact != 20 || snapshot.Players[1].Status != match.StatusCritical {
		t.Errorf("player 1 = %+v", snapshot.Players[1])
	}
	if len(snapshot.Game.Anomalies) != 1 || snapshot.Game.Anomalies[0].Timestamp != "20:15:00" {
		t.Errorf("anomalies = %+v", snapshot.Game.Anomalies)
	}
	// The final record had no trailing newline and was still folded.
	if string(snapshot.Telemetry) != highUtilityLine {
		t.Errorf("Telemetry = %s, want the last record", snapshot.Telemetry)
	}
	wantStats := Stats{Connections: 1, Samples: 2, DecodeFailures: 1, Anomalies: 1}
	if snapshot.Stats != wantStats {
		t.Errorf("Stats = %+v, want %+v", snapshot.Stats, wantStats)
	}

	select {
	case <-h.session.Updates():
	default:
		t.Error("Updates was not signalled")
	}
}

func TestSessionDecodesCompressedStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Encoding", "gzip")
		writer := gzip.NewWriter(w)
		fmt.Fprintln(writer, `{"win_prob": 44}`)
		writer.Close()
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	if err := testutil.RequireReceive(t, h.start(context.Background()), testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := h.session.Snapshot().Game.WinProbability; got != 44 {
		t.Fatalf("WinProbability = %v, want 44", got)
	}
}

// Samples must be folded as the server flushes them, not when the
// response ends, for every coding the session advertises.
func TestSessionFoldsFlushedRecordsWhileStreamOpen(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		wrap     func(t *testing.T, w io.Writer) (io.Writer, func() error)
	}{
		{"identity", "", func(t *testing.T, w io.Writer) (io.Writer, func() error) {
			return w, func() error { return nil }
		}},
		{"gzip", "gzip", func(t *testing.T, w io.Writer) (io.Writer, func() error) {
			writer := gzip.NewWriter(w)
			return writer, writer.Flush
		}},
		{"zstd", "zstd", func(t *testing.T, w io.Writer) (io.Writer, func() error) {
			encoder, err := zstd.NewWriter(w)
			if err != nil {
				t.Errorf("zstd.NewWriter: %v", err)
				return w, func() error { return nil }
			}
			return encoder, encoder.Flush
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/x-ndjson")
				if test.encoding != "" {
					w.Header().Set("Content-Encoding", test.encoding)
				}
				writer, flushEncoder := test.wrap(t, w)
				fmt.Fprintln(writer, `{"win_prob": 67}`)
				flushEncoder()
				flush(w)
				<-r.Context().Done()
			}))
			defer server.Close()

			h := newHarness(t, server.URL)
			ctx, cancel := context.WithCancel(context.Background())
			done := h.start(ctx)

			h.recorder.waitFor(t, StateStreaming)
			for h.session.Snapshot().Stats.Samples == 0 {
				testutil.RequireReceive(t, h.session.Updates(), testTimeout,
					"%s record was flushed but not folded while the stream is open", test.name)
			}
			if got := h.session.Snapshot().Game.WinProbability; got != 67 {
				t.Errorf("WinProbability = %v, want 67", got)
			}

			cancel()
			if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
				t.Fatalf("Run = %v", err)
			}
		})
	}
}

func TestSessionNoBodyEndsWithoutRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	if err := testutil.RequireReceive(t, h.start(context.Background()), testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
	want := []ConnectionState{StateConnecting, StateClosed}
	if got := h.recorder.states(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if h.clock.PendingCount() != 0 {
		t.Error("a retry timer is pending after a body-less response")
	}

	// A session runs once.
	if err := h.session.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run = %v, want ErrAlreadyStarted", err)
	}
}

func TestSessionRetriesAfterFixedDelay(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "model warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.recorder.waitFor(t, StateRetrying)
	h.clock.WaitForTimers(1)

	h.clock.Advance(4 * time.Second)
	if h.clock.PendingCount() != 1 || requests.Load() != 1 {
		t.Fatalf("reconnected before the retry delay elapsed (requests=%d)", requests.Load())
	}

	h.clock.Advance(time.Second)
	h.recorder.waitFor(t, StateConnecting)
	h.recorder.waitFor(t, StateRetrying)
	if got := requests.Load(); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
	if got := h.session.Snapshot().Stats.Connections; got != 2 {
		t.Errorf("Stats.Connections = %d, want 2", got)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

func TestSessionUnsupportedEncodingRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		fmt.Fprint(w, "compressed bytes")
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.recorder.waitFor(t, StateRetrying)
	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if slices.Contains(h.recorder.states(), StateStreaming) {
		t.Error("session streamed a body it could not decode")
	}
}

// Cancelling while a retry is pending must stop the session without
// ever connecting again, even once the delay has passed.
func TestSessionCancelDuringRetrySuppressesReconnect(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.recorder.waitFor(t, StateRetrying)
	h.clock.WaitForTimers(1)

	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v, want nil for cancellation", err)
	}

	h.clock.Advance(time.Minute)

	if got := requests.Load(); got != 1 {
		t.Errorf("requests = %d, want 1", got)
	}
	want := []ConnectionState{StateConnecting, StateRetrying, StateClosed}
	if got := h.recorder.states(); !slices.Equal(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if h.session.State() != StateClosed {
		t.Errorf("State = %s, want closed", h.session.State())
	}
}

// A transport failure mid-stream must keep the derived state through
// the retry and the new connection.
func TestSessionReconnectPreservesState(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		if requests.Add(1) == 1 {
			fmt.Fprintln(w, `{"win_prob": 71.5}`)
			fmt.Fprintln(w, highUtilityLine)
			flush(w)
			// Drop the connection mid-response.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("Hijack: %v", err)
				return
			}
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
		flush(w)
		<-r.Context().Done()
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.recorder.waitFor(t, StateRetrying)
	before := h.session.Snapshot()
	if before.Game.WinProbability != 71.5 || before.Players[0].Status != match.StatusOptimal || len(before.Game.Anomalies) != 1 {
		t.Fatalf("state did not diverge from defaults before the failure: %+v", before)
	}

	h.clock.WaitForTimers(1)
	h.clock.Advance(DefaultRetryDelay)
	h.recorder.waitFor(t, StateStreaming)

	after := h.session.Snapshot()
	if !reflect.DeepEqual(after.Game, before.Game) {
		t.Errorf("game after reconnect = %+v, want %+v", after.Game, before.Game)
	}
	if !reflect.DeepEqual(after.Players, before.Players) {
		t.Errorf("players after reconnect = %+v, want %+v", after.Players, before.Players)
	}
	if !bytes.Equal(after.Telemetry, before.Telemetry) {
		t.Errorf("telemetry after reconnect = %s, want %s", after.Telemetry, before.Telemetry)
	}
	if after.Stats.Connections != 2 {
		t.Errorf("Stats.Connections = %d, want 2", after.Stats.Connections)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

// A record cut off by a connection failure is dropped, not decoded,
// and the drop is reported.
func TestSessionDiscardsPartialRecordOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, "{\"win_prob\": 71.5}\n{\"win_prob\": 9")
		flush(w)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	var logs bytes.Buffer
	h := newHarnessWithLogger(t, server.URL, slog.New(slog.NewJSONHandler(&logs, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.recorder.waitFor(t, StateRetrying)
	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}

	snapshot := h.session.Snapshot()
	if snapshot.Game.WinProbability != 71.5 {
		t.Errorf("WinProbability = %v, want 71.5 from the complete record", snapshot.Game.WinProbability)
	}
	if snapshot.Stats.Samples != 1 || snapshot.Stats.DecodeFailures != 0 {
		t.Errorf("Stats = %+v, want one sample and no decode failures", snapshot.Stats)
	}
	if !strings.Contains(logs.String(), `"pending_bytes":14`) {
		t.Errorf("partial record drop not logged: %s", logs.String())
	}
}

func TestSessionCancelWhileStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"win_prob": 52}`)
		flush(w)
		<-r.Context().Done()
	}))
	defer server.Close()

	h := newHarness(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(ctx)

	h.recorder.waitFor(t, StateStreaming)
	for h.session.Snapshot().Stats.Samples == 0 {
		testutil.RequireReceive(t, h.session.Updates(), testTimeout, "waiting for the first sample")
	}

	cancel()
	if err := testutil.RequireReceive(t, done, testTimeout, "session exit"); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if slices.Contains(h.recorder.states(), StateRetrying) {
		t.Errorf("cancellation triggered a retry: %v", h.recorder.states())
	}
	if h.clock.PendingCount() != 0 {
		t.Error("a retry timer is pending after cancellation")
	}
	if got := h.session.Snapshot().Game.WinProbability; got != 52 {
		t.Errorf("WinProbability = %v, want 52", got)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	h := newHarness(t, "http://localhost:8000")

	first := h.session.Snapshot()
	if first.State != StateIdle || first.Game.WinProbability != 50 || first.Game.Tempo != 50 {
		t.Fatalf("initial snapshot = %+v", first)
	}
	if first.Telemetry != nil || len(first.Game.Anomalies) != 0 || len(first.Players) != 5 {
		t.Fatalf("initial snapshot = %+v", first)
	}
	if first.SessionID == "" || first.SessionID != h.session.ID() {
		t.Errorf("SessionID = %q, want %q", first.SessionID, h.session.ID())
	}

	first.Players[0].Name = "mutated"
	first.Game.Anomalies = append(first.Game.Anomalies, match.Anomaly{ID: "x"})

	second := h.session.Snapshot()
	if second.Players[0].Name != "Zven" || len(second.Game.Anomalies) != 0 {
		t.Errorf("mutating a snapshot leaked into the session: %+v", second)
	}
	if h.session.Endpoint() != "http://localhost:8000/stream-telemetry" {
		t.Errorf("Endpoint() = %q", h.session.Endpoint())
	}
}

func TestNewSessionValidation(t *testing.T) {
	roster := matchstate.DefaultRoster()
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"missing base url", Config{Roster: roster}, "BaseURL is required"},
		{"bad scheme", Config{BaseURL: "ws://localhost:8000", Roster: roster}, "scheme"},
		{"empty roster", Config{BaseURL: "http://localhost:8000"}, "roster is empty"},
		{"negative delay", Config{BaseURL: "http://localhost:8000", Roster: roster, RetryDelay: -time.Second}, "negative RetryDelay"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewSession(test.config)
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("NewSession = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestConnectionStateString(t *testing.T) {
	for state, want := range map[ConnectionState]string{
		StateIdle:           "idle",
		StateConnecting:     "connecting",
		StateStreaming:      "streaming",
		StateRetrying:       "retrying",
		StateClosed:         "closed",
		ConnectionState(42): "ConnectionState(42)",
	} {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{StatusCode: 503, Status: "503 Service Unavailable", Body: "warming up"}
	if got := err.Error(); got != "stream request failed: 503 Service Unavailable: warming up" {
		t.Errorf("Error() = %q", got)
	}
	err.Body = ""
	if got := err.Error(); got != "stream request failed: 503 Service Unavailable" {
		t.Errorf("Error() = %q", got)
	}
}
