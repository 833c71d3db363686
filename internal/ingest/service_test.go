package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/ingest"
	"github.com/couchcryptid/soil-telemetry-service/internal/observability"
	"github.com/couchcryptid/soil-telemetry-service/internal/store"
	"github.com/couchcryptid/soil-telemetry-service/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validLine = "Fósforo:1 | Potássio:0 | Umidade:37.20 | pH (sim):6.32 | Relé:LIGADO"

// --- mocks ---

type sourceEvent struct {
	line string
	err  error
}

// mockSource replays scripted events, then times out like a quiet stream.
type mockSource struct {
	mu     sync.Mutex
	events []sourceEvent
	closed bool
}

func (m *mockSource) ReadLine() (string, error) {
	m.mu.Lock()
	if len(m.events) == 0 {
		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return "", transport.ErrReadTimeout
	}
	ev := m.events[0]
	m.events = m.events[1:]
	m.mu.Unlock()
	return ev.line, ev.err
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockStore struct {
	mu       sync.Mutex
	inserted []store.SoilReading
	err      error
}

func (m *mockStore) InsertReading(_ context.Context, r *store.SoilReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r.ID = int64(len(m.inserted) + 1)
	m.inserted = append(m.inserted, *r)
	return nil
}

func (m *mockStore) rows() []store.SoilReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.SoilReading(nil), m.inserted...)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []store.SoilReading
	err       error
}

func (m *mockPublisher) PublishReading(_ context.Context, r store.SoilReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, r)
	return nil
}

func newService(src *mockSource, st *mockStore, pub ingest.Publisher) *ingest.Service {
	open := func() (ingest.LineSource, error) { return src, nil }
	return ingest.New(open, st, pub, slog.Default(), observability.NewMetricsForTesting(), 1, 1)
}

func runFor(t *testing.T, svc *ingest.Service, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return svc.Run(ctx)
}

// --- tests ---

func TestRun_AcceptsValidLine(t *testing.T) {
	src := &mockSource{events: []sourceEvent{{line: validLine}}}
	st := &mockStore{}
	svc := newService(src, st, nil)

	require.NoError(t, runFor(t, svc, 300*time.Millisecond))

	rows := st.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Fósforo:1,Potássio:0", rows[0].NPK)
	assert.InDelta(t, 37.2, rows[0].Moisture, 1e-9)
	assert.InDelta(t, 6.32, rows[0].PH, 1e-9)
	assert.EqualValues(t, 1, rows[0].DeviceID)
	assert.EqualValues(t, 1, rows[0].PlotID)
	assert.Nil(t, rows[0].Temperature, "channels outside the grammar stay unset")
	assert.True(t, svc.Ready())
	assert.True(t, src.closed, "stream released on stop")
}

func TestRun_SkipsEmptyLines(t *testing.T) {
	src := &mockSource{events: []sourceEvent{{line: ""}, {line: ""}, {line: validLine}}}
	st := &mockStore{}
	svc := newService(src, st, nil)

	require.NoError(t, runFor(t, svc, 300*time.Millisecond))
	assert.Len(t, st.rows(), 1)
}

func TestRun_DecodeFailureDoesNotTerminate(t *testing.T) {
	src := &mockSource{events: []sourceEvent{
		{line: "not telemetry at all"},
		{line: validLine},
	}}
	st := &mockStore{}
	svc := newService(src, st, nil)

	require.NoError(t, runFor(t, svc, 300*time.Millisecond))
	assert.Len(t, st.rows(), 1, "malformed line skipped, valid line persisted")
}

func TestRun_EmptyInput_PersistsNothing(t *testing.T) {
	src := &mockSource{events: []sourceEvent{{line: ""}}}
	st := &mockStore{}
	svc := newService(src, st, nil)

	require.NoError(t, runFor(t, svc, 150*time.Millisecond))
	assert.Empty(t, st.rows())
	assert.False(t, svc.Ready())
}

func TestRun_StreamErrorIsFatal(t *testing.T) {
	streamErr := &transport.StreamError{Addr: "tcp://localhost:8181", Err: errors.New("connection reset")}
	src := &mockSource{events: []sourceEvent{{line: validLine}, {err: streamErr}}}
	st := &mockStore{}
	svc := newService(src, st, nil)

	err := runFor(t, svc, time.Second)
	var got *transport.StreamError
	require.ErrorAs(t, err, &got)
	assert.Len(t, st.rows(), 1, "line before the disconnect was persisted")
}

func TestRun_OpenFailureIsFatal(t *testing.T) {
	streamErr := &transport.StreamError{Addr: "tcp://localhost:8181", Err: errors.New("refused")}
	open := func() (ingest.LineSource, error) { return nil, streamErr }
	svc := ingest.New(open, &mockStore{}, nil, slog.Default(), observability.NewMetricsForTesting(), 1, 1)

	err := svc.Run(context.Background())
	var got *transport.StreamError
	require.ErrorAs(t, err, &got)
}

func TestRun_IntegrityViolationIsFatal(t *testing.T) {
	src := &mockSource{events: []sourceEvent{{line: validLine}}}
	st := &mockStore{err: &store.IntegrityError{Op: "insert reading", Err: errors.New("FOREIGN KEY constraint failed")}}
	svc := newService(src, st, nil)

	err := runFor(t, svc, time.Second)
	var integrity *store.IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestRun_ContextCancellation(t *testing.T) {
	src := &mockSource{}
	st := &mockStore{}
	svc := newService(src, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Run(ctx))
	assert.Empty(t, st.rows())
}

func TestRun_PublishesAcceptedReadings(t *testing.T) {
	src := &mockSource{events: []sourceEvent{{line: validLine}}}
	st := &mockStore{}
	pub := &mockPublisher{}
	svc := newService(src, st, pub)

	require.NoError(t, runFor(t, svc, 300*time.Millisecond))
	require.Len(t, pub.published, 1)
	assert.EqualValues(t, 1, pub.published[0].ID)
}

func TestRun_PublishFailureIsBestEffort(t *testing.T) {
	src := &mockSource{events: []sourceEvent{{line: validLine}}}
	st := &mockStore{}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	svc := newService(src, st, pub)

	require.NoError(t, runFor(t, svc, 300*time.Millisecond))
	assert.Len(t, st.rows(), 1, "persistence unaffected by publish failure")
}
