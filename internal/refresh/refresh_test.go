package refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearcal/internal/config"
	"yearcal/internal/ics"
	"yearcal/internal/model"
)

func TestRefresh_PublishesSnapshots(t *testing.T) {
	var calls atomic.Int32
	r := New(LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) {
		n := calls.Add(1)
		return make([]model.CalendarEvent, n), nil
	}))

	assert.Equal(t, uint64(0), r.Snapshot().Generation)

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Events, 1)

	snap, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.Len(t, r.Snapshot().Events, 2)
}

func TestRefresh_TotalFailureKeepsPrevious(t *testing.T) {
	fail := false
	r := New(LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) {
		if fail {
			return nil, errors.New("all sources down")
		}
		return []model.CalendarEvent{{ID: "a"}}, nil
	}))

	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	fail = true
	snap, err := r.Refresh(context.Background())
	assert.Error(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Events, 1)
}

func TestRefresh_PartialFailureIsPublished(t *testing.T) {
	r := New(LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) {
		return []model.CalendarEvent{{ID: "a"}}, errors.New("one feed down")
	}))

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.EqualError(t, snap.Err, "one feed down")
}

func TestStart_InvalidSchedule(t *testing.T) {
	r := New(LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) { return nil, nil }))
	err := r.Start(context.Background(), "every now and then")
	assert.Error(t, err)
}

func TestStart_StopsWithContext(t *testing.T) {
	r := New(LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) { return nil, nil }))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx, "@every 1h"))
	cancel()

	assert.Eventually(t, func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.cron == nil
	}, time.Second, 10*time.Millisecond)
}

func TestStart_ReplacesPreviousSchedule(t *testing.T) {
	var loads atomic.Int32
	r := New(LoaderFunc(func(ctx context.Context) ([]model.CalendarEvent, error) {
		loads.Add(1)
		return nil, nil
	}))

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	require.NoError(t, r.Start(ctx1, "@every 1s"))

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	require.NoError(t, r.Start(ctx2, "@every 1h"))

	r.mu.RLock()
	current := r.cron
	r.mu.RUnlock()
	require.NotNil(t, current)

	// The 1s schedule must not fire once replaced.
	assert.Never(t, func() bool { return loads.Load() > 0 }, 1500*time.Millisecond, 50*time.Millisecond)

	// Cancelling the first context leaves the current schedule alone.
	cancel1()
	time.Sleep(50 * time.Millisecond)
	r.mu.RLock()
	assert.Same(t, current, r.cron)
	r.mu.RUnlock()

	cancel2()
	assert.Eventually(t, func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.cron == nil
	}, time.Second, 10*time.Millisecond)
}

func TestConfigLoader(t *testing.T) {
	dir := t.TempDir()
	events := filepath.Join(dir, "events.yaml")
	require.NoError(t, os.WriteFile(events, []byte("- {id: founders-day, title: Founders day, start: 2024-05-17}\n"), 0o600))

	icsPath := filepath.Join(dir, "team.ics")
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:retro\r\nDTSTAMP:20240101T000000Z\r\nDTSTART:20240301T100000Z\r\nDTEND:20240301T110000Z\r\nSUMMARY:Retro\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	require.NoError(t, os.WriteFile(icsPath, []byte(body), 0o600))

	cfg := config.DefaultConfig()
	cfg.Year = 2024
	cfg.EventFiles = []string{events}
	cfg.ICS = []config.ICSConfig{{ID: "team", URL: icsPath, Color: "purple"}, {ID: "blank"}}

	loader := ConfigLoader(cfg, time.UTC, ics.NewFetcher(dir, nil), nil)
	got, err := loader.Load(context.Background())
	require.NoError(t, err)

	ids := map[string]model.CalendarEvent{}
	for _, ev := range got {
		ids[ev.ID] = ev
	}
	require.Contains(t, ids, "team/retro")
	assert.Equal(t, model.ColorPurple, ids["team/retro"].Color)
	assert.Contains(t, ids, "founders-day")
}

func TestConfigLoader_GoogleFailureIsPartial(t *testing.T) {
	dir := t.TempDir()
	events := filepath.Join(dir, "events.yaml")
	require.NoError(t, os.WriteFile(events, []byte("- {id: launch, title: Launch, start: 2024-09-02}\n"), 0o600))

	cfg := config.DefaultConfig()
	cfg.Year = 2024
	cfg.EventFiles = []string{events}
	cfg.Google = []config.GoogleConfig{{ID: "work"}}

	got, err := ConfigLoader(cfg, time.UTC, ics.NewFetcher(dir, nil), nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google work")
	require.Len(t, got, 1)
	assert.Equal(t, "launch", got[0].ID)
}
