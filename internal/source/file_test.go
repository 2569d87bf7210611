package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yearcal/internal/model"
)

func TestDecode_MappingDocument(t *testing.T) {
	data := []byte(`events:
  - id: shift-0108
    title: Early shift
    start: 2024-01-08T06:00:00Z
    end: 2024-01-08T14:00:00Z
    color: Blue
    kind: shift
  - title: Vacation
    start: 2024-07-01
    end: 2024-07-14
    color: chartreuse
`)
	events, err := Decode("team.yaml", data, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 2)

	shift := events[0]
	assert.Equal(t, "shift-0108", shift.ID)
	assert.Equal(t, "team.yaml", shift.SourceID)
	assert.Equal(t, model.ColorBlue, shift.Color)
	assert.Equal(t, "shift", shift.Kind)
	assert.False(t, shift.AllDay)
	assert.Equal(t, 8*time.Hour, shift.Duration())

	vacation := events[1]
	assert.NotEmpty(t, vacation.ID)
	assert.True(t, vacation.AllDay)
	assert.Equal(t, model.ColorGray, vacation.Color)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), vacation.Start)
	assert.Equal(t, time.Date(2024, 7, 14, 23, 59, 59, 999999999, time.UTC), vacation.End)
}

func TestDecode_JSONListAndStableIDs(t *testing.T) {
	data := []byte(`[{"title":"Offsite","start":"2024-03-04 09:00","end":"2024-03-06 17:00"}]`)

	a, err := Decode("x.json", data, time.UTC)
	require.NoError(t, err)
	b, err := Decode("x.json", data, time.UTC)
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, a[0].ID, b[0].ID)

	other, err := Decode("y.json", data, time.UTC)
	require.NoError(t, err)
	assert.NotEqual(t, a[0].ID, other[0].ID)
}

func TestDecode_LocalTimesUseLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	events, err := Decode("f", []byte(`[{id: a, start: "2024-01-05T09:00", end: "2024-01-05T10:00"}]`), loc)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 8, events[0].Start.UTC().Hour())
}

func TestDecode_MissingEndIsSinglePoint(t *testing.T) {
	events, err := Decode("f", []byte(`[{id: a, start: "2024-01-05T09:00:00Z"}]`), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, events[0].Start, events[0].End)
}

func TestDecode_BadRecordIsIsolated(t *testing.T) {
	data := []byte(`
- id: good
  start: 2024-01-05
- id: bad
  start: next tuesday
`)
	events, err := Decode("f", data, time.UTC)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "event #1")
	require.Len(t, events, 1)
	assert.Equal(t, "good", events[0].ID)
}

func TestDecode_BackwardsIntervalIsPassedThrough(t *testing.T) {
	events, err := Decode("f", []byte(`[{id: a, start: "2024-01-05T10:00:00Z", end: "2024-01-05T09:00:00Z"}]`), time.UTC)
	require.NoError(t, err)
	assert.True(t, events[0].End.Before(events[0].Start))
}

func TestDecode_NotAList(t *testing.T) {
	_, err := Decode("f", []byte(`just a string`), time.UTC)
	assert.Error(t, err)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("- {id: a, start: 2024-02-01}\n"), 0o600))

	events, err := LoadFiles([]string{good, filepath.Join(dir, "missing.yaml")}, time.UTC)
	assert.Error(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, good, events[0].SourceID)
}
