package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babyriver/internal/model"
)

func TestFetchOneCachesAndRevalidates(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "tracker", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, `{"events":[]}`, string(first.Body))

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, 2, requests)
}

func TestFetchOneFallsBackToCacheOnServerError(t *testing.T) {
	var fail bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "tracker", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fail = true
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, `[]`, string(res.Body))
}

func TestFetchAllCollectsPerSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "good", URL: srv.URL},
		{ID: "bad", URL: ""},
	})
	assert.Len(t, results, 1)
	assert.Len(t, errs, 1)
	assert.Equal(t, "good", results[0].Source.ID)
}

func TestDecodeJSONWrapperAndBareArray(t *testing.T) {
	wrapped := []byte(`{"events":[{"id":"a","type":"feeding","date":"2026-03-12","time":"07:30"}]}`)
	bare := []byte(`[{"id":"a","type":"feeding","date":"2026-03-12","time":"07:30"}]`)

	for _, body := range [][]byte{wrapped, bare} {
		events, err := DecodeJSON(Source{ID: "tracker"}, body)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "a", events[0].ID)
		assert.Equal(t, model.TypeFeeding, events[0].Type)
	}
}

func TestDecodeJSONSkipsMalformedEntries(t *testing.T) {
	body := []byte(`[
		{"id":"ok","type":"sleep","date":"2026-03-12","time":"20:00"},
		{"id":"bad-date","type":"sleep","date":"not-a-date","time":"20:00"},
		{"id":"bad-clock","type":"sleep","date":"2026-03-12","time":"25:00"},
		{"id":"bad-type","type":"bath","date":"2026-03-12","time":"20:00"}
	]`)

	events, err := DecodeJSON(Source{ID: "tracker"}, body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
}

func TestDecodeJSONSynthesizesStableIDs(t *testing.T) {
	body := []byte(`[{"type":"diaper","date":"2026-03-12","time":"09:15"}]`)

	first, err := DecodeJSON(Source{ID: "tracker"}, body)
	require.NoError(t, err)
	second, err := DecodeJSON(Source{ID: "tracker"}, body)
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID)

	other, err := DecodeJSON(Source{ID: "other-tracker"}, body)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].ID, other[0].ID)
}

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VEVENT
UID:checkup-1
DTSTART:20260312T103000Z
DTEND:20260312T111500Z
SUMMARY:Pediatrician checkup
END:VEVENT
BEGIN:VEVENT
UID:allday-1
DTSTART;VALUE=DATE:20260313
SUMMARY:Growth chart day
END:VEVENT
END:VCALENDAR
`

func TestImportICS(t *testing.T) {
	events, err := ImportICS(Source{ID: "cal"}, []byte(sampleICS), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "cal:checkup-1", ev.ID)
	assert.Equal(t, model.TypeOther, ev.Type)
	assert.Equal(t, "2026-03-12", ev.Date)
	assert.Equal(t, "10:30", ev.Time)
	assert.Equal(t, "Pediatrician checkup", ev.Notes)
	assert.Equal(t, 45, ev.Detail.DurationMinutes)
}

func TestMergeLaterBatchesWinAndSorted(t *testing.T) {
	scheduled := []model.Event{
		{ID: "x", Type: model.TypeFeeding, Date: "2026-03-12", Time: "09:00", Notes: "planned"},
		{ID: "y", Type: model.TypeSleep, Date: "2026-03-12", Time: "13:00"},
	}
	tracked := []model.Event{
		{ID: "x", Type: model.TypeFeeding, Date: "2026-03-12", Time: "09:10", Notes: "actual"},
		{ID: "z", Type: model.TypeDiaper, Date: "2026-03-11", Time: "22:00"},
	}

	merged := Merge(scheduled, tracked)
	require.Len(t, merged, 3)
	assert.Equal(t, "z", merged[0].ID)
	assert.Equal(t, "x", merged[1].ID)
	assert.Equal(t, "actual", merged[1].Notes)
	assert.Equal(t, "y", merged[2].ID)
}

func TestExpandSchedulesDaily(t *testing.T) {
	schedules := []Schedule{
		{ID: "vitd", Type: model.TypeOther, RRule: "FREQ=DAILY", Time: "09:00", Notes: "vitamin D"},
		{ID: "nap", Type: model.TypeSleep, RRule: "FREQ=DAILY", Time: "13:00", DurationMinutes: 90},
	}
	start := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3).Add(-time.Second)

	events, err := ExpandSchedules(schedules, start, end, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 6)

	byType := map[model.EventType]int{}
	for _, ev := range events {
		byType[ev.Type]++
		if ev.Type == model.TypeSleep {
			assert.Equal(t, "13:00", ev.Time)
			assert.Equal(t, 90, ev.Detail.DurationMinutes)
		}
	}
	assert.Equal(t, 3, byType[model.TypeOther])
	assert.Equal(t, 3, byType[model.TypeSleep])

	// same range, same IDs
	again, err := ExpandSchedules(schedules, start, end, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, events[0].ID, again[0].ID)
}

func TestExpandSchedulesSkipsBroken(t *testing.T) {
	schedules := []Schedule{
		{ID: "bad-rule", RRule: "FREQ=NOPE", Time: "09:00"},
		{ID: "bad-clock", RRule: "FREQ=DAILY", Time: "9am"},
		{ID: "ok", RRule: "FREQ=DAILY", Time: "09:00"},
	}
	start := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	events, err := ExpandSchedules(schedules, start, start.AddDate(0, 0, 1).Add(-time.Second), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.TypeOther, events[0].Type)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)",
		redactURL("https://example.com/export.json?token=secret"))
	assert.Equal(t, "feed://...(redacted)", redactURL("not a url"))
}
