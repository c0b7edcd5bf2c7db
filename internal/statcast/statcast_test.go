package statcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSeasonRanges(t *testing.T) {
	got := SeasonRanges(2023, 2024, time.March, time.October)
	if len(got) != 16 {
		t.Fatalf("expected 16 ranges, got %d", len(got))
	}
	checks := map[int]string{
		0:  "2023-03-01_2023-03-31",
		1:  "2023-04-01_2023-04-30",
		7:  "2023-10-01_2023-10-31",
		8:  "2024-03-01_2024-03-31",
		15: "2024-10-01_2024-10-31",
	}
	for i, want := range checks {
		if got[i].Key() != want {
			t.Errorf("range %d: got %s, want %s", i, got[i].Key(), want)
		}
	}

	feb := SeasonRanges(2024, 2024, time.February, time.February)
	if feb[0].End != day(2024, time.February, 29) {
		t.Errorf("leap february should end on the 29th, got %s", feb[0].End.Format(dateLayout))
	}
}

func TestSplitRange(t *testing.T) {
	r := DateRange{Start: day(2024, time.April, 1), End: day(2024, time.April, 30)}
	parts := SplitRange(r, 7)
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(parts))
	}
	if parts[0].Key() != "2024-04-01_2024-04-07" {
		t.Errorf("first part: %s", parts[0].Key())
	}
	if parts[4].Key() != "2024-04-29_2024-04-30" {
		t.Errorf("last part: %s", parts[4].Key())
	}
	for i := 1; i < len(parts); i++ {
		if !parts[i].Start.Equal(parts[i-1].End.AddDate(0, 0, 1)) {
			t.Errorf("gap between part %d and %d", i-1, i)
		}
	}

	if got := SplitRange(r, 0); len(got) != 1 || got[0] != r {
		t.Errorf("days=0 should return the range unchanged, got %v", got)
	}
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()

	c, err := NewFileCache(dir, true)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if _, ok, err := c.Get("missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	body := []byte("batter,game_date,events\n1,2024-04-01,single\n")
	if err := c.Put("k", body); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := c.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != string(body) {
		t.Errorf("round trip mismatch: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "k.csv.zst")); err != nil {
		t.Errorf("expected compressed file on disk: %v", err)
	}

	off, err := NewFileCache(filepath.Join(dir, "off"), false)
	if err != nil {
		t.Fatalf("disabled cache: %v", err)
	}
	if err := off.Put("k", body); err != nil {
		t.Fatalf("disabled Put: %v", err)
	}
	if _, ok, _ := off.Get("k"); ok {
		t.Error("disabled cache should never hit")
	}
	if _, err := os.Stat(filepath.Join(dir, "off")); !os.IsNotExist(err) {
		t.Error("disabled cache should not create its directory")
	}
}

func testClient(url string, cache Cache) *Client {
	return NewClient(ClientOptions{
		BaseURL:        url,
		Timeout:        5 * time.Second,
		RequestsPerSec: 1000,
		MaxAttempts:    3,
		RetryInitial:   time.Millisecond,
		Cache:          cache,
		Logger:         zerolog.Nop(),
	})
}

var april = DateRange{Start: day(2024, time.April, 1), End: day(2024, time.April, 30)}

func TestFetchRangeQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/statcast_search/csv" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		query = r.URL.RawQuery
		fmt.Fprint(w, "batter,game_date,events\n")
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, nil).FetchRange(context.Background(), april); err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	for _, want := range []string{"game_date_gt=2024-04-01", "game_date_lt=2024-04-30", "player_type=batter", "type=details", "hfGT=R%7C"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestFetchRangeRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "batter,game_date,events\n1,2024-04-01,single\n")
	}))
	defer srv.Close()

	body, err := testClient(srv.URL, nil).FetchRange(context.Background(), april)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if !strings.Contains(string(body), "single") {
		t.Errorf("unexpected body %q", body)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestFetchRangeGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, nil).FetchRange(context.Background(), april)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestFetchRangeClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, nil).FetchRange(context.Background(), april); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("404 should not be retried, got %d attempts", calls)
	}
}

func TestFetchRangeRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>busy</body></html>")
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL, nil).FetchRange(context.Background(), april); err == nil {
		t.Fatal("expected error for HTML body")
	}
}

func TestFetchRangeUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "batter,game_date,events\n1,2024-04-01,walk\n")
	}))
	defer srv.Close()

	cache, err := NewFileCache(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	c := testClient(srv.URL, cache)

	first, err := c.FetchRange(context.Background(), april)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := c.FetchRange(context.Background(), april)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if string(first) != string(second) {
		t.Error("cached body differs from fetched body")
	}
	if calls != 1 {
		t.Errorf("expected 1 request, got %d", calls)
	}
}

// fakeFetcher serves canned bodies keyed by range.
type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
	calls  int
}

func (f *fakeFetcher) FetchRange(_ context.Context, r DateRange) ([]byte, error) {
	f.calls++
	if err := f.errs[r.Key()]; err != nil {
		return nil, err
	}
	return []byte(f.bodies[r.Key()]), nil
}

func TestDownloadSingleHeader(t *testing.T) {
	months := SeasonRanges(2024, 2024, time.April, time.May)
	f := &fakeFetcher{bodies: map[string]string{
		months[0].Key(): "\ufeffbatter,game_date,events\n1,2024-04-02,single\n2,2024-04-03,\n",
		// Columns in a different order must land under the first header.
		months[1].Key(): "events,batter,game_date\nwalk,1,2024-05-01\n",
	}}
	out := filepath.Join(t.TempDir(), "data", "statcast.csv")

	sum, err := NewDownloader(f, 0, zerolog.Nop(), nil).Download(context.Background(), months, out)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if sum.Rows != 3 || sum.Ranges != 2 || sum.Failed != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "batter,game_date,events\n1,2024-04-02,single\n2,2024-04-03,\n1,2024-05-01,walk\n"
	if string(data) != want {
		t.Errorf("got\n%s\nwant\n%s", data, want)
	}
	if _, err := os.Stat(out + ".partial"); !os.IsNotExist(err) {
		t.Error("partial file should be gone")
	}
}

func TestDownloadSkipsFailedRanges(t *testing.T) {
	months := SeasonRanges(2024, 2024, time.April, time.May)
	f := &fakeFetcher{
		bodies: map[string]string{months[1].Key(): "batter,game_date,events\n7,2024-05-01,double\n"},
		errs:   map[string]error{months[0].Key(): errors.New("boom")},
	}
	out := filepath.Join(t.TempDir(), "statcast.csv")

	sum, err := NewDownloader(f, 0, zerolog.Nop(), nil).Download(context.Background(), months, out)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if sum.Failed != 1 || sum.Rows != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestDownloadChunks(t *testing.T) {
	months := SeasonRanges(2024, 2024, time.April, time.April)
	f := &fakeFetcher{bodies: map[string]string{}}
	for _, r := range SplitRange(months[0], 10) {
		f.bodies[r.Key()] = "batter,game_date,events\n1," + r.Start.Format(dateLayout) + ",single\n"
	}
	out := filepath.Join(t.TempDir(), "statcast.csv")

	sum, err := NewDownloader(f, 10, zerolog.Nop(), nil).Download(context.Background(), months, out)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if f.calls != 3 || sum.Rows != 3 {
		t.Errorf("expected 3 chunked requests and rows, got calls=%d rows=%d", f.calls, sum.Rows)
	}
}

func TestDownloadNoData(t *testing.T) {
	months := SeasonRanges(2024, 2024, time.April, time.April)
	f := &fakeFetcher{bodies: map[string]string{months[0].Key(): "batter,game_date,events\n"}}
	out := filepath.Join(t.TempDir(), "statcast.csv")

	_, err := NewDownloader(f, 0, zerolog.Nop(), nil).Download(context.Background(), months, out)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output file should be written")
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	out := filepath.Join(t.TempDir(), "statcast.csv")
	if err := os.WriteFile(out, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}
	f := &fakeFetcher{}

	sum, err := NewDownloader(f, 0, zerolog.Nop(), nil).Download(context.Background(), SeasonRanges(2024, 2024, time.April, time.April), out)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !sum.Skipped || f.calls != 0 {
		t.Errorf("expected skip without fetching, got %+v calls=%d", sum, f.calls)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "keep" {
		t.Error("existing file was modified")
	}
}
