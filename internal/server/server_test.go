package server

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kevingruber/journal-gateway/internal/config"
	"github.com/kevingruber/journal-gateway/internal/format"
	"github.com/kevingruber/journal-gateway/internal/journal"
)

type fakeSysinfo struct{}

func (fakeSysinfo) MachineID() (string, error) { return "0123456789abcdef0123456789abcdef", nil }
func (fakeSysinfo) BootID() (string, error)    { return "fedcba9876543210fedcba9876543210", nil }
func (fakeSysinfo) Hostname() (string, error)  { return "testhost", nil }
func (fakeSysinfo) OSPrettyName() string       { return "Linux" }
func (fakeSysinfo) Virtualization() string     { return "bare" }

func newTestServer(t *testing.T, store *journal.Store) *httptest.Server {
	t.Helper()

	browse := filepath.Join(t.TempDir(), "browse.html")
	if err := os.WriteFile(browse, []byte("<html><body>browser</body></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Browse.File = browse
	cfg.Logging.Level = "error"

	s := New(cfg, store, fakeSysinfo{}, zerolog.Nop())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func seedStore(t *testing.T, messages ...string) *journal.Store {
	t.Helper()
	s := journal.NewStore()
	for _, m := range messages {
		s.Append(
			journal.Field{Name: "MESSAGE", Value: []byte(m)},
			journal.Field{Name: "_SYSTEMD_UNIT", Value: []byte("test.service")},
		)
	}
	return s
}

// renderShort produces the expected short-form bytes for a slice of
// the store's entries.
func renderShort(t *testing.T, s *journal.Store, from, to int) string {
	t.Helper()
	j, err := s.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	j.SeekHead()

	var buf bytes.Buffer
	for i := 0; ; i++ {
		ok, err := j.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			return buf.String()
		}
		if i >= from && i < to {
			e, _ := j.Entry()
			if err := format.WriteEntry(&buf, e, format.Short); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func get(t *testing.T, ts *httptest.Server, path string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestRootRedirectsToBrowse(t *testing.T) {
	ts := newTestServer(t, seedStore(t))

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/browse" {
		t.Fatalf("Location %q", loc)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `<a href="/browse">`) {
		t.Fatalf("body %q", body)
	}
}

func TestBrowseServesAsset(t *testing.T) {
	ts := newTestServer(t, seedStore(t))

	resp, body := get(t, ts, "/browse", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type %q", ct)
	}
	if !strings.Contains(body, "browser") {
		t.Fatalf("body %q", body)
	}
}

func TestEntriesStreamsWholeJournal(t *testing.T) {
	store := seedStore(t, "one", "two", "three")
	ts := newTestServer(t, store)

	resp, body := get(t, ts, "/entries", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type %q", ct)
	}
	if want := renderShort(t, store, 0, 3); body != want {
		t.Fatalf("got %q, want %q", body, want)
	}
}

func TestEntriesTailRange(t *testing.T) {
	store := seedStore(t, "one", "two", "three")
	ts := newTestServer(t, store)

	resp, body := get(t, ts, "/entries", map[string]string{"Range": "entries=:-1:1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if want := renderShort(t, store, 2, 3); body != want {
		t.Fatalf("got %q, want %q", body, want)
	}
}

func TestEntriesZeroCountIsBadRequest(t *testing.T) {
	ts := newTestServer(t, seedStore(t, "one"))

	resp, body := get(t, ts, "/entries", map[string]string{"Range": "entries=:0:0"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body != "Failed to parse Range header.\n" {
		t.Fatalf("body %q", body)
	}
}

func TestEntriesDiscreteRoundTrip(t *testing.T) {
	store := seedStore(t, "one", "two", "three")
	ts := newTestServer(t, store)

	// Fish the middle entry's cursor out of the store.
	j, err := store.Open()
	if err != nil {
		t.Fatal(err)
	}
	j.SeekHead()
	j.NextSkip(2)
	cursor, err := j.Cursor()
	if err != nil {
		t.Fatal(err)
	}
	j.Close()

	resp, body := get(t, ts, "/entries?discrete",
		map[string]string{"Range": "entries=" + cursor + "::1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if want := renderShort(t, store, 1, 2); body != want {
		t.Fatalf("got %q, want %q", body, want)
	}
}

func TestEntriesDiscreteWithoutCursor(t *testing.T) {
	ts := newTestServer(t, seedStore(t, "one"))

	resp, body := get(t, ts, "/entries?discrete", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body != "Discrete seeks require a cursor specification.\n" {
		t.Fatalf("body %q", body)
	}
}

func TestEntriesUnknownAcceptFallsBackToShort(t *testing.T) {
	ts := newTestServer(t, seedStore(t, "one"))

	resp, _ := get(t, ts, "/entries", map[string]string{"Accept": "application/xml"})
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type %q", ct)
	}
}

func TestEntriesSSEMime(t *testing.T) {
	ts := newTestServer(t, seedStore(t, "one"))

	resp, body := get(t, ts, "/entries", map[string]string{"Accept": "text/event-stream"})
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type %q", ct)
	}
	if !strings.HasPrefix(body, "data: {") || !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("body %q", body)
	}
}

func TestEntriesFollowDeliversLateAppends(t *testing.T) {
	store := seedStore(t)
	ts := newTestServer(t, store)

	// The response headers only flush once the first entry is out, so
	// the append must already be scheduled when the request starts.
	go func() {
		time.Sleep(50 * time.Millisecond)
		store.Append(journal.Field{Name: "MESSAGE", Value: []byte("tail me")})
	}()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/entries?follow", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	lineCh := make(chan string, 1)
	go func() {
		line, _ := r.ReadString('\n')
		lineCh <- line
	}()

	select {
	case line := <-lineCh:
		if !strings.Contains(line, "tail me") {
			t.Fatalf("got %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow stream never produced the appended entry")
	}
}

func TestFieldsJSON(t *testing.T) {
	store := seedStore(t)
	store.Append(journal.Field{Name: "_SYSTEMD_UNIT", Value: []byte("a.service")})
	store.Append(journal.Field{Name: "_SYSTEMD_UNIT", Value: []byte("b.service")})
	ts := newTestServer(t, store)

	resp, body := get(t, ts, "/fields/_SYSTEMD_UNIT", map[string]string{"Accept": "application/json"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type %q", ct)
	}
	want := "{ \"_SYSTEMD_UNIT\" : \"a.service\" }\n{ \"_SYSTEMD_UNIT\" : \"b.service\" }\n"
	if body != want {
		t.Fatalf("got %q, want %q", body, want)
	}
}

func TestFieldsCollapseToPlainForOtherAccepts(t *testing.T) {
	store := seedStore(t)
	store.Append(journal.Field{Name: "_SYSTEMD_UNIT", Value: []byte("a.service")})
	ts := newTestServer(t, store)

	// Export and SSE accepts still get plain text on this endpoint.
	for _, accept := range []string{"application/vnd.fdo.journal", "text/event-stream", ""} {
		resp, body := get(t, ts, "/fields/_SYSTEMD_UNIT", map[string]string{"Accept": accept})
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Fatalf("accept %q: Content-Type %q", accept, ct)
		}
		if body != "a.service\n" {
			t.Fatalf("accept %q: body %q", accept, body)
		}
	}
}

func TestMachineDocument(t *testing.T) {
	ts := newTestServer(t, seedStore(t, "one"))

	resp, body := get(t, ts, "/machine", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type %q", ct)
	}

	var doc map[string]string
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		t.Fatalf("invalid JSON: %v\n%q", err, body)
	}
	for _, key := range []string{
		"machine_id", "boot_id", "hostname", "os_pretty_name",
		"virtualization", "usage", "cutoff_from_realtime", "cutoff_to_realtime",
	} {
		if _, ok := doc[key]; !ok {
			t.Fatalf("missing key %q in %v", key, doc)
		}
	}
	if doc["machine_id"] != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("machine_id %q", doc["machine_id"])
	}
	for _, key := range []string{"usage", "cutoff_from_realtime", "cutoff_to_realtime"} {
		for _, c := range doc[key] {
			if c < '0' || c > '9' {
				t.Fatalf("%s is not a decimal string: %q", key, doc[key])
			}
		}
	}

	// Stable with no concurrent writers.
	_, again := get(t, ts, "/machine", nil)
	if again != body {
		t.Fatalf("machine document changed between identical requests")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	ts := newTestServer(t, seedStore(t))

	resp, body := get(t, ts, "/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body != "Not found.\n" {
		t.Fatalf("body %q", body)
	}
}

func TestNonGETIsRefused(t *testing.T) {
	ts := newTestServer(t, seedStore(t))

	resp, err := ts.Client().Post(ts.URL+"/entries", "text/plain", strings.NewReader("x"))
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected the connection to be dropped")
	}
}
