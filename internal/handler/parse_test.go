package handler

import (
	"net/url"
	"testing"

	"github.com/kevingruber/journal-gateway/internal/format"
	"github.com/kevingruber/journal-gateway/internal/journal"
)

func TestParseRange(t *testing.T) {
	cases := []struct {
		name   string
		header string
		ok     bool

		cursor      string
		nSkip       int64
		nEntries    uint64
		nEntriesSet bool
	}{
		{name: "absent", header: "", ok: true},
		{name: "foreign unit", header: "bytes=0-99", ok: true},
		{name: "cursor only", header: "entries=abc", ok: true, cursor: "abc"},
		{name: "cursor skip count", header: "entries=abc:2:5", ok: true, cursor: "abc", nSkip: 2, nEntries: 5, nEntriesSet: true},
		{name: "negative skip", header: "entries=:-1:1", ok: true, nSkip: -1, nEntries: 1, nEntriesSet: true},
		{name: "empty skip segment", header: "entries=abc::3", ok: true, cursor: "abc", nEntries: 3, nEntriesSet: true},
		{name: "skip without count", header: "entries=abc:7", ok: true, cursor: "abc", nSkip: 7},
		{name: "leading whitespace", header: "entries=  abc:1:2", ok: true, cursor: "abc", nSkip: 1, nEntries: 2, nEntriesSet: true},
		{name: "trailing whitespace on cursor", header: "entries=abc \t", ok: true, cursor: "abc"},
		{name: "zero count", header: "entries=abc:1:0", ok: false},
		{name: "bad skip", header: "entries=abc:x:1", ok: false},
		{name: "bad count", header: "entries=abc:1:x", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := &requestState{}
			err := st.parseRange(tc.header)
			if tc.ok != (err == nil) {
				t.Fatalf("err = %v, want ok=%v", err, tc.ok)
			}
			if !tc.ok {
				return
			}
			if st.cursor != tc.cursor || st.nSkip != tc.nSkip ||
				st.nEntries != tc.nEntries || st.nEntriesSet != tc.nEntriesSet {
				t.Fatalf("got (%q, %d, %d, %v), want (%q, %d, %d, %v)",
					st.cursor, st.nSkip, st.nEntries, st.nEntriesSet,
					tc.cursor, tc.nSkip, tc.nEntries, tc.nEntriesSet)
			}
		})
	}
}

func TestParseAccept(t *testing.T) {
	st := &requestState{}

	st.parseAccept("application/json")
	if st.mode != format.JSON {
		t.Fatalf("mode %v", st.mode)
	}

	st.parseAccept("text/csv")
	if st.mode != format.Short {
		t.Fatalf("unknown accept should fall back to short, got %v", st.mode)
	}
}

func openState(t *testing.T, s *journal.Store) *requestState {
	t.Helper()
	j, err := s.Open()
	if err != nil {
		t.Fatal(err)
	}
	st := &requestState{journal: j}
	t.Cleanup(st.Close)
	return st
}

func TestParseArgumentsFlags(t *testing.T) {
	st := openState(t, journal.NewStore())

	q := url.Values{}
	q.Set("follow", "")
	q.Set("discrete", "true")
	if err := st.parseArguments(q, noBootID); err != nil {
		t.Fatal(err)
	}
	if !st.follow || !st.discrete {
		t.Fatalf("follow=%v discrete=%v", st.follow, st.discrete)
	}

	st2 := openState(t, journal.NewStore())
	q = url.Values{}
	q.Set("follow", "no")
	if err := st2.parseArguments(q, noBootID); err != nil {
		t.Fatal(err)
	}
	if st2.follow {
		t.Fatal("follow=no should clear the flag")
	}
}

func TestParseArgumentsBadBoolean(t *testing.T) {
	st := openState(t, journal.NewStore())

	q := url.Values{}
	q.Set("follow", "maybe")
	if err := st.parseArguments(q, noBootID); err == nil {
		t.Fatal("expected an error")
	}
}

func TestParseArgumentsAddsMatches(t *testing.T) {
	s := journal.NewStore()
	s.Append(journal.Field{Name: "_SYSTEMD_UNIT", Value: []byte("a.service")},
		journal.Field{Name: "MESSAGE", Value: []byte("one")})
	s.Append(journal.Field{Name: "_SYSTEMD_UNIT", Value: []byte("b.service")},
		journal.Field{Name: "MESSAGE", Value: []byte("two")})

	st := openState(t, s)
	q := url.Values{}
	q.Set("_SYSTEMD_UNIT", "b.service")
	if err := st.parseArguments(q, noBootID); err != nil {
		t.Fatal(err)
	}

	st.journal.SeekHead()
	ok, err := st.journal.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	e, _ := st.journal.Entry()
	if v, _ := e.Value("MESSAGE"); string(v) != "two" {
		t.Fatalf("match not applied, got %q", v)
	}
}

func TestParseArgumentsBootMatch(t *testing.T) {
	s := journal.NewStore()
	s.Append(journal.Field{Name: "_BOOT_ID", Value: []byte("0123456789abcdef0123456789abcdef")},
		journal.Field{Name: "MESSAGE", Value: []byte("this boot")})
	s.Append(journal.Field{Name: "_BOOT_ID", Value: []byte("ffffffffffffffffffffffffffffffff")},
		journal.Field{Name: "MESSAGE", Value: []byte("old boot")})

	st := openState(t, s)
	q := url.Values{}
	q.Set("boot", "")
	err := st.parseArguments(q, func() (string, error) {
		return "0123456789abcdef0123456789abcdef", nil
	})
	if err != nil {
		t.Fatal(err)
	}

	st.journal.SeekHead()
	n := 0
	for {
		ok, _ := st.journal.Next()
		if !ok {
			break
		}
		e, _ := st.journal.Entry()
		if v, _ := e.Value("MESSAGE"); string(v) != "this boot" {
			t.Fatalf("unexpected entry %q", v)
		}
		n++
	}
	if n != 1 {
		t.Fatalf("got %d entries, want 1", n)
	}
}

func noBootID() (string, error) {
	return "00000000000000000000000000000000", nil
}
