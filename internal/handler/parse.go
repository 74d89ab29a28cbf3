package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kevingruber/journal-gateway/internal/format"
)

// parseAccept maps the Accept header to an output mode. Anything but
// an exact match of a known type falls back to the short form.
func (st *requestState) parseAccept(header string) {
	st.mode = format.ModeFromAccept(header)
}

// parseRange interprets "Range: entries=<cursor>[:<skip>[:<count>]]".
// The cursor may be empty; skip is signed decimal; count is unsigned
// decimal and must be positive. Empty segments are treated as absent.
// A missing header, or one with a foreign unit, is not an error.
func (st *requestState) parseRange(header string) error {
	const prefix = "entries="
	if !strings.HasPrefix(header, prefix) {
		return nil
	}

	spec := strings.TrimLeft(header[len(prefix):], " \t")
	parts := strings.SplitN(spec, ":", 3)

	cursor := parts[0]
	if i := strings.IndexAny(cursor, " \t"); i >= 0 {
		cursor = cursor[:i]
	}
	st.cursor = cursor

	if len(parts) >= 2 && parts[1] != "" {
		skip, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad skip %q: %w", parts[1], err)
		}
		st.nSkip = skip
	}

	if len(parts) == 3 && parts[2] != "" {
		count, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad entry count %q: %w", parts[2], err)
		}
		if count == 0 {
			return fmt.Errorf("entry count must be positive")
		}
		st.nEntries = count
		st.nEntriesSet = true
	}

	return nil
}

// parseArguments walks the query pairs: follow, discrete, and boot
// are flags (an empty value means true, boot adds a _BOOT_ID match);
// every other pair becomes a field-equality match on the journal.
// Errors are collected rather than aborting the walk, so exactly one
// is reported after all pairs have been seen.
func (st *requestState) parseArguments(query url.Values, bootID func() (string, error)) error {
	var argErr error
	fail := func(err error) {
		if argErr == nil {
			argErr = err
		}
	}

	for key, values := range query {
		if key == "" {
			fail(fmt.Errorf("empty argument key"))
			continue
		}
		for _, value := range values {
			switch key {
			case "follow":
				b, err := parseFlag(value)
				if err != nil {
					fail(err)
					continue
				}
				st.follow = b

			case "discrete":
				b, err := parseFlag(value)
				if err != nil {
					fail(err)
					continue
				}
				st.discrete = b

			case "boot":
				b, err := parseFlag(value)
				if err != nil {
					fail(err)
					continue
				}
				if !b {
					continue
				}
				bid, err := bootID()
				if err != nil {
					fail(fmt.Errorf("determine boot id: %w", err))
					continue
				}
				if err := st.journal.AddMatch("_BOOT_ID", []byte(bid)); err != nil {
					fail(err)
				}

			default:
				if err := st.journal.AddMatch(key, []byte(value)); err != nil {
					fail(err)
				}
			}
		}
	}

	return argErr
}

// parseFlag reads a boolean query value, with absence of a value
// meaning true.
func parseFlag(s string) (bool, error) {
	if s == "" {
		return true, nil
	}
	switch strings.ToLower(s) {
	case "1", "yes", "y", "true", "t", "on":
		return true, nil
	case "0", "no", "n", "false", "f", "off":
		return false, nil
	}
	return false, fmt.Errorf("bad boolean %q", s)
}
