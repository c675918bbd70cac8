// Package export parses WhatsApp-style exported chat transcripts into
// per-day conversation records.
//
// The export format is informal: message headers look like
//
//	25/02/2024, 10:30 - John: Hello there
//	[25/02/2024, 10:30:00] - John: Hello there
//
// with day/month/year separated by /, . or -, an optional seconds field and
// meridiem marker on the time, and an optional bracketed timestamp. The
// dash between timestamp and speaker is mandatory; bracketed lines without
// it are not headers. Lines that do not match a header are treated as
// wrapped continuations of the previous message. Parsing is total;
// malformed input yields fewer records, never an error.
package export

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/user/workbase/internal/types"
)

// ErrNoMessages is returned by Entries when an export contains no parseable
// message headers at all.
var ErrNoMessages = errors.New("no parseable messages in export")

// headerRe matches one message header: date, time, dash-like separator,
// speaker name terminated by a colon, message body.
var headerRe = regexp.MustCompile(
	`(?i)^[\["]?(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}),?\s+(\d{1,2}:\d{2}(?::\d{2})?(?:\s*[AP]M)?)["\]]?\s*[-–]\s*([^:]+):\s*(.*)$`)

// DayRecord is all messages for one calendar date, in transcript order.
// Date is the normalized date token (separators canonicalized to "/").
type DayRecord struct {
	Date  string
	Lines []string
}

// Parse scans the raw export and groups messages by date. Records appear in
// insertion order of each date's first message. Non-matching, non-blank lines
// are space-joined onto the previous message; leading junk before the first
// header is dropped.
func Parse(raw string) []DayRecord {
	var records []DayRecord
	index := make(map[string]int)

	cur := -1 // index into records of the group being accumulated
	for _, line := range strings.Split(raw, "\n") {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			if cur >= 0 && strings.TrimSpace(line) != "" {
				last := len(records[cur].Lines) - 1
				records[cur].Lines[last] += " " + strings.TrimSpace(line)
			}
			continue
		}

		date := normalizeDate(m[1])
		i, ok := index[date]
		if !ok {
			records = append(records, DayRecord{Date: date})
			i = len(records) - 1
			index[date] = i
		}
		records[i].Lines = append(records[i].Lines,
			fmt.Sprintf("[%s] %s: %s", m[2], strings.TrimSpace(m[3]), strings.TrimSpace(m[4])))
		cur = i
	}
	return records
}

// Entries converts parsed records into knowledge-base entries under the
// given category. Returns ErrNoMessages if nothing was parseable.
func Entries(records []DayRecord, category string) ([]*types.KBEntry, error) {
	if len(records) == 0 {
		return nil, ErrNoMessages
	}
	entries := make([]*types.KBEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, &types.KBEntry{
			Title:    "WhatsApp · " + r.Date,
			Content:  strings.Join(r.Lines, "\n"),
			Category: category,
		})
	}
	return entries, nil
}

// normalizeDate canonicalizes the date token's separators so the same day
// written with different separators groups together.
func normalizeDate(date string) string {
	date = strings.ReplaceAll(date, ".", "/")
	return strings.ReplaceAll(date, "-", "/")
}
