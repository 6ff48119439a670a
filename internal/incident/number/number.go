// Package number formats and parses human-readable incident numbers.
package number

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FallbackStoreCode prefixes incident numbers when no store is linked.
const FallbackStoreCode = "GEN"

// Format renders an incident number as <STORE_CODE>-<YEAR>-<SEQ>.
// The sequence is zero-padded to four digits and widens past 9999.
func Format(storeCode string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", strings.ToUpper(strings.TrimSpace(storeCode)), year, seq)
}

// Prefix returns the shared prefix of every number issued for a store
// within a year, including the trailing separator.
func Prefix(storeCode string, year int) string {
	return fmt.Sprintf("%s-%d-", strings.ToUpper(strings.TrimSpace(storeCode)), year)
}

// ParseSequence extracts the numeric sequence from an incident number.
// The second return value is false when the trailing segment is missing
// or not purely numeric.
func ParseSequence(incidentNumber string) (int64, bool) {
	trimmed := strings.TrimSpace(incidentNumber)
	idx := strings.LastIndex(trimmed, "-")
	if idx == -1 || idx == len(trimmed)-1 {
		return 0, false
	}
	segment := trimmed[idx+1:]
	seq, err := strconv.ParseInt(segment, 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// Fallback builds a timestamp-based number for incidents without a
// store. The suffix is twelve digits: month, day, hour, minute, second,
// and centiseconds, which keeps collisions rare without a counter row.
func Fallback(now time.Time) string {
	now = now.UTC()
	centis := now.Nanosecond() / int(10*time.Millisecond)
	return fmt.Sprintf("%s-%d-%s%02d", FallbackStoreCode, now.Year(), now.Format("0102150405"), centis)
}
