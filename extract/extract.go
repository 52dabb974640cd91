// Package extract maps framed lines of text to fixed-width vectors of
// optional numeric values, one per configured series.
package extract

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/HaxIOX/Portax/telemetry"
)

// number matches a signed decimal with an optional fraction.
const number = `-?\d+(?:\.\d+)?`

// numberPattern finds every number in a line for positional assignment.
var numberPattern = regexp.MustCompile(number)

// Keyword patterns are compiled once per distinct keyword. The set of
// keywords is whatever the user configures, so the cache never evicts.
var (
	keywordMu       sync.RWMutex
	keywordPatterns = make(map[string]*regexp.Regexp)
)

// keywordPattern returns the compiled matcher for keyword: the keyword
// itself (case-insensitive, no word-boundary anchor, so a keyword embedded
// in a longer token still matches), optional separators (whitespace, at
// most one of ":", "=", "-", more whitespace), then a captured number. A
// minus sign directly before digits stays part of the value, so "temp:-5"
// extracts -5 while "temp-5" treats the dash as the separator and
// extracts 5.
func keywordPattern(keyword string) *regexp.Regexp {
	keywordMu.RLock()
	re, ok := keywordPatterns[keyword]
	keywordMu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword) + `\s*[:=-]?\s*(` + number + `)`)

	keywordMu.Lock()
	keywordPatterns[keyword] = re
	keywordMu.Unlock()
	return re
}

// Extract maps one line to a value vector of len(series). The mode is
// chosen per call from the configuration, not per series: keyword mode
// when at least one visible series has a keyword, positional mode
// otherwise. It returns ok=false when every slot came out undefined: the
// line carries no data but that is not an error.
func Extract(line string, series []telemetry.SeriesConfig) ([]telemetry.Value, bool) {
	values := make([]telemetry.Value, len(series))

	if keywordMode(series) {
		extractKeyword(line, series, values)
	} else {
		extractPositional(line, series, values)
	}

	for _, v := range values {
		if v.Defined {
			return values, true
		}
	}
	return values, false
}

// keywordMode reports whether any visible series has a keyword configured.
func keywordMode(series []telemetry.SeriesConfig) bool {
	for _, s := range series {
		if s.Visible && s.Keyword != "" {
			return true
		}
	}
	return false
}

// extractKeyword fills values by searching the full line per series. First
// match wins; series without a keyword, or hidden, stay undefined even if
// the line carries positional numbers.
func extractKeyword(line string, series []telemetry.SeriesConfig, values []telemetry.Value) {
	for i, s := range series {
		if !s.Visible || s.Keyword == "" {
			continue
		}
		m := keywordPattern(s.Keyword).FindStringSubmatch(line)
		if m == nil {
			continue
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		values[i] = telemetry.NewValue(f)
	}
}

// extractPositional assigns the line's numbers to series by position.
// Hidden series still consume their positional slot; their value is
// discarded rather than shifted to the next series.
func extractPositional(line string, series []telemetry.SeriesConfig, values []telemetry.Value) {
	numbers := numberPattern.FindAllString(line, -1)
	for i, s := range series {
		if !s.Visible || i >= len(numbers) {
			continue
		}
		f, err := strconv.ParseFloat(numbers[i], 64)
		if err != nil {
			continue
		}
		values[i] = telemetry.NewValue(f)
	}
}
