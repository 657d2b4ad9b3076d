// Package period decides which (year, quarter) a source file's rows belong to.
package period

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Source names the rule that resolved a period
type Source string

const (
	SourceNone     Source = ""
	SourceFileName Source = "file_name"
	SourceDate     Source = "date_column"
	SourcePath     Source = "path"
)

// Period is a calendar quarter. The zero value means unresolved.
type Period struct {
	Year    int
	Quarter int
	Source  Source
}

// Resolved reports whether both year and quarter are known
func (p Period) Resolved() bool {
	return p.Year != 0 && p.Quarter != 0
}

func (p Period) String() string {
	if !p.Resolved() {
		return "unresolved"
	}
	return strconv.Itoa(p.Year) + "-Q" + strconv.Itoa(p.Quarter)
}

var (
	quarterYearName = regexp.MustCompile(`(?:^|[^0-9])([1-4])T([0-9]{4})(?:[^0-9]|$)`)
	yearQuarterName = regexp.MustCompile(`(20[0-9]{2})[^0-9]?Q([1-4])`)
	yearSegment     = regexp.MustCompile(`^(20[0-9]{2})`)
	quarterSegment  = regexp.MustCompile(`^Q([1-4])`)
)

// Resolver applies the resolution rules in priority order
type Resolver struct {
	MinYear int
	MaxYear int
}

// NewResolver accepts years from 1900 up to the year after now
func NewResolver(now time.Time) Resolver {
	return Resolver{MinYear: 1900, MaxYear: now.Year() + 1}
}

func (r Resolver) plausible(year int) bool {
	return year >= r.MinYear && (r.MaxYear == 0 || year <= r.MaxYear)
}

// FromFileName looks for "{quarter}T{year}" in the base name, e.g. "2T2024.csv"
func (r Resolver) FromFileName(path string) Period {
	base := strings.ToUpper(filepath.Base(path))
	for _, m := range quarterYearName.FindAllStringSubmatch(base, -1) {
		q, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		if y >= 2000 && r.plausible(y) {
			return Period{Year: y, Quarter: q, Source: SourceFileName}
		}
	}
	return Period{}
}

// FromDates uses the first valid date. Invalid dates are zero times.
func (r Resolver) FromDates(dates []time.Time) Period {
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if !r.plausible(d.Year()) {
			continue
		}
		return Period{Year: d.Year(), Quarter: QuarterOf(d), Source: SourceDate}
	}
	return Period{}
}

// FromPath scans directory segments for "20xx" and "Q1".."Q4" prefixes, then
// falls back to a "2024Q1" or "2024_Q1" form in the base name. Callers pass
// the path relative to the input root.
func (r Resolver) FromPath(path string) Period {
	var year, quarter int
	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for _, seg := range segments {
		seg = strings.ToUpper(seg)
		if m := yearSegment.FindStringSubmatch(seg); m != nil {
			if y, _ := strconv.Atoi(m[1]); r.plausible(y) {
				year = y
			}
		}
		if m := quarterSegment.FindStringSubmatch(seg); m != nil {
			quarter, _ = strconv.Atoi(m[1])
		}
	}

	if year == 0 || quarter == 0 {
		if m := yearQuarterName.FindStringSubmatch(strings.ToUpper(filepath.Base(path))); m != nil {
			y, _ := strconv.Atoi(m[1])
			q, _ := strconv.Atoi(m[2])
			if r.plausible(y) {
				year, quarter = y, q
			}
		}
	}

	if year == 0 || quarter == 0 {
		return Period{}
	}
	return Period{Year: year, Quarter: quarter, Source: SourcePath}
}

// Resolve returns the first period found by file name, dates, then path.
// An unresolved period is returned as the zero value, never guessed.
func (r Resolver) Resolve(path string, dates []time.Time) Period {
	if p := r.FromFileName(path); p.Resolved() {
		return p
	}
	if p := r.FromDates(dates); p.Resolved() {
		return p
	}
	return r.FromPath(path)
}

// QuarterOf returns the calendar quarter (1..4) of t
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}
