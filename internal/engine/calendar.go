package engine

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// DaysPerSeason and SeasonsPerYear define the calendar.
const (
	DaysPerSeason  = 30
	SeasonsPerYear = 4
)

var seasonNames = [SeasonsPerYear]string{"Spring", "Summer", "Autumn", "Winter"}

// Date is a calendar position derived from a day count. Year and Day
// count from 1.
type Date struct {
	Year   uint64 `json:"year"`
	Season string `json:"season"`
	Day    uint64 `json:"day"`
}

// DateOf converts elapsed days to a calendar date. Day 0 is the first day
// of Spring, Year 1.
func DateOf(day uint64) Date {
	seasons := day / DaysPerSeason
	return Date{
		Year:   seasons/SeasonsPerYear + 1,
		Season: seasonNames[seasons%SeasonsPerYear],
		Day:    day%DaysPerSeason + 1,
	}
}

// SimTime returns a human-readable date such as "3rd of Summer, Year 2".
func SimTime(day uint64) string {
	d := DateOf(day)
	return fmt.Sprintf("%s of %s, Year %d", humanize.Ordinal(int(d.Day)), d.Season, d.Year)
}
