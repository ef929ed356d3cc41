package app

import (
	"errors"
	"fmt"
)

// Error classes. Fatal classes abort the run before anything is written to
// the calendar; ErrScrapeParse and ErrCalendarService are collected per item.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrEnvironment     = errors.New("environment error")
	ErrAddressNotFound = errors.New("address not found")
	ErrScrapeStructure = errors.New("unexpected page structure")
	ErrScrapeParse     = errors.New("unparseable schedule row")
	ErrAuthentication  = errors.New("authentication error")
	ErrCalendarService = errors.New("calendar service error")
)

// Process exit codes
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitEnvironment   = 3
	ExitAddress       = 4
	ExitStructure     = 5
	ExitAuth          = 6
)

// ParseError describes a schedule row whose date could not be parsed
type ParseError struct {
	Row      int
	Label    string
	DateText string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d (%q): cannot parse date %q: %v", e.Row, e.Label, e.DateText, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrScrapeParse, e.Err}
}

// IsFatal reports whether err belongs to a class that aborts the whole run
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrScrapeParse), errors.Is(err, ErrCalendarService):
		return false
	}
	return true
}

// ExitCode maps a run error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	case errors.Is(err, ErrEnvironment):
		return ExitEnvironment
	case errors.Is(err, ErrAddressNotFound):
		return ExitAddress
	case errors.Is(err, ErrScrapeStructure):
		return ExitStructure
	case errors.Is(err, ErrAuthentication):
		return ExitAuth
	}
	return ExitFailure
}
