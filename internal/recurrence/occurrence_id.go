package recurrence

import (
	"github.com/tazhate/solcal/internal/domain"
)

const suffixLen = 9 // "_" + YYYYMMDD

// OccurrenceID returns "<uid>_<YYYYMMDD>"
func OccurrenceID(uid string, d domain.Date) string {
	return uid + "_" + d.Compact()
}

// MasterUID strips a trailing "_" plus exactly 8 digits. Plain uids are
// returned unchanged.
func MasterUID(id string) string {
	if hasSuffix(id) {
		return id[:len(id)-suffixLen]
	}
	return id
}

// OccurrenceDate returns the date encoded in an occurrence id. ok is false for
// plain uids and for suffixes that are not a real calendar date.
func OccurrenceDate(id string) (domain.Date, bool) {
	if !hasSuffix(id) {
		return domain.Date{}, false
	}
	d, err := domain.ParseCompactDate(id[len(id)-8:])
	if err != nil {
		return domain.Date{}, false
	}
	return d, true
}

// IsOccurrenceID reports whether id carries an occurrence suffix with a valid date
func IsOccurrenceID(id string) bool {
	_, ok := OccurrenceDate(id)
	return ok
}

func hasSuffix(id string) bool {
	if len(id) < suffixLen || id[len(id)-suffixLen] != '_' {
		return false
	}
	for i := len(id) - 8; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
