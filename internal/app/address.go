package app

import (
	"fmt"
	"strings"
	"unicode"
)

// ResolveAddress validates the configured address fields.
// Every missing field is reported, not just the first one.
func ResolveAddress(suburb, street, houseNumber string) (Address, error) {
	addr := Address{
		Suburb:      strings.TrimSpace(suburb),
		Street:      strings.TrimSpace(street),
		HouseNumber: strings.TrimSpace(houseNumber),
	}

	var missing []string
	if addr.Suburb == "" {
		missing = append(missing, EnvSuburb)
	}
	if addr.Street == "" {
		missing = append(missing, EnvStreet)
	}
	if addr.HouseNumber == "" {
		missing = append(missing, EnvHouseNumber)
	}
	if len(missing) > 0 {
		return Address{}, fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return addr, nil
}

// Query is the text typed into the council's address search box
func (a Address) Query() string {
	return fmt.Sprintf("%s %s, %s", a.HouseNumber, a.Street, a.Suburb)
}

func (a Address) String() string {
	return a.Query()
}

// Matches reports whether a suggestion is exactly this address: it must
// start with "<house> <street>" as whole words, followed directly by the
// suburb ("12 Main St, EXAMPLE NSW 2154").
func (a Address) Matches(suggestion string) bool {
	s := normalizeAddress(suggestion)
	prefix := normalizeAddress(a.HouseNumber + " " + a.Street)
	suburb := normalizeAddress(a.Suburb)
	if prefix == "" || suburb == "" || !strings.HasPrefix(s, prefix) {
		return false
	}

	rest := s[len(prefix):]
	if rest != "" && rest[0] != ' ' {
		return false
	}
	return strings.HasPrefix(rest+" ", " "+suburb+" ")
}

// PickSuggestion returns the index of the only suggestion matching the
// address. No match and more than one match are both ErrAddressNotFound.
func (a Address) PickSuggestion(suggestions []string) (int, error) {
	found := -1
	count := 0
	for i, s := range suggestions {
		if a.Matches(s) {
			if found < 0 {
				found = i
			}
			count++
		}
	}

	switch count {
	case 0:
		return -1, fmt.Errorf("%w: no suggestion matches %q (%d offered)", ErrAddressNotFound, a.Query(), len(suggestions))
	case 1:
		return found, nil
	default:
		return -1, fmt.Errorf("%w: %d suggestions match %q, refusing to guess", ErrAddressNotFound, count, a.Query())
	}
}

// normalizeAddress upper-cases s, turns punctuation into spaces and
// collapses runs of whitespace
func normalizeAddress(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
