package identity

import "time"

const nationalIDLen = 11

// checksum digit only exists on documents issued for people born from this year on.
const checksumSinceYear = 2014

// IsValidNationalID reports whether id is a well-formed 11-digit national identity number:
// YYMMDD birth date, four sequence digits and a check digit. Malformed input is false.
func IsValidNationalID(id string) bool {
	if len(id) != nationalIDLen {
		return false
	}
	var d [nationalIDLen]int
	for i := 0; i < nationalIDLen; i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return false
		}
		d[i] = int(c - '0')
	}

	year := centuryOf(d[6]) + d[0]*10 + d[1]
	month := d[2]*10 + d[3]
	day := d[4]*10 + d[5]
	if !validDate(year, month, day) {
		return false
	}
	if year < checksumSinceYear {
		return true
	}
	return CheckDigit(id[:nationalIDLen-1]) == d[10]
}

// CheckDigit computes the check digit for the first ten digits of a national id.
// It returns -1 if digits is not ten ASCII digits.
func CheckDigit(digits string) int {
	if len(digits) != nationalIDLen-1 {
		return -1
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return -1
		}
		p := int(c-'0') * (1 + i%2)
		if p >= 10 {
			p = p/10 + p%10
		}
		sum += p
	}
	return (10 - sum%10) % 10
}

// centuryOf maps the first sequence digit to the birth century.
func centuryOf(d int) int {
	switch {
	case d == 9:
		return 1800
	case d >= 6:
		return 2000
	default:
		return 1900
	}
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}
