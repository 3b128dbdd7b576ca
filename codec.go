package main

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidReference is returned when a cell reference string does not
// parse as column letters followed by a 1-based row number.
var ErrInvalidReference = errors.New("invalid cell reference")

var refPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// encodeColumn converts a 0-based column index to bijective base-26
// letters: 0 -> "A", 25 -> "Z", 26 -> "AA", 701 -> "ZZ", 702 -> "AAA".
func encodeColumn(index int) string {
	n := index + 1
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// decodeColumn is the inverse of encodeColumn.
func decodeColumn(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("%w: empty column", ErrInvalidReference)
	}
	idx := 0
	for i := 0; i < len(letters); i++ {
		ch := letters[i]
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidReference, letters)
		}
		idx = idx*26 + int(ch-'A'+1)
	}
	return idx - 1, nil
}

// encodeRef builds the external reference for a 0-based (row, col) pair.
// "A1" is (0, 0).
func encodeRef(row, col int) string {
	return encodeColumn(col) + strconv.Itoa(row+1)
}

// parseRef decodes an external reference like "A1" or "AA12" into a
// 0-based (row, col) pair. Lower-case letters are accepted and normalized.
func parseRef(ref string) (row, col int, err error) {
	m := refPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(ref)))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	col, err = decodeColumn(m[1])
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("%w: row in %q", ErrInvalidReference, ref)
	}
	return n - 1, col, nil
}
