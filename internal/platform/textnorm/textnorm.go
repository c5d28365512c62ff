// Package textnorm normalizes free-form place text into stable cache keys.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Address returns s Unicode-normalized (NFKC), case-folded and with
// whitespace collapsed to single spaces.
func Address(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}
