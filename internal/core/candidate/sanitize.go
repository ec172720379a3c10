package candidate

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// heimdall writes records from fixed-size C buffers, so a datagram may carry NUL
// padding around the line. Anything inside the line is left for Parse to judge
var illFormed = sync.Pool{
	New: func() any { return runes.ReplaceIllFormed() },
}

func isPad(r rune) bool { return r == 0 || unicode.IsSpace(r) }

// Sanitize trims surrounding NUL padding and whitespace and replaces ill-formed UTF-8
// with U+FFFD. Embedded control runes are kept so the field holding them fails to parse
func Sanitize(s string) string {
	s = strings.TrimFunc(s, isPad)
	if utf8.ValidString(s) {
		return s
	}
	tr := illFormed.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	illFormed.Put(tr)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return out
}
