// Package romanize transliterates hangul text using the Revised Romanization
// jamo tables. It is the fallback rendering for quoted spans when the
// translation service fails.
package romanize

import "strings"

const (
	syllableBase = 0xAC00
	syllableLast = 0xD7A3

	medialCount = 21
	finalCount  = 28
)

var initials = [19]string{
	"g", "kk", "n", "d", "tt", "r", "m", "b", "pp", "s",
	"ss", "", "j", "jj", "ch", "k", "t", "p", "h",
}

var medials = [21]string{
	"a", "ae", "ya", "yae", "eo", "e", "yeo", "ye", "o", "wa",
	"wae", "oe", "yo", "u", "wo", "we", "wi", "yu", "eu", "ui", "i",
}

var finals = [28]string{
	"", "g", "kk", "gs", "n", "nj", "nh", "d", "l", "lg",
	"lm", "lb", "ls", "lt", "lp", "lh", "m", "b", "bs", "s",
	"ss", "ng", "j", "ch", "k", "t", "p", "h",
}

// Convert transliterates every hangul syllable block in s; all other runes
// pass through unchanged.
func Convert(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < syllableBase || r > syllableLast {
			b.WriteRune(r)
			continue
		}
		offset := int(r - syllableBase)
		b.WriteString(initials[offset/(medialCount*finalCount)])
		b.WriteString(medials[(offset/finalCount)%medialCount])
		b.WriteString(finals[offset%finalCount])
	}
	return b.String()
}
