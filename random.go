package fundnova

import (
	"math/rand"
	"strings"
)

const referenceCharacters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomReferenceSuffix returns a code fragment donors have to copy into
// their banking app, so the alphabet skips lookalike characters (0/O, 1/I).
func RandomReferenceSuffix(size int) string {
	sb := strings.Builder{}
	sb.Grow(size)
	for ; size > 0; size-- {
		sb.WriteByte(referenceCharacters[rand.Intn(len(referenceCharacters))])
	}
	return sb.String()
}
