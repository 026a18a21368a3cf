package anchor

import (
	"math"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Ratio returns the similarity of a and b on a 0-100 scale: twice the number of characters in
// their longest common subsequence over the total number of characters.
func Ratio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 100
	}
	dmp := diffmatchpatch.New()
	// No deadline: the diff must be minimal for the score to be exact.
	dmp.DiffTimeout = 0
	common := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			common += utf8.RuneCountInString(d.Text)
		}
	}
	return int(math.Round(float64(2*common) * 100 / float64(la+lb)))
}
