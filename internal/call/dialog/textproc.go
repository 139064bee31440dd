// Package dialog implements the websocket interview protocol: the wire
// message types exchanged with the browser, the text processing that cleans
// candidate input, and the turn-taking engine that drives a call from
// greeting to goodbye.
package dialog

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// echoSimilarityThreshold is the minimum normalized similarity between
// candidate input and Emma's last line for the input to be treated as an
// acoustic echo of her speech.
const echoSimilarityThreshold = 0.82

// Substring echo detection only applies to reasonably long texts, and only
// when the shorter text covers most of the longer one.
const (
	echoSubstringMinLen = 30
	echoSubstringRatio  = 0.88
)

// Sanitize strips control characters (keeping newline and tab), replaces
// Unicode line separators with spaces, and collapses all whitespace runs
// into single spaces.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\u2028' || r == '\u2029':
			b.WriteByte(' ')
		case r == '\n' || r == '\t' || r >= 32:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// MergeFragments joins two successive candidate text fragments into one
// utterance. Client-side transcription often resends a growing prefix of the
// same sentence, so containment and boundary overlap are deduplicated before
// falling back to plain concatenation.
func MergeFragments(existing, incoming string) string {
	left := Sanitize(existing)
	right := Sanitize(incoming)
	if left == "" {
		return right
	}
	if right == "" {
		return left
	}

	if strings.HasPrefix(right, left) {
		return right
	}
	if strings.HasPrefix(left, right) {
		return left
	}

	maxOverlap := len(left)
	if len(right) < maxOverlap {
		maxOverlap = len(right)
	}
	for size := maxOverlap; size > 0; size-- {
		if strings.EqualFold(left[len(left)-size:], right[:size]) {
			return Sanitize(left + right[size:])
		}
	}

	return Sanitize(left + " " + right)
}

// LooksLikeHumanText reports whether a transcription result plausibly came
// from a person speaking: at least two characters with a minimum share of
// letters and digits. Filters out transcriber noise like "..." or "[♪]".
func LooksLikeHumanText(text string) bool {
	if len(text) < 2 {
		return false
	}
	alnum := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if alnum == 0 {
		return false
	}
	return float64(alnum)/float64(total) >= 0.25
}

// IsEcho reports whether candidate input is most likely the client's
// transcription picking up Emma's own speech: near-identical to her last
// line after normalization, or a long near-complete substring of it.
func IsEcho(candidateText, lastEmmaText string) bool {
	if candidateText == "" || lastEmmaText == "" {
		return false
	}
	candidate := normalizeForSimilarity(candidateText)
	emma := normalizeForSimilarity(lastEmmaText)
	if candidate == "" || emma == "" {
		return false
	}
	if candidate == emma {
		return true
	}
	if similarity(candidate, emma) >= echoSimilarityThreshold {
		return true
	}
	if len(candidate) >= echoSubstringMinLen && len(emma) >= echoSubstringMinLen {
		shorter, longer := candidate, emma
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		if strings.Contains(longer, shorter) &&
			float64(len(shorter))/float64(len(longer)) >= echoSubstringRatio {
			return true
		}
	}
	return false
}

// normalizeForSimilarity lowercases, replaces every non-alphanumeric rune
// with a space, and collapses whitespace.
func normalizeForSimilarity(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity is the Levenshtein-based similarity of two strings in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}

// roleKeywords mark a candidate utterance as being about the role itself
// rather than an answer to Emma's question.
var roleKeywords = []string{
	"role",
	"job",
	"responsibilit",
	"team",
	"stack",
	"expectation",
	"position",
	"company",
}

// questionStarters recognize interrogative phrasing that lacks a question
// mark, as speech transcriptions usually do.
var questionStarters = []string{
	"what ",
	"how ",
	"why ",
	"when ",
	"where ",
	"which ",
	"can you ",
	"could you ",
	"would you ",
	"is the ",
	"are the ",
}

// IsRoleQuestion reports whether candidate text is a question about the role
// that Emma should answer from the role context before moving on.
func IsRoleQuestion(text string) bool {
	if len(text) < 3 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(text))

	keyword := false
	for _, k := range roleKeywords {
		if strings.Contains(lower, k) {
			keyword = true
			break
		}
	}
	if !keyword {
		return false
	}

	if strings.Contains(lower, "?") {
		return true
	}
	for _, s := range questionStarters {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	return false
}
