// Package chunker implements length-aware, boundary-respecting text
// segmentation: paragraphs, then sentences, then clauses, greedily
// packed into chunks sized for a backend profile's generation
// ceiling.
package chunker

import (
	"regexp"
	"strings"

	"github.com/agentplexus/unified-tts-gateway/internal/profile"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// Chunk is one text segment produced by the cascade.
type Chunk struct {
	Index      int
	Text       string
	IsTerminal bool
}

// abbreviations are protected from being mistaken for sentence
// boundaries by the sentence-level splitter.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "st.": true, "vs.": true, "etc.": true,
	"e.g.": true, "i.e.": true, "approx.": true, "no.": true,
}

var (
	paragraphSplit = regexp.MustCompile(`\n{2,}`)
	// Matches a sentence terminator followed by whitespace and an
	// uppercase letter (or end of string), capturing the terminator so
	// it stays attached to the preceding sentence.
	sentenceBoundary = regexp.MustCompile(`([.!?…])(\s+)([A-Z"'(]|$)`)
	decimalNumber    = regexp.MustCompile(`\d\.\d`)
	wordSplit        = regexp.MustCompile(`\s+`)
)

// Split segments text according to profile p, returning chunks each
// within p.OptimalWords (soft target) and never exceeding p.MaxWords
// or p.MaxChars (hard ceilings). Returns a ttserr.KindChunkTooLarge error
// if even clause-level splitting cannot bring a unit under the
// ceiling.
func Split(text string, p profile.Profile) ([]Chunk, error) {
	normalized := normalizeWhitespace(text)
	if normalized == "" {
		return nil, ttserr.New(ttserr.KindInvalidRequest, "empty input")
	}

	if !p.NeedsChunking || (wordCount(normalized) <= p.OptimalWords && len(normalized) <= p.MaxChars) {
		return []Chunk{{Index: 0, Text: normalized, IsTerminal: true}}, nil
	}

	// cascade splits on paragraph boundaries first, so it needs the
	// original blank-line structure; per-unit whitespace is normalized
	// once the leaf units are produced (sentences/clauses never
	// contain the paragraph-separating blank lines).
	units, err := cascade(strings.TrimSpace(text), p)
	if err != nil {
		return nil, err
	}

	packed := pack(units, p)
	chunks := make([]Chunk, len(packed))
	for i, text := range packed {
		chunks[i] = Chunk{Index: i, Text: text, IsTerminal: i == len(packed)-1}
	}
	return chunks, nil
}

// cascade produces the leaf text units (paragraph -> sentence ->
// clause), failing with ChunkTooLarge if a unit still exceeds
// p.MaxWords after clause-level splitting.
func cascade(text string, p profile.Profile) ([]string, error) {
	var units []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, rawSentence := range splitSentences(para) {
			sentence := normalizeWhitespace(rawSentence)
			if sentence == "" {
				continue
			}
			if wordCount(sentence) <= p.MaxWords && len(sentence) <= p.MaxChars {
				units = append(units, sentence)
				continue
			}
			clauses := splitClauses(sentence)
			for _, clause := range clauses {
				clause = normalizeWhitespace(clause)
				if clause == "" {
					continue
				}
				if wordCount(clause) > p.MaxWords || len(clause) > p.MaxChars {
					return nil, ttserr.New(ttserr.KindChunkTooLarge,
						"unit of %d words / %d chars exceeds ceiling (max_words=%d, max_chars=%d) with no further split point",
						wordCount(clause), len(clause), p.MaxWords, p.MaxChars)
				}
				units = append(units, clause)
			}
		}
	}
	return units, nil
}

// splitSentences splits a paragraph on terminators, protecting the
// small abbreviation allow-list and decimal numbers from being
// mistaken for sentence ends.
func splitSentences(para string) []string {
	protected := protectAbbreviations(para)

	var sentences []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringSubmatchIndex(protected, -1) {
		end := loc[3] // end of the terminator group; the whitespace after it is trimmed off the next sentence
		sentences = append(sentences, strings.TrimSpace(unprotectAbbreviations(protected[last:end])))
		last = end
	}
	if last < len(protected) {
		sentences = append(sentences, strings.TrimSpace(unprotectAbbreviations(protected[last:])))
	}
	return sentences
}

const abbrevPlaceholder = "\x00ABBR\x00"

// protectAbbreviations swaps the '.' in protected abbreviations and
// decimal numbers for a placeholder rune so the sentence boundary
// regexp never matches inside them.
func protectAbbreviations(s string) string {
	s = decimalNumber.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Replace(m, ".", abbrevPlaceholder, 1)
	})
	lower := strings.ToLower(s)
	for abbr := range abbreviations {
		idx := 0
		for {
			pos := strings.Index(lower[idx:], abbr)
			if pos < 0 {
				break
			}
			pos += idx
			idx = pos + len(abbr)
			if pos > 0 && lower[pos-1] >= 'a' && lower[pos-1] <= 'z' {
				continue // tail of a longer word ("first."), not the abbreviation
			}
			s = s[:pos] + strings.Replace(s[pos:pos+len(abbr)], ".", abbrevPlaceholder, 1) + s[pos+len(abbr):]
			lower = strings.ToLower(s)
		}
	}
	return s
}

func unprotectAbbreviations(s string) string {
	return strings.ReplaceAll(s, abbrevPlaceholder, ".")
}

// splitClauses splits a single over-long sentence at ';', ':', an
// em-dash, or (failing those) the nearest comma past the midpoint.
// The separator stays attached to the left clause so rejoined chunks
// preserve the original punctuation.
func splitClauses(sentence string) []string {
	for _, sep := range []string{";", ":", "—"} {
		if strings.Contains(sentence, sep) {
			parts := strings.SplitAfter(sentence, sep)
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if t := strings.TrimSpace(p); t != "" {
					out = append(out, t)
				}
			}
			if len(out) > 1 {
				return out
			}
		}
	}

	commaPositions := allIndexes(sentence, ",")
	if len(commaPositions) == 0 {
		return []string{sentence}
	}
	mid := len(sentence) / 2
	splitAt := commaPositions[len(commaPositions)-1]
	for _, pos := range commaPositions {
		if pos >= mid {
			splitAt = pos
			break
		}
	}
	left := strings.TrimSpace(sentence[:splitAt+1])
	right := strings.TrimSpace(sentence[splitAt+1:])
	if left == "" || left == "," || right == "" {
		return []string{sentence}
	}
	return []string{left, right}
}

func allIndexes(s, sep string) []int {
	var out []int
	offset := 0
	for {
		i := strings.Index(s[offset:], sep)
		if i < 0 {
			return out
		}
		out = append(out, offset+i)
		offset += i + len(sep)
	}
}

// pack greedily packs consecutive units into chunks up to
// OptimalWords (soft target), never exceeding MaxChars (hard
// ceiling). A single unit larger than OptimalWords but within
// MaxWords still forms its own chunk.
func pack(units []string, p profile.Profile) []string {
	var chunks []string
	var current []string
	currentWords := 0
	currentChars := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			currentWords = 0
			currentChars = 0
		}
	}

	for _, u := range units {
		uw := wordCount(u)
		uc := len(u)
		if len(current) > 0 && (currentWords+uw > p.OptimalWords || currentChars+1+uc > p.MaxChars) {
			flush()
		}
		if len(current) > 0 {
			currentChars++ // joining space
		}
		current = append(current, u)
		currentWords += uw
		currentChars += uc
	}
	flush()
	return chunks
}

func wordCount(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return len(wordSplit.Split(strings.TrimSpace(s), -1))
}

// normalizeWhitespace collapses runs of whitespace to single spaces
// and trims the result, so rejoining chunks with single spaces
// reproduces the normalized input.
func normalizeWhitespace(s string) string {
	return strings.TrimSpace(wordSplit.ReplaceAllString(s, " "))
}

// NormalizeWhitespace exposes normalizeWhitespace for callers that
// need to compare chunker output against the normalized input.
func NormalizeWhitespace(s string) string { return normalizeWhitespace(s) }
