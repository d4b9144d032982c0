package index

import (
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
)

// MinTokenLength is the shortest keyword kept, in characters.
const MinTokenLength = 2

// PolicyVersion identifies the tokenization policy. Cached index
// snapshots built under a different policy are discarded on load.
const PolicyVersion = "alnum-lower-min2/v1"

// Tokenizer applies the keyword policy shared by indexing and querying:
// split on anything that is not a letter or digit, lower-case, then drop
// tokens shorter than MinTokenLength. No stemming and no stop words.
type Tokenizer struct {
	analyzer *analysis.DefaultAnalyzer
}

// NewTokenizer builds the analysis chain.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		analyzer: &analysis.DefaultAnalyzer{
			Tokenizer: alnumTokenizer{},
			TokenFilters: []analysis.TokenFilter{
				lowercase.NewLowerCaseFilter(),
				minLengthFilter{min: MinTokenLength},
			},
		},
	}
}

// Tokens returns keywords in text order, duplicates included.
func (t *Tokenizer) Tokens(text string) []string {
	stream := t.analyzer.Analyze([]byte(text))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out
}

// Keywords collapses text into keyword -> occurrence count.
func (t *Tokenizer) Keywords(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range t.analyzer.Analyze([]byte(text)) {
		counts[string(tok.Term)]++
	}
	return counts
}

// alnumTokenizer emits maximal runs of Unicode letters and digits.
type alnumTokenizer struct{}

var _ analysis.Tokenizer = alnumTokenizer{}

// Tokenize implements analysis.Tokenizer. Start and End are byte offsets.
func (alnumTokenizer) Tokenize(input []byte) analysis.TokenStream {
	var (
		stream analysis.TokenStream
		start  = -1
		pos    = 1
	)

	emit := func(end int) {
		stream = append(stream, &analysis.Token{
			Term:     append([]byte(nil), input[start:end]...),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		start = -1
	}

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			emit(i)
		}
		i += size
	}
	if start >= 0 {
		emit(len(input))
	}
	return stream
}

// minLengthFilter drops tokens shorter than min characters.
type minLengthFilter struct {
	min int
}

var _ analysis.TokenFilter = minLengthFilter{}

// Filter implements analysis.TokenFilter.
func (f minLengthFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if utf8.RuneCount(tok.Term) >= f.min {
			out = append(out, tok)
		}
	}
	return out
}
