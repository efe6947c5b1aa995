// Package chunk turns commit records into bounded, embeddable text chunks.
package chunk

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/seanblong/timemachine/pkg/models"
)

// DefaultSize is the maximum chunk length in characters, sized to fit
// comfortably within common embedding model input limits.
const DefaultSize = 1024

// Splitter derives chunks from commit records. Splitting is deterministic:
// the same record always yields the same boundaries and the same IDs.
type Splitter struct {
	Size int
}

func NewSplitter(size int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	return &Splitter{Size: size}
}

// Split concatenates the record's fields into one normalized text blob and
// cuts it into chunks no longer than Size, preferring sentence boundaries.
// Records shorter than Size yield exactly one chunk.
func (s *Splitter) Split(rec models.CommitRecord) []models.Chunk {
	content := Concat(rec)

	var chunks []models.Chunk
	for i, text := range splitText(content, s.Size) {
		chunks = append(chunks, models.Chunk{
			ID:      TimeID(rec.Date, rec.Hash, i),
			Date:    rec.Date,
			Content: text,
			Meta: models.CommitMeta{
				Commit:  rec.Hash,
				Author:  rec.Author,
				Date:    rec.Date,
				Subject: rec.Subject,
			},
		})
	}
	return chunks
}

// Concat builds the text blob that gets embedded for a record. Whitespace is
// normalized so that chunk boundaries are stable across extraction sources.
func Concat(rec models.CommitRecord) string {
	parts := []string{
		"Date: " + rec.Date.Format(time.RFC3339),
		"Author: " + rec.Author,
		rec.Subject,
		rec.Body,
	}
	return normalize(strings.Join(parts, " "))
}

// normalize collapses whitespace runs into single spaces and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// splitText packs whole sentences greedily into chunks of at most size
// characters. A single sentence longer than size is hard-split at word
// boundaries. Joining the returned chunks with a single space reconstructs
// the input.
func splitText(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var out []string
	var cur strings.Builder
	for _, sent := range sentences(text) {
		for _, piece := range hardSplit(sent, size) {
			if cur.Len() == 0 {
				cur.WriteString(piece)
				continue
			}
			if cur.Len()+1+len(piece) <= size {
				cur.WriteByte(' ')
				cur.WriteString(piece)
			} else {
				out = append(out, cur.String())
				cur.Reset()
				cur.WriteString(piece)
			}
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// sentences splits normalized text after '.', '!' or '?' followed by a space.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if (runes[i] == '.' || runes[i] == '!' || runes[i] == '?') && unicode.IsSpace(runes[i+1]) {
			out = append(out, strings.TrimSpace(string(runes[start:i+1])))
			start = i + 2
		}
	}
	if start < len(runes) {
		out = append(out, strings.TrimSpace(string(runes[start:])))
	}
	return out
}

// hardSplit cuts a single over-long sentence at word boundaries, falling back
// to fixed-width cuts for unbroken runs.
func hardSplit(sent string, size int) []string {
	if len(sent) <= size {
		return []string{sent}
	}

	var out []string
	words := strings.Fields(sent)
	var cur strings.Builder
	for _, w := range words {
		for len(w) > size {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			// Back the cut up to a rune boundary so multi-byte text
			// stays valid UTF-8.
			cut := size
			for cut > 0 && !utf8.RuneStart(w[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
			out = append(out, w[:cut])
			w = w[cut:]
		}
		if cur.Len() == 0 {
			cur.WriteString(w)
		} else if cur.Len()+1+len(w) <= size {
			cur.WriteByte(' ')
			cur.WriteString(w)
		} else {
			out = append(out, cur.String())
			cur.Reset()
			cur.WriteString(w)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
