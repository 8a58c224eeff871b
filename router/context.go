package router

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/imkonsowa/restaurant-qa/chunker"
	"github.com/imkonsowa/restaurant-qa/models"
	"github.com/imkonsowa/restaurant-qa/vectorindex"
)

const blockSeparator = "\n---\n"

// semanticContext numbers the hits nearest first and cites the source of
// each block.
func (r *Router) semanticContext(hits []vectorindex.Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		c := r.store.Chunk(h.Ordinal)
		blocks[i] = fmt.Sprintf("[%d] %s / %s (distance %.4f)\n%s",
			i+1, c.Metadata.Restaurant, c.Metadata.Item, h.Distance, c.Text)
	}

	return joinBounded(blocks, r.opts.MaxContextChars)
}

func (r *Router) evidenceContext(texts []string) string {
	blocks := make([]string, len(texts))
	for i, text := range texts {
		blocks[i] = fmt.Sprintf("[%d] %s", i+1, text)
	}

	return joinBounded(blocks, r.opts.MaxContextChars)
}

// itemText is the chunk text of a menu item of the catalog.
func (r *Router) itemText(rest *models.Restaurant, item *models.MenuItem) string {
	if ordinal, ok := r.ordinals[item]; ok {
		return r.store.Texts()[ordinal]
	}

	return chunker.Render(*rest, *item)
}

// joinBounded joins whole blocks while the result stays within limit
// characters. Only a first block longer than limit is cut, at a rune
// boundary.
func joinBounded(blocks []string, limit int) string {
	sepLen := utf8.RuneCountInString(blockSeparator)

	var b strings.Builder
	n := 0
	for i, block := range blocks {
		size := utf8.RuneCountInString(block)
		if i > 0 {
			size += sepLen
		}

		if n+size > limit {
			if i == 0 {
				return truncateRunes(block, limit)
			}
			break
		}

		if i > 0 {
			b.WriteString(blockSeparator)
		}
		b.WriteString(block)
		n += size
	}

	return b.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos]
		}
		i++
	}

	return s
}
