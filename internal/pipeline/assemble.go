package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// pageBreakFormat separates pages in the assembled output. The page
// number is one-based for readability.
const pageBreakFormat = "\n\n--- Page %d ---\n\n"

// PageText is the reassembled text of one page.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// pageTexts groups successful chunk results by page and joins each
// page's chunks in ascending chunk order with a single newline. Failed
// chunks are skipped; pages with no successful chunks are absent.
func pageTexts(results []ChunkResult) []PageText {
	byPage := make(map[int][]ChunkResult)
	for _, r := range results {
		if !r.Succeeded {
			continue
		}
		byPage[r.Page] = append(byPage[r.Page], r)
	}

	pages := make([]PageText, 0, len(byPage))
	for pg, chunks := range byPage {
		sort.Slice(chunks, func(a, b int) bool {
			return chunks[a].Chunk < chunks[b].Chunk
		})

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		pages = append(pages, PageText{Page: pg, Text: strings.Join(texts, "\n")})
	}

	sort.Slice(pages, func(a, b int) bool {
		return pages[a].Page < pages[b].Page
	})
	return pages
}

// assemble joins per-page texts back into one document string, with a
// numbered page break marker between pages.
func assemble(results []ChunkResult) string {
	var sb strings.Builder
	for i, pt := range pageTexts(results) {
		if i > 0 {
			sb.WriteString(fmt.Sprintf(pageBreakFormat, pt.Page+1))
		}
		sb.WriteString(pt.Text)
	}
	return sb.String()
}
