package overlays

import (
	"strings"
	"unicode/utf8"

	"github.com/forPelevin/roughcut/internal/schema"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	MaxHeadlineWords = 8
	MaxHeadlineChars = 64
	MaxSublineChars  = 52
)

// PreferredCategories are tried in catalog order when the heuristic picks a
// template.
var PreferredCategories = []string{"lower-third", "callout", "title", "text"}

// IDFunc mints placement ids.
type IDFunc func() string

// Heuristic builds a single overlay for the longest segment of the chunk.
// It returns nil when the chunk has no segments or the catalog is empty.
func Heuristic(ch Chunk, catalog []types.CatalogEntry, newID IDFunc) []types.TemplatePlacement {
	if len(ch.Segments) == 0 || len(catalog) == 0 {
		return nil
	}
	best := ch.Segments[0]
	for _, s := range ch.Segments[1:] {
		if s.EndUs-s.StartUs > best.EndUs-best.StartUs {
			best = s
		}
	}
	entry := pickTemplate(catalog)
	headline, rest := splitHeadline(best.Text, MaxHeadlineWords)
	headline = truncateRunes(headline, MaxHeadlineChars)
	if headline == "" {
		headline = entry.Name
	}
	if headline == "" {
		headline = entry.ID
	}

	p := types.TemplatePlacement{
		ID:         newID(),
		TemplateID: entry.ID,
		Category:   entry.Category,
		StartUs:    max(best.StartUs, ch.StartUs),
		EndUs:      min(best.EndUs, ch.EndUs),
		Confidence: Confidence(best.Text),
		Content: types.PlacementContent{
			Headline: headline,
			Subline:  truncateRunes(rest, MaxSublineChars),
		},
		AssetQuery: AssetQuery(best.Text),
	}
	if p.EndUs <= p.StartUs {
		return nil
	}
	return []types.TemplatePlacement{p}
}

func pickTemplate(catalog []types.CatalogEntry) types.CatalogEntry {
	preferred := make(map[string]bool, len(PreferredCategories))
	for _, c := range PreferredCategories {
		preferred[c] = true
	}
	for _, e := range catalog {
		if preferred[strings.ToLower(e.Category)] {
			return e
		}
	}
	return catalog[0]
}

// Finalize post-processes overlays for a chunk: ranges are clamped to the
// chunk window, text is cut to the placement limits, ids are regenerated,
// categories follow the catalog and template ids missing from it are
// remapped round-robin by index. Overlays left empty after clamping or
// without a headline are dropped.
func Finalize(in []types.TemplatePlacement, ch Chunk, catalog []types.CatalogEntry, newID IDFunc) []types.TemplatePlacement {
	byID := make(map[string]types.CatalogEntry, len(catalog))
	for _, e := range catalog {
		byID[e.ID] = e
	}
	out := make([]types.TemplatePlacement, 0, len(in))
	for i, o := range in {
		o.StartUs = min(max(o.StartUs, ch.StartUs), ch.EndUs)
		o.EndUs = min(max(o.EndUs, ch.StartUs), ch.EndUs)
		if o.EndUs <= o.StartUs {
			continue
		}
		o.Content.Headline = truncateRunes(o.Content.Headline, schema.MaxHeadlineLen)
		o.Content.Subline = truncateRunes(o.Content.Subline, schema.MaxSublineLen)
		if o.Content.Headline == "" {
			continue
		}
		if e, ok := byID[o.TemplateID]; ok {
			o.Category = e.Category
		} else if len(catalog) > 0 {
			e := catalog[i%len(catalog)]
			o.TemplateID, o.Category = e.ID, e.Category
		}
		if o.Confidence <= 0 {
			o.Confidence = Confidence(o.Content.Headline + " " + o.Content.Subline)
		}
		o.Confidence = clamp(o.Confidence, 0, 1)
		o.ID = newID()
		out = append(out, o)
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true,
	"is": true, "are": true, "was": true, "it": true, "this": true, "that": true,
	"we": true, "you": true, "i": true, "so": true, "um": true, "uh": true,
}

// AssetQuery derives a short stock-media search phrase from text.
func AssetQuery(text string) string {
	var kept []string
	for _, f := range strings.Fields(strings.ToLower(text)) {
		w := strings.Trim(f, `"'.,!?;:()[]{}`)
		if utf8.RuneCountInString(w) < 3 || stopWords[w] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == 4 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func splitHeadline(text string, n int) (string, string) {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.TrimRight(strings.Join(words, " "), ",;:"), ""
	}
	head := strings.TrimRight(strings.Join(words[:n], " "), ",;:")
	return head, strings.Join(words[n:], " ")
}

func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
