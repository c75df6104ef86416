package overlays

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/forPelevin/roughcut/internal/jsonx"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	maxPromptText    = 200
	maxPromptCatalog = 30
)

// BuildPrompt asks the model for one to three overlays for the chunk.
func BuildPrompt(ch Chunk, catalog []types.CatalogEntry) (string, error) {
	type seg struct {
		ID      string `json:"id"`
		StartUs int64  `json:"startUs"`
		EndUs   int64  `json:"endUs"`
		Text    string `json:"text"`
	}
	type tpl struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description,omitempty"`
	}
	segs := make([]seg, 0, len(ch.Segments))
	for _, s := range ch.Segments {
		segs = append(segs, seg{ID: s.ID, StartUs: s.StartUs, EndUs: s.EndUs, Text: truncateRunes(s.Text, maxPromptText)})
	}
	tpls := make([]tpl, 0, min(len(catalog), maxPromptCatalog))
	for _, e := range catalog[:min(len(catalog), maxPromptCatalog)] {
		tpls = append(tpls, tpl{ID: e.ID, Name: e.Name, Category: e.Category, Description: e.Description})
	}
	payload, err := json.Marshal(map[string]any{
		"chunkStartUs": ch.StartUs,
		"chunkEndUs":   ch.EndUs,
		"segments":     segs,
		"templates":    tpls,
	})
	if err != nil {
		return "", fmt.Errorf("marshal overlay prompt: %w", err)
	}
	return "You place on-screen overlays for a talking-head video. " +
		"Pick 1 to 3 moments from the segments below and a template for each. " +
		"Return strictly valid JSON (no markdown) shaped as " +
		`{"overlays":[{"templateId":"...","startUs":0,"endUs":0,"headline":"...","subline":"...","assetQuery":"...","confidence":0.0}]}. ` +
		fmt.Sprintf("Headline at most %d words, subline at most %d characters, ", MaxHeadlineWords, MaxSublineChars) +
		"assetQuery is a short stock footage search. Times are microseconds inside the chunk window." +
		"\n\nChunk JSON:\n" + string(payload), nil
}

// ParseResponse reads overlays from model output. Both {"overlays":[...]} and
// a bare array are accepted.
func ParseResponse(text string) ([]types.TemplatePlacement, error) {
	raw, err := jsonx.ExtractRaw(text)
	if err != nil {
		return nil, err
	}
	root := gjson.Parse(raw)
	items := root
	if !root.IsArray() {
		items = root.Get("overlays")
		if !items.IsArray() {
			return nil, fmt.Errorf("model output has no overlays array")
		}
	}
	var out []types.TemplatePlacement
	items.ForEach(func(_, v gjson.Result) bool {
		headline := v.Get("headline")
		if !headline.Exists() {
			headline = v.Get("content.headline")
		}
		subline := v.Get("subline")
		if !subline.Exists() {
			subline = v.Get("content.subline")
		}
		out = append(out, types.TemplatePlacement{
			TemplateID: v.Get("templateId").String(),
			Category:   v.Get("category").String(),
			StartUs:    v.Get("startUs").Int(),
			EndUs:      v.Get("endUs").Int(),
			Confidence: v.Get("confidence").Float(),
			Content: types.PlacementContent{
				Headline: headline.String(),
				Subline:  subline.String(),
			},
			AssetQuery: v.Get("assetQuery").String(),
		})
		return true
	})
	return out, nil
}
