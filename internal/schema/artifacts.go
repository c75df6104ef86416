package schema

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/forPelevin/roughcut/internal/types"
)

func validateWord(w types.Word) error {
	rules := append([]*validation.FieldRules{
		validation.Field(&w.ID, validation.Required),
		validation.Field(&w.Confidence, validation.Min(0.0), validation.Max(1.0)),
	}, rangeRules(&w.StartUs, &w.EndUs)...)
	return validation.ValidateStruct(&w, rules...)
}

func validateSegment(s types.Segment) error {
	rules := append([]*validation.FieldRules{
		validation.Field(&s.ID, validation.Required),
	}, rangeRules(&s.StartUs, &s.EndUs)...)
	return validation.ValidateStruct(&s, rules...)
}

func validateCut(c types.CutRange) error {
	rules := append([]*validation.FieldRules{
		validation.Field(&c.Reason, validation.Required),
		confidenceRule(&c.Confidence),
	}, rangeRules(&c.StartUs, &c.EndUs)...)
	return validation.ValidateStruct(&c, rules...)
}

func validatePlacement(p types.TemplatePlacement) error {
	rules := append([]*validation.FieldRules{
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.TemplateID, validation.Required),
		confidenceRule(&p.Confidence),
		validation.Field(&p.Content, validation.By(func(any) error {
			return validation.ValidateStruct(&p.Content,
				validation.Field(&p.Content.Headline, validation.Required, validation.RuneLength(0, MaxHeadlineLen)),
				validation.Field(&p.Content.Subline, validation.RuneLength(0, MaxSublineLen)),
			)
		})),
	}, rangeRules(&p.StartUs, &p.EndUs)...)
	return validation.ValidateStruct(&p, rules...)
}

func validateAsset(a types.AssetSuggestion) error {
	rules := append([]*validation.FieldRules{
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.Provider, validation.Required),
		validation.Field(&a.Kind, validation.Required, validation.In(types.AssetKindImage, types.AssetKindVideo)),
		validation.Field(&a.Query, validation.Required),
	}, rangeRules(&a.StartUs, &a.EndUs)...)
	return validation.ValidateStruct(&a, rules...)
}

// ValidateTranscript checks word/segment ranges, the word count and that every
// segment word id resolves.
func ValidateTranscript(t types.Transcript) error {
	c := newCollector("transcript")
	if t.WordCount != len(t.Words) {
		c.addf("wordCount", "%d does not match %d words", t.WordCount, len(t.Words))
	}
	ids := make(map[string]struct{}, len(t.Words))
	for i, w := range t.Words {
		c.merge(idx("words", i), validateWord(w))
		if w.ID == "" {
			continue
		}
		if _, dup := ids[w.ID]; dup {
			c.addf(idx("words", i)+".id", "duplicate word id %q", w.ID)
		}
		ids[w.ID] = struct{}{}
	}
	for i, s := range t.Segments {
		c.merge(idx("segments", i), validateSegment(s))
		for _, id := range s.WordIDs {
			if _, ok := ids[id]; !ok {
				c.addf(idx("segments", i)+".wordIds", "segment %d references unknown word id %q", i, id)
			}
		}
	}
	if d := t.Source.DurationUs; d > 0 {
		for i, w := range t.Words {
			c.sweepDuration(idx("words", i), types.TimeRange{StartUs: w.StartUs, EndUs: w.EndUs}, d)
		}
		for i, s := range t.Segments {
			c.sweepDuration(idx("segments", i), types.TimeRange{StartUs: s.StartUs, EndUs: s.EndUs}, d)
		}
	}
	return c.err()
}

// ValidateCutRanges checks a list of cut ranges, bounded by durationUs when
// it is positive.
func ValidateCutRanges(name string, cuts []types.CutRange, durationUs int64) error {
	c := newCollector(name)
	c.cuts(name, cuts, durationUs)
	return c.err()
}

func (c *collector) cuts(path string, cuts []types.CutRange, durationUs int64) {
	for i, cr := range cuts {
		c.merge(idx(path, i), validateCut(cr))
		c.sweepDuration(idx(path, i), cr.Range(), durationUs)
	}
}

// ValidateCutPlan checks plan metadata and both range lists.
func ValidateCutPlan(p types.CutPlan, durationUs int64) error {
	c := newCollector("cut plan")
	c.merge("", validation.ValidateStruct(&p,
		validation.Field(&p.PlanID, validation.Required),
		validation.Field(&p.ProjectID, validation.Required),
		validation.Field(&p.CreatedAt, validation.Required),
		validation.Field(&p.Mode, validation.Required),
	))
	c.merge("planner", validation.ValidateStruct(&p.Planner,
		validation.Field(&p.Planner.Strategy, validation.Required),
	))
	c.cuts("removeRanges", p.RemoveRanges, durationUs)
	c.cuts("rationale", p.Rationale, durationUs)
	return c.err()
}

// ValidatePlacement checks a single overlay placement.
func ValidatePlacement(p types.TemplatePlacement, durationUs int64) error {
	c := newCollector("template placement")
	c.merge("", validatePlacement(p))
	c.sweepDuration("", types.TimeRange{StartUs: p.StartUs, EndUs: p.EndUs}, durationUs)
	return c.err()
}

// ValidateAssetSuggestion checks a single asset suggestion.
func ValidateAssetSuggestion(a types.AssetSuggestion, durationUs int64) error {
	c := newCollector("asset suggestion")
	c.merge("", validateAsset(a))
	c.sweepDuration("", types.TimeRange{StartUs: a.StartUs, EndUs: a.EndUs}, durationUs)
	return c.err()
}

// ValidateTemplatePlan checks counts and every placement and asset.
func ValidateTemplatePlan(p types.TemplatePlan, durationUs int64) error {
	c := newCollector("template plan")
	c.merge("", validation.ValidateStruct(&p,
		validation.Field(&p.PlanID, validation.Required),
		validation.Field(&p.ProjectID, validation.Required),
	))
	if p.TemplateCount != len(p.TemplatePlacements) {
		c.addf("templateCount", "%d does not match %d placements", p.TemplateCount, len(p.TemplatePlacements))
	}
	if p.AssetCount != len(p.AssetSuggestions) {
		c.addf("assetCount", "%d does not match %d asset suggestions", p.AssetCount, len(p.AssetSuggestions))
	}
	for i, tp := range p.TemplatePlacements {
		c.merge(idx("templatePlacements", i), validatePlacement(tp))
		c.sweepDuration(idx("templatePlacements", i), types.TimeRange{StartUs: tp.StartUs, EndUs: tp.EndUs}, durationUs)
	}
	for i, a := range p.AssetSuggestions {
		c.merge(idx("assetSuggestions", i), validateAsset(a))
		c.sweepDuration(idx("assetSuggestions", i), types.TimeRange{StartUs: a.StartUs, EndUs: a.EndUs}, durationUs)
	}
	return c.err()
}

// ValidateOverlayPlan checks a chunk plan; overlays must sit inside the chunk.
func ValidateOverlayPlan(p types.OverlayPlan) error {
	c := newCollector("overlay plan")
	if p.ChunkEndUs <= p.ChunkStartUs {
		c.add("chunkEndUs", "must be greater than chunkStartUs")
	}
	for i, o := range p.Overlays {
		path := idx("overlays", i)
		c.merge(path, validatePlacement(o))
		if o.StartUs < p.ChunkStartUs {
			c.addf(join(path, "startUs"), "%d precedes chunk start %d", o.StartUs, p.ChunkStartUs)
		}
		c.sweepDuration(path, types.TimeRange{StartUs: o.StartUs, EndUs: o.EndUs}, p.ChunkEndUs)
	}
	return c.err()
}

// ValidateCatalog checks that template ids are present and unique.
func ValidateCatalog(entries []types.CatalogEntry) error {
	c := newCollector("template catalog")
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		c.merge(idx("templates", i), validation.ValidateStruct(&e,
			validation.Field(&e.ID, validation.Required),
			validation.Field(&e.Category, validation.Required),
		))
		if e.ID != "" && seen[e.ID] {
			c.addf(idx("templates", i)+".id", "duplicate template id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return c.err()
}
