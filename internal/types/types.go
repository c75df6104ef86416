package types

// TimeRange is a half-open interval [StartUs, EndUs) in microseconds.
type TimeRange struct {
	StartUs int64 `json:"startUs"`
	EndUs   int64 `json:"endUs"`
}

func (r TimeRange) Duration() int64 { return r.EndUs - r.StartUs }

type Word struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	StartUs    int64   `json:"startUs"`
	EndUs      int64   `json:"endUs"`
	Confidence float64 `json:"confidence,omitempty"`
}

type Segment struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	StartUs int64    `json:"startUs"`
	EndUs   int64    `json:"endUs"`
	WordIDs []string `json:"wordIds"`
}

type TranscriptSource struct {
	Path       string `json:"path"`
	Ref        string `json:"ref"`
	DurationUs int64  `json:"durationUs"`
}

type TranscriptAdapter struct {
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
}

type Transcript struct {
	TranscriptID string            `json:"transcriptId"`
	ProjectID    string            `json:"projectId"`
	CreatedAt    string            `json:"createdAt"`
	Mode         string            `json:"mode"`
	Language     string            `json:"language"`
	Source       TranscriptSource  `json:"source"`
	Adapter      TranscriptAdapter `json:"adapter"`
	Words        []Word            `json:"words"`
	Segments     []Segment         `json:"segments"`
	WordCount    int               `json:"wordCount"`
}

// CutRange is a span proposed for removal. Reason may hold several
// comma-joined tags after merging.
type CutRange struct {
	StartUs    int64   `json:"startUs"`
	EndUs      int64   `json:"endUs"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

func (c CutRange) Range() TimeRange { return TimeRange{StartUs: c.StartUs, EndUs: c.EndUs} }

type Planner struct {
	Model    string `json:"model"`
	Strategy string `json:"strategy"`
}

type Section struct {
	StartUs int64  `json:"startUs"`
	EndUs   int64  `json:"endUs"`
	Label   string `json:"label"`
}

type Analysis struct {
	Note           string    `json:"note,omitempty"`
	DurationUs     int64     `json:"durationUs"`
	CandidateCount int       `json:"candidateCount"`
	Sections       []Section `json:"sections,omitempty"`
}

type CutPlan struct {
	PlanID         string     `json:"planId"`
	ProjectID      string     `json:"projectId"`
	CreatedAt      string     `json:"createdAt"`
	Mode           string     `json:"mode"`
	FallbackPolicy string     `json:"fallbackPolicy"`
	SourceRef      string     `json:"sourceRef"`
	Planner        Planner    `json:"planner"`
	Analysis       Analysis   `json:"analysis"`
	RemoveRanges   []CutRange `json:"removeRanges"`
	Rationale      []CutRange `json:"rationale"`
}

type Track struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Order  int    `json:"order"`
	Locked bool   `json:"locked"`
}

type Clip struct {
	ClipID        string         `json:"clipId"`
	TrackID       string         `json:"trackId"`
	ClipType      string         `json:"clipType"`
	StartUs       int64          `json:"startUs"`
	EndUs         int64          `json:"endUs"`
	SourceStartUs int64          `json:"sourceStartUs"`
	SourceEndUs   int64          `json:"sourceEndUs"`
	SourceRef     string         `json:"sourceRef"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// Timeline is the rough-cut timeline derived from a cut plan.
type Timeline struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"projectId"`
	Version    int     `json:"version"`
	Status     string  `json:"status"`
	FPS        int     `json:"fps"`
	DurationUs int64   `json:"durationUs"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
	Tracks     []Track `json:"tracks"`
	Clips      []Clip  `json:"clips"`
}

type PlacementContent struct {
	Headline string `json:"headline"`
	Subline  string `json:"subline"`
}

type PlacementConstraints struct {
	MinDurationUs int64  `json:"minDurationUs,omitempty"`
	Position      string `json:"position,omitempty"`
}

type TemplatePlacement struct {
	ID          string                `json:"id"`
	TemplateID  string                `json:"templateId"`
	Category    string                `json:"category"`
	StartUs     int64                 `json:"startUs"`
	EndUs       int64                 `json:"endUs"`
	Confidence  float64               `json:"confidence"`
	Content     PlacementContent      `json:"content"`
	Constraints *PlacementConstraints `json:"constraints,omitempty"`

	// AssetQuery is the stock media search the planner asked for.
	AssetQuery string `json:"assetQuery,omitempty"`
}

const (
	AssetKindImage = "image"
	AssetKindVideo = "video"
)

type AssetMedia struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	License   string `json:"license,omitempty"`
}

type AssetSuggestion struct {
	ID       string      `json:"id"`
	Provider string      `json:"provider"`
	Kind     string      `json:"kind"`
	Query    string      `json:"query"`
	StartUs  int64       `json:"startUs"`
	EndUs    int64       `json:"endUs"`
	Media    *AssetMedia `json:"media,omitempty"`
}

type TemplatePlan struct {
	PlanID             string              `json:"planId"`
	ProjectID          string              `json:"projectId"`
	CreatedAt          string              `json:"createdAt"`
	TemplateCount      int                 `json:"templateCount"`
	AssetCount         int                 `json:"assetCount"`
	TemplatePlacements []TemplatePlacement `json:"templatePlacements"`
	AssetSuggestions   []AssetSuggestion   `json:"assetSuggestions"`
}

type OverlayPlan struct {
	ChunkIndex   int                 `json:"chunkIndex"`
	ChunkStartUs int64               `json:"chunkStartUs"`
	ChunkEndUs   int64               `json:"chunkEndUs"`
	Overlays     []TemplatePlacement `json:"overlays"`

	OK       bool   `json:"ok"`
	Strategy string `json:"strategy,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CatalogEntry is template metadata handed over by the rendering side.
type CatalogEntry struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description" yaml:"description"`
	Fields      []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type LLMConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
