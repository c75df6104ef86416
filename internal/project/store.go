// Package project stores per-project artifacts as whole JSON files under
// <dataDir>/<projectId>/.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/domain/timeline"
	"github.com/forPelevin/roughcut/internal/ports"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	TranscriptFile   = "transcript.json"
	CutPlanFile      = "cut-plan.json"
	TimelineFile     = "timeline.json"
	TemplatePlanFile = "template-plan.json"
	OverlaysDir      = "overlays"
)

type Store struct {
	root string
	now  func() time.Time
}

var _ ports.Store = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// ValidateProjectID rejects ids that are not a single safe path segment.
func ValidateProjectID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Inputf("project id is empty")
	}
	if NormalizeID(id) != id {
		return apperr.Inputf("project id %q must be lowercase letters, digits, '-' or '_'", id)
	}
	return nil
}

// NormalizeID folds arbitrary text into a project id.
func NormalizeID(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r) && r < unicode.MaxASCII, r == '_':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// Dir returns the project directory.
func (s *Store) Dir(projectID string) string {
	return filepath.Join(s.root, projectID)
}

func (s *Store) path(projectID string, parts ...string) (string, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{s.root, projectID}, parts...)...), nil
}

func (s *Store) LoadTranscript(_ context.Context, projectID string) (types.Transcript, error) {
	var tr types.Transcript
	p, err := s.path(projectID, TranscriptFile)
	if err != nil {
		return tr, err
	}
	return tr, ReadJSON(p, &tr)
}

func (s *Store) SaveCutPlan(_ context.Context, plan types.CutPlan) (string, error) {
	p, err := s.path(plan.ProjectID, CutPlanFile)
	if err != nil {
		return "", err
	}
	return p, WriteJSON(p, plan)
}

func (s *Store) LoadCutPlan(_ context.Context, projectID string) (types.CutPlan, error) {
	var plan types.CutPlan
	p, err := s.path(projectID, CutPlanFile)
	if err != nil {
		return plan, err
	}
	return plan, ReadJSON(p, &plan)
}

// SaveTimeline writes t. When a timeline already exists the saved one
// continues its version sequence.
func (s *Store) SaveTimeline(_ context.Context, t types.Timeline) (types.Timeline, string, error) {
	p, err := s.path(t.ProjectID, TimelineFile)
	if err != nil {
		return t, "", err
	}
	var prev types.Timeline
	switch err := ReadJSON(p, &prev); {
	case err == nil:
		t.Version = max(prev.Version, t.Version-1)
		t = timeline.Touch(t, s.now())
	case !errors.Is(err, os.ErrNotExist):
		return t, "", err
	}
	return t, p, WriteJSON(p, t)
}

func (s *Store) LoadTimeline(_ context.Context, projectID string) (types.Timeline, error) {
	var t types.Timeline
	p, err := s.path(projectID, TimelineFile)
	if err != nil {
		return t, err
	}
	return t, ReadJSON(p, &t)
}

func (s *Store) SaveOverlayPlan(_ context.Context, projectID string, plan types.OverlayPlan) (string, error) {
	p, err := s.path(projectID, OverlaysDir, fmt.Sprintf("chunk-%03d.json", plan.ChunkIndex))
	if err != nil {
		return "", err
	}
	return p, WriteJSON(p, plan)
}

func (s *Store) SaveTemplatePlan(_ context.Context, plan types.TemplatePlan) (string, error) {
	p, err := s.path(plan.ProjectID, TemplatePlanFile)
	if err != nil {
		return "", err
	}
	return p, WriteJSON(p, plan)
}

// ReadJSON decodes the file at path into v.
func ReadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WriteJSON replaces path with the indented encoding of v via a temp file and
// rename.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
