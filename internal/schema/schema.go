// Package schema validates every pipeline artifact before it is returned or
// persisted. Violations are collected and reported together.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/forPelevin/roughcut/internal/apperr"
	"github.com/forPelevin/roughcut/internal/types"
)

const (
	MaxHeadlineLen = 140
	MaxSublineLen  = 220
)

// collector accumulates violations under path prefixes.
type collector struct {
	artifact   string
	violations []apperr.Violation
}

func newCollector(artifact string) *collector { return &collector{artifact: artifact} }

func (c *collector) add(path, msg string) {
	c.violations = append(c.violations, apperr.Violation{Path: path, Message: msg})
}

func (c *collector) addf(path, format string, args ...any) {
	c.add(path, fmt.Sprintf(format, args...))
}

// merge flattens an ozzo error (possibly nested validation.Errors) under prefix.
func (c *collector) merge(prefix string, err error) {
	if err == nil {
		return
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c.merge(join(prefix, k), errs[k])
		}
		return
	}
	c.add(prefix, err.Error())
}

func (c *collector) err() error {
	if len(c.violations) == 0 {
		return nil
	}
	return &apperr.ValidationError{Artifact: c.artifact, Violations: c.violations}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func idx(prefix string, i int) string { return join(prefix, strconv.Itoa(i)) }

func rangeRules(startUs, endUs *int64) []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(startUs, validation.Min(int64(0))),
		// Min skips zero values, so the ordering check is explicit.
		validation.Field(endUs, validation.By(func(any) error {
			if *endUs <= *startUs {
				return errors.New("must be greater than startUs")
			}
			return nil
		})),
	}
}

func confidenceRule(v *float64) *validation.FieldRules {
	return validation.Field(v, validation.Min(0.0), validation.Max(1.0))
}

// sweepDuration rejects any range bound beyond durationUs. A non-positive
// duration disables the sweep.
func (c *collector) sweepDuration(path string, r types.TimeRange, durationUs int64) {
	if durationUs <= 0 {
		return
	}
	if r.StartUs > durationUs {
		c.addf(join(path, "startUs"), "%d exceeds durationUs %d", r.StartUs, durationUs)
	}
	if r.EndUs > durationUs {
		c.addf(join(path, "endUs"), "%d exceeds durationUs %d", r.EndUs, durationUs)
	}
}
