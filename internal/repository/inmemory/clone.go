package inmemory

import (
	"time"

	"github.com/formbench/formbench/internal/domain/model"
)

// Clone helpers copy aggregates deeply enough that callers holding a
// returned pointer cannot mutate repository state through shared slices or
// maps.

func cloneForm(f *model.Form) *model.Form {
	c := *f
	c.FieldMappings = append(model.FieldMappings(nil), f.FieldMappings...)
	return &c
}

func cloneBatch(b *model.Batch) *model.Batch {
	c := *b
	if b.SkewPreset != nil {
		preset := *b.SkewPreset
		c.SkewPreset = &preset
	}
	return &c
}

func cloneDocument(d *model.Document) *model.Document {
	c := *d
	if d.FieldValues != nil {
		c.FieldValues = make(model.FieldValues, len(d.FieldValues))
		for k, v := range d.FieldValues {
			c.FieldValues[k] = v
		}
	}
	return &c
}

func cloneTestRun(r *model.TestRun) *model.TestRun {
	c := *r
	c.BatchIDs = append(model.StringList(nil), r.BatchIDs...)
	c.CompletedAt = cloneTimePtr(r.CompletedAt)
	c.ErrorMessage = cloneStringPtr(r.ErrorMessage)
	return &c
}

func cloneResult(r *model.Result) *model.Result {
	c := *r
	c.LayoutRegions = append(model.Regions(nil), r.LayoutRegions...)
	c.OCRRegions = make(model.OCRRegions, len(r.OCRRegions))
	for i, reg := range r.OCRRegions {
		c.OCRRegions[i] = reg
		c.OCRRegions[i].Lines = append([]model.OCRLine(nil), reg.Lines...)
	}
	c.TextRegions = make(model.TextRegions, len(r.TextRegions))
	for i, tr := range r.TextRegions {
		c.TextRegions[i] = tr
		c.TextRegions[i].CorrectedValue = cloneStringPtr(tr.CorrectedValue)
	}
	c.ExtractedFields = make(model.ExtractedFields, len(r.ExtractedFields))
	for i, ef := range r.ExtractedFields {
		c.ExtractedFields[i] = ef
		c.ExtractedFields[i].CorrectedValue = cloneStringPtr(ef.CorrectedValue)
	}
	c.VerifiedAccuracy = cloneFloatPtr(r.VerifiedAccuracy)
	c.VerifiedBy = cloneStringPtr(r.VerifiedBy)
	c.VerifiedAt = cloneTimePtr(r.VerifiedAt)
	return &c
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloatPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
