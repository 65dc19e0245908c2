package model

import (
	"fmt"
	"math"

	"github.com/bd4predict/predict-api/internal/domain"
)

// Branch is one column group of a column transformer.
type Branch interface {
	Name() string
	FeatureNamesIn() []string
	FeatureNamesOut() []string
	// Transform imputes and encodes the branch columns of rec.
	Transform(rec domain.Record) ([]float64, error)
	// InverseTransform maps an encoded row back to input columns.
	InverseTransform(row []float64) (map[string]domain.Value, error)
}

// NumericBranch is a simple imputer followed by a standard scaler.
type NumericBranch struct {
	Features   []string
	Strategy   string
	Statistics []float64
	Mean       []float64
	Scale      []float64
	// Invertible is false when the scaler was not retained and only the
	// forward transform is known.
	Invertible bool
}

func (b *NumericBranch) Name() string { return "numeric" }

func (b *NumericBranch) FeatureNamesIn() []string { return clone(b.Features) }

func (b *NumericBranch) FeatureNamesOut() []string { return clone(b.Features) }

func (b *NumericBranch) scale(i int) float64 {
	if b.Scale == nil || b.Scale[i] == 0 {
		return 1
	}
	return b.Scale[i]
}

func (b *NumericBranch) mean(i int) float64 {
	if b.Mean == nil {
		return 0
	}
	return b.Mean[i]
}

func (b *NumericBranch) Transform(rec domain.Record) ([]float64, error) {
	out := make([]float64, len(b.Features))
	for i, name := range b.Features {
		v, ok := rec.Get(name)
		if ok && v.Kind != domain.Numeric {
			return nil, fmt.Errorf("column %s: expected a numeric value", name)
		}
		x := math.NaN()
		if ok {
			x = v.Num
		}
		if math.IsNaN(x) {
			x = b.Statistics[i]
		}
		out[i] = (x - b.mean(i)) / b.scale(i)
	}
	return out, nil
}

func (b *NumericBranch) InverseTransform(row []float64) (map[string]domain.Value, error) {
	if !b.Invertible {
		return nil, fmt.Errorf("%s branch: %w", b.Name(), domain.ErrNonInvertible)
	}
	if len(row) != len(b.Features) {
		return nil, fmt.Errorf("%s branch: got %d columns, expected %d", b.Name(), len(row), len(b.Features))
	}
	out := make(map[string]domain.Value, len(b.Features))
	for i, name := range b.Features {
		out[name] = domain.NumericValue(row[i]*b.scale(i) + b.mean(i))
	}
	return out, nil
}

// CategoricalBranch is a most-frequent imputer followed by a one-hot
// encoder that ignores unknown categories.
type CategoricalBranch struct {
	Features      []string
	Strategy      string
	FillValues    []string
	Categories    [][]string
	HandleUnknown string
}

func (b *CategoricalBranch) Name() string { return "categorical" }

func (b *CategoricalBranch) FeatureNamesIn() []string { return clone(b.Features) }

// FeatureNamesOut follows the <column>_<category> convention.
func (b *CategoricalBranch) FeatureNamesOut() []string {
	var names []string
	for i, col := range b.Features {
		for _, cat := range b.Categories[i] {
			names = append(names, col+"_"+cat)
		}
	}
	return names
}

func (b *CategoricalBranch) width() int {
	n := 0
	for _, cats := range b.Categories {
		n += len(cats)
	}
	return n
}

func (b *CategoricalBranch) Transform(rec domain.Record) ([]float64, error) {
	out := make([]float64, 0, b.width())
	for i, name := range b.Features {
		v, ok := rec.Get(name)
		if ok && v.Kind != domain.Categorical {
			return nil, fmt.Errorf("column %s: expected a categorical value", name)
		}
		s := v.Str
		if !ok || s == "" {
			s = b.FillValues[i]
		}
		block := make([]float64, len(b.Categories[i]))
		known := false
		for j, cat := range b.Categories[i] {
			if cat == s {
				block[j] = 1
				known = true
			}
		}
		if !known && b.HandleUnknown == "error" {
			return nil, domain.NewValidationError(name, "unknown category", s)
		}
		out = append(out, block...)
	}
	return out, nil
}

// InverseTransform picks the largest indicator of every block. An all-zero
// block came from an unknown category and inverts to the missing value.
func (b *CategoricalBranch) InverseTransform(row []float64) (map[string]domain.Value, error) {
	if len(row) != b.width() {
		return nil, fmt.Errorf("%s branch: got %d columns, expected %d", b.Name(), len(row), b.width())
	}
	out := make(map[string]domain.Value, len(b.Features))
	offset := 0
	for i, name := range b.Features {
		cats := b.Categories[i]
		block := row[offset : offset+len(cats)]
		offset += len(cats)

		best := -1
		for j, x := range block {
			if x != 0 && (best < 0 || x > block[best]) {
				best = j
			}
		}
		if best < 0 {
			out[name] = domain.CategoricalValue("")
			continue
		}
		out[name] = domain.CategoricalValue(cats[best])
	}
	return out, nil
}

// ColumnTransformer concatenates the output of its branches in order.
type ColumnTransformer struct {
	Branches []Branch
}

// FeatureNamesIn lists input columns, branch by branch.
func (c *ColumnTransformer) FeatureNamesIn() []string {
	var names []string
	for _, b := range c.Branches {
		names = append(names, b.FeatureNamesIn()...)
	}
	return names
}

// FeatureNamesOut lists transformed columns, branch by branch.
func (c *ColumnTransformer) FeatureNamesOut() []string {
	var names []string
	for _, b := range c.Branches {
		names = append(names, b.FeatureNamesOut()...)
	}
	return names
}

// Transform encodes a single record into one model input row.
func (c *ColumnTransformer) Transform(rec domain.Record) ([]float64, error) {
	var row []float64
	for _, b := range c.Branches {
		part, err := b.Transform(rec)
		if err != nil {
			return nil, fmt.Errorf("%s branch: %w", b.Name(), err)
		}
		row = append(row, part...)
	}
	return row, nil
}

// Branch returns the named branch, or nil.
func (c *ColumnTransformer) Branch(name string) Branch {
	for _, b := range c.Branches {
		if b.Name() == name {
			return b
		}
	}
	return nil
}

// Slice returns the part of an encoded row produced by the named branch.
func (c *ColumnTransformer) Slice(row []float64, name string) ([]float64, error) {
	offset := 0
	for _, b := range c.Branches {
		w := len(b.FeatureNamesOut())
		if b.Name() == name {
			if offset+w > len(row) {
				return nil, fmt.Errorf("row too short for %s branch", name)
			}
			return row[offset : offset+w], nil
		}
		offset += w
	}
	return nil, fmt.Errorf("no branch named %s", name)
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
