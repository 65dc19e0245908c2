package domain

import (
	"math"
	"sort"
)

// ValueKind distinguishes numeric from categorical covariates.
type ValueKind int

const (
	Numeric ValueKind = iota
	Categorical
)

// Value is a single covariate cell. A numeric NaN or an empty categorical
// string marks the cell as missing.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// NumericValue builds a numeric cell.
func NumericValue(v float64) Value {
	return Value{Kind: Numeric, Num: v}
}

// CategoricalValue builds a categorical cell.
func CategoricalValue(v string) Value {
	return Value{Kind: Categorical, Str: v}
}

// Missing reports whether the cell carries no usable value.
func (v Value) Missing() bool {
	if v.Kind == Categorical {
		return v.Str == ""
	}
	return math.IsNaN(v.Num)
}

// Interface renders the cell for JSON output. Finite numeric values are
// truncated toward zero, so 66.67 renders as 66. Missing values become nil.
func (v Value) Interface() interface{} {
	if v.Missing() {
		return nil
	}
	if v.Kind == Categorical {
		return v.Str
	}
	if math.IsInf(v.Num, 0) {
		return v.Num
	}
	return truncate(v.Num)
}

// integralTolerance absorbs the rounding error of a scale and unscale
// round trip before truncating.
const integralTolerance = 1e-9

func truncate(x float64) int64 {
	if r := math.Round(x); math.Abs(x-r) < integralTolerance {
		return int64(r)
	}
	return int64(x)
}

// Record is a single tabular row keyed by covariate name.
type Record struct {
	Index  int
	Values map[string]Value
}

// NewRecord creates an empty record at row index 0.
func NewRecord() Record {
	return Record{Values: make(map[string]Value)}
}

// Get returns the named cell; absent cells are reported as missing.
func (r Record) Get(name string) (Value, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Set stores a cell.
func (r Record) Set(name string, v Value) {
	r.Values[name] = v
}

// Names returns the covariate names in lexical order.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.Values))
	for name := range r.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithMissingSentinels returns a copy in which every negative numeric value
// is replaced by NaN. Categorical cells pass through unchanged.
func (r Record) WithMissingSentinels() Record {
	out := Record{Index: r.Index, Values: make(map[string]Value, len(r.Values))}
	for name, v := range r.Values {
		if v.Kind == Numeric && v.Num < 0 {
			v.Num = math.NaN()
		}
		out.Values[name] = v
	}
	return out
}

// Map renders the record as a plain map for JSON encoding.
func (r Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Values))
	for name, v := range r.Values {
		out[name] = v.Interface()
	}
	return out
}
