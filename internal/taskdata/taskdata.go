package taskdata

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Record is the validated parameter record of one contributing node.
type Record struct {
	Node   string
	values map[string]cty.Value
}

// NewRecord builds a record from already validated values.
func NewRecord(node string, values map[string]cty.Value) Record {
	return Record{Node: node, values: values}
}

// Has reports whether the record carries a non-null value for name.
func (r Record) Has(name string) bool {
	v, ok := r.values[name]
	return ok && !v.IsNull()
}

// Value returns the raw value of name, or a null value when absent.
func (r Record) Value(name string) cty.Value {
	if v, ok := r.values[name]; ok {
		return v
	}
	return cty.NullVal(cty.DynamicPseudoType)
}

// String returns name as a Go string, or "" when absent.
func (r Record) String(name string) string {
	v := r.Value(name)
	if v.IsNull() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

// Bool returns name as a Go bool, or false when absent.
func (r Record) Bool(name string) bool {
	v := r.Value(name)
	if v.IsNull() || v.Type() != cty.Bool {
		return false
	}
	return v.True()
}

// Int returns name as a Go int.
func (r Record) Int(name string) (int, error) {
	v := r.Value(name)
	if v.IsNull() {
		return 0, fmt.Errorf("%s: %q is not set", r.Node, name)
	}
	var out int
	if err := gocty.FromCtyValue(v, &out); err != nil {
		return 0, fmt.Errorf("%s: %q: %w", r.Node, name, err)
	}
	return out, nil
}

// Keys returns the parameter names of the record, sorted.
func (r Record) Keys() []string {
	return sortedNames(r.values)
}

// Payload is the set of records of one category, in visit order.
type Payload struct {
	order   []string
	records map[string]Record
}

func newPayload() *Payload {
	return &Payload{records: make(map[string]Record)}
}

func (p *Payload) put(r Record) {
	if _, exists := p.records[r.Node]; !exists {
		p.order = append(p.order, r.Node)
	}
	p.records[r.Node] = r
}

// Records returns the records in the order their nodes were visited.
func (p *Payload) Records() []Record {
	if p == nil {
		return nil
	}
	out := make([]Record, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.records[name])
	}
	return out
}

// Get returns the record contributed by node.
func (p *Payload) Get(node string) (Record, bool) {
	if p == nil {
		return Record{}, false
	}
	r, ok := p.records[node]
	return r, ok
}

// Last returns the record of the node visited last. It is how single-valued
// categories resolve several contributors: the last visited wins.
func (p *Payload) Last() (Record, bool) {
	if p == nil || len(p.order) == 0 {
		return Record{}, false
	}
	return p.records[p.order[len(p.order)-1]], true
}

// Len returns the number of records.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// TaskData is the aggregation root of one pass.
type TaskData struct {
	// Task is the name of the task node.
	Task string
	// Label is the display label of the task node.
	Label string

	categories map[Category]*Payload
}

// New creates empty task data for a task.
func New(task, label string) *TaskData {
	return &TaskData{Task: task, Label: label, categories: make(map[Category]*Payload)}
}

// Add inserts a record under category c.
func (d *TaskData) Add(c Category, r Record) {
	p, ok := d.categories[c]
	if !ok {
		p = newPayload()
		d.categories[c] = p
	}
	p.put(r)
}

// Has reports whether any node contributed to c.
func (d *TaskData) Has(c Category) bool {
	return d.categories[c].Len() > 0
}

// Payload returns the payload of c, or nil when absent. The nil payload is
// safe to use.
func (d *TaskData) Payload(c Category) *Payload {
	return d.categories[c]
}

// Categories returns the present categories, sorted by name.
func (d *TaskData) Categories() []Category {
	out := make([]Category, 0, len(d.categories))
	for c := range d.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Empty reports whether no category is present.
func (d *TaskData) Empty() bool {
	return len(d.categories) == 0
}

// Version returns the version string supplied by the last version node, or "".
func (d *TaskData) Version() string {
	r, ok := d.Payload(Version).Last()
	if !ok {
		return ""
	}
	return r.String("version")
}

// Plain renders the task data as nested plain Go values for display.
func (d *TaskData) Plain() map[string]any {
	out := make(map[string]any, len(d.categories))
	for _, c := range d.Categories() {
		nodes := make(map[string]any)
		for _, r := range d.categories[c].Records() {
			params := make(map[string]any, len(r.values))
			for _, k := range r.Keys() {
				params[k] = plain(r.values[k])
			}
			nodes[r.Node] = params
		}
		out[string(c)] = nodes
	}
	return out
}

func plain(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Bool:
		return v.True()
	case ty == cty.Number:
		if bf := v.AsBigFloat(); bf.IsInt() {
			i, _ := bf.Int64()
			return i
		}
		f, _ := v.AsBigFloat().Float64()
		return f
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			out = append(out, plain(e))
		}
		return out
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, e := it.Element()
			out[k.AsString()] = plain(e)
		}
		return out
	}
	return v.GoString()
}
