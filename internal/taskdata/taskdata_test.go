package taskdata

import (
	"context"
	"fmt"
	"testing"

	"github.com/specialistvlad/rendergraph/internal/nodetree"
	"github.com/specialistvlad/rendergraph/internal/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		category Category
		params   map[string]cty.Value
		wantErr  string
		check    func(t *testing.T, got map[string]cty.Value)
	}{
		{
			name:     "converts strings to numbers",
			category: Resolution,
			params: map[string]cty.Value{
				"res_x":     cty.StringVal("1920"),
				"res_y":     cty.NumberIntVal(1080),
				"res_scale": cty.NumberIntVal(50),
			},
			check: func(t *testing.T, got map[string]cty.Value) {
				assert.True(t, got["res_x"].Equals(cty.NumberIntVal(1920)).True())
			},
		},
		{
			name:     "missing required parameter",
			category: Resolution,
			params:   map[string]cty.Value{"res_x": cty.NumberIntVal(1)},
			wantErr:  `missing required parameter "res_y"`,
		},
		{
			name:     "null required parameter",
			category: World,
			params:   map[string]cty.Value{"world": cty.NullVal(cty.String)},
			wantErr:  `missing required parameter "world"`,
		},
		{
			name:     "unsupported parameter",
			category: World,
			params:   map[string]cty.Value{"world": cty.StringVal("Night"), "wrld": cty.StringVal("x")},
			wantErr:  `unsupported parameter "wrld"`,
		},
		{
			name:     "wrong type",
			category: ObjectDisplay,
			params: map[string]cty.Value{
				"object":        cty.StringVal("Cube"),
				"hide_viewport": cty.StringVal("maybe"),
				"hide_render":   cty.False,
			},
			wantErr: `parameter "hide_viewport"`,
		},
		{
			name:     "optional parameters may be absent",
			category: RenderEngine,
			params:   map[string]cty.Value{"engine": cty.StringVal("CYCLES")},
			check: func(t *testing.T, got map[string]cty.Value) {
				assert.NotContains(t, got, "samples")
			},
		},
		{
			name:     "any-typed value is kept as is",
			category: Property,
			params: map[string]cty.Value{
				"full_data_path": cty.StringVal("scene.render.fps"),
				"value":          cty.NumberIntVal(24),
			},
			check: func(t *testing.T, got map[string]cty.Value) {
				assert.True(t, got["value"].RawEquals(cty.NumberIntVal(24)))
			},
		},
		{
			name:     "open schema accepts any key",
			category: CyclesLightPath,
			params: map[string]cty.Value{
				"max_bounces": cty.NumberIntVal(4),
				"skip":        cty.NullVal(cty.Number),
			},
			check: func(t *testing.T, got map[string]cty.Value) {
				assert.Len(t, got, 1)
			},
		},
		{
			name:     "vectors become number tuples",
			category: ObjectPSR,
			params: map[string]cty.Value{
				"object":   cty.StringVal("Cube"),
				"location": cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("2"), cty.NumberFloatVal(0.5)}),
			},
			check: func(t *testing.T, got map[string]cty.Value) {
				want := cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2), cty.NumberFloatVal(0.5)})
				assert.True(t, got["location"].Equals(want).True())
			},
		},
		{
			name:     "vectors need three components",
			category: ObjectPSR,
			params: map[string]cty.Value{
				"object": cty.StringVal("Cube"),
				"scale":  cty.ListVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}),
			},
			wantErr: "expected 3 components",
		},
		{
			name:     "unknown category",
			category: "teapot",
			wantErr:  `unknown category "teapot"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.category, tc.params)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			if tc.check != nil {
				tc.check(t, got)
			}
		})
	}
}

func TestPayload_LastVisitedWins(t *testing.T) {
	d := New("task", "beauty")
	d.Add(Version, NewRecord("v1", map[string]cty.Value{"version": cty.StringVal("v001")}))
	d.Add(Version, NewRecord("v2", map[string]cty.Value{"version": cty.StringVal("v002")}))

	assert.Equal(t, "v002", d.Version())
	assert.Equal(t, 2, d.Payload(Version).Len())

	var names []string
	for _, r := range d.Payload(Version).Records() {
		names = append(names, r.Node)
	}
	assert.Equal(t, []string{"v1", "v2"}, names)
}

func TestTaskData_AbsentCategory(t *testing.T) {
	d := New("task", "task")
	assert.True(t, d.Empty())
	assert.False(t, d.Has(Resolution))
	assert.Nil(t, d.Payload(Resolution).Records())
	_, ok := d.Payload(Resolution).Last()
	assert.False(t, ok)
	assert.Equal(t, "", d.Version())
}

func TestRecord_Accessors(t *testing.T) {
	r := NewRecord("mat", map[string]cty.Value{
		"object":     cty.StringVal("Cube"),
		"slot_index": cty.NumberIntVal(2),
		"flag":       cty.True,
	})
	assert.Equal(t, "Cube", r.String("object"))
	assert.True(t, r.Bool("flag"))
	assert.False(t, r.Bool("object"))
	i, err := r.Int("slot_index")
	require.NoError(t, err)
	assert.Equal(t, 2, i)
	_, err = r.Int("missing")
	assert.Error(t, err)
	assert.False(t, r.Has("missing"))
	assert.Equal(t, []string{"flag", "object", "slot_index"}, r.Keys())
}

func TestAggregate_ExcludesInvalidNodes(t *testing.T) {
	tr := nodetree.New()
	task := nodetree.NewNode("task", nodetree.TypeTask, 0)
	task.Label = "beauty"
	require.NoError(t, tr.Add(task))

	good := nodetree.NewNode("res", "resolution", 0)
	good.Params["res_x"] = cty.NumberIntVal(640)
	good.Params["res_y"] = cty.NumberIntVal(480)
	good.Params["res_scale"] = cty.NumberIntVal(100)
	bad := nodetree.NewNode("frames", "frame_range", 0)
	bad.Params["frame_start"] = cty.NumberIntVal(1)
	odd := nodetree.NewNode("odd", "teapot", 0)
	for _, n := range []*nodetree.Node{good, bad, odd} {
		require.NoError(t, tr.Add(n))
	}

	d := Aggregate(context.Background(), task, []*nodetree.Node{good, bad, odd}, tr)

	assert.Equal(t, "beauty", d.Label)
	assert.Equal(t, []Category{Resolution}, d.Categories())
	msg, ok := tr.Warning("frames")
	require.True(t, ok)
	assert.Contains(t, msg, "frame_end")
	msg, ok = tr.Warning("odd")
	require.True(t, ok)
	assert.Contains(t, msg, "unknown node type")
	_, ok = tr.Warning("res")
	assert.False(t, ok)
}

func TestAggregate_RerouteTransparency(t *testing.T) {
	build := func(t *testing.T, reroutes int) *nodetree.Tree {
		tr := nodetree.New()
		require.NoError(t, tr.Add(nodetree.NewNode("task", nodetree.TypeTask, 0)))
		res := nodetree.NewNode("res", "resolution", 0)
		res.Params["res_x"] = cty.NumberIntVal(1280)
		res.Params["res_y"] = cty.NumberIntVal(720)
		res.Params["res_scale"] = cty.NumberIntVal(100)
		require.NoError(t, tr.Add(res))
		prev := "res"
		for i := 0; i < reroutes; i++ {
			name := fmt.Sprintf("r%d", i)
			require.NoError(t, tr.Add(nodetree.NewNode(name, nodetree.TypeReroute, 0)))
			require.NoError(t, tr.Link(prev, name, 0))
			prev = name
		}
		require.NoError(t, tr.Link(prev, "task", 0))
		return tr
	}

	ctx := context.Background()
	var baseline map[string]any
	for _, n := range []int{0, 1, 3} {
		tr := build(t, n)
		res, err := walker.Walk(ctx, tr, "task")
		require.NoError(t, err)
		got := Aggregate(ctx, res.Task, res.Contributors, tr).Plain()
		if baseline == nil {
			baseline = got
			continue
		}
		assert.Equal(t, baseline, got, "%d reroutes", n)
	}
	assert.Equal(t, map[string]any{
		"resolution": map[string]any{
			"res": map[string]any{"res_x": int64(1280), "res_y": int64(720), "res_scale": int64(100)},
		},
	}, baseline)
}
