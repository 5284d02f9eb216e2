package canvas

import (
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(func() time.Time { return fixedNow })
}

func stroke(id string, points ...[]any) map[string]any {
	pts := make([]any, 0, len(points))
	for _, p := range points {
		pts = append(pts, p)
	}
	return map[string]any{"id": id, "kind": "freehand-stroke", "x": 0.0, "y": 0.0, "points": pts}
}

func TestValidator_Validate(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		raw       map[string]any
		stage     Stage
		wantField string
	}{
		{
			name:  "stroke draft with one point",
			raw:   stroke("s1", []any{1.0, 2.0}),
			stage: StageDraft,
		},
		{
			name:      "stroke draft without points",
			raw:       stroke("s1"),
			stage:     StageDraft,
			wantField: "points",
		},
		{
			name:      "stroke completion with one point",
			raw:       stroke("s1", []any{1.0, 2.0}),
			stage:     StageComplete,
			wantField: "points",
		},
		{
			name:  "stroke completion with two points",
			raw:   stroke("s1", []any{1.0, 2.0}, []any{3.0, 4.0}),
			stage: StageComplete,
		},
		{
			name:  "empty text label draft",
			raw:   map[string]any{"id": "t1", "kind": "text-label", "x": 5, "y": 5, "text": ""},
			stage: StageDraft,
		},
		{
			name:      "blank text label completion",
			raw:       map[string]any{"id": "t1", "kind": "text-label", "x": 5, "y": 5, "text": "   "},
			stage:     StageComplete,
			wantField: "text",
		},
		{
			name:      "rectangle completion with zero width",
			raw:       map[string]any{"id": "r1", "kind": "shape", "shapeVariant": "rectangle", "x": 0, "y": 0, "width": 0, "height": 10},
			stage:     StageComplete,
			wantField: "width",
		},
		{
			name:  "rectangle completion",
			raw:   map[string]any{"id": "r1", "kind": "shape", "shapeVariant": "rectangle", "x": 0, "y": 0, "width": 20, "height": 10},
			stage: StageComplete,
		},
		{
			name: "line completion with three points",
			raw: map[string]any{"id": "l1", "kind": "shape", "shapeVariant": "line", "x": 0, "y": 0,
				"points": []any{[]any{0.0, 0.0}, []any{1.0, 1.0}, []any{2.0, 2.0}}},
			stage:     StageComplete,
			wantField: "points",
		},
		{
			name:      "image completion without extent",
			raw:       map[string]any{"id": "i1", "kind": "image", "x": 0, "y": 0, "src": "data:image/png;base64,AA=="},
			stage:     StageComplete,
			wantField: "width",
		},
		{
			name:      "missing id",
			raw:       map[string]any{"kind": "shape", "x": 0, "y": 0},
			stage:     StageDraft,
			wantField: "id",
		},
		{
			name:      "unknown kind",
			raw:       map[string]any{"id": "a", "kind": "sticker", "x": 0, "y": 0},
			stage:     StageDraft,
			wantField: "kind",
		},
		{
			name:      "non numeric x",
			raw:       map[string]any{"id": "a", "kind": "shape", "x": "left", "y": 0},
			stage:     StageDraft,
			wantField: "x",
		},
		{
			name:      "text over limit",
			raw:       map[string]any{"id": "t1", "kind": "text-label", "x": 0, "y": 0, "text": strings.Repeat("a", MaxTextLength+1)},
			stage:     StageDraft,
			wantField: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate(tt.raw, "conn-1", tt.stage)
			if tt.wantField != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				assert.Equal(t, tt.wantField, verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw["id"], res.Element.ID)
			assert.Equal(t, tt.stage == StageComplete, res.Element.Complete)
		})
	}
}

func TestValidator_ValidateDefaults(t *testing.T) {
	v := newTestValidator()

	res, err := v.Validate(stroke("s1", []any{1.0, 2.0}), "conn-1", StageDraft)
	require.NoError(t, err)

	el := res.Element
	assert.Equal(t, DefaultStrokeColor, el.StrokeColor)
	assert.Equal(t, DefaultStrokeWidth, el.StrokeWidth)
	assert.Equal(t, "conn-1", el.Author)
	assert.Equal(t, fixedNow.UnixMilli(), el.CreatedAt)
	assert.False(t, el.Complete)
}

func TestValidator_ValidateCoercesAndDropsBadPoints(t *testing.T) {
	v := newTestValidator()

	raw := map[string]any{
		"id":          "s1",
		"kind":        "freehand-stroke",
		"x":           "10",
		"y":           20,
		"strokeWidth": -1,
		"createdAt":   1700000000000.0,
		"points": []any{
			map[string]any{"x": 1.0, "y": 1.0},
			[]any{"2", 2.0},
			[]any{"bad"},
			"nope",
			map[string]any{"x": 3.0},
		},
	}

	res, err := v.Validate(raw, "conn-1", StageDraft)
	require.NoError(t, err)

	el := res.Element
	assert.Equal(t, 10.0, el.X)
	assert.Equal(t, 20.0, el.Y)
	assert.Equal(t, DefaultStrokeWidth, el.StrokeWidth)
	assert.Equal(t, int64(1700000000000), el.CreatedAt)
	assert.Equal(t, []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, el.Points)
}

func TestValidator_CreatedAtOutOfRangeFallsBackToNow(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		createdAt any
		want      int64
	}{
		{name: "valid millis", createdAt: 1700000000000.0, want: 1700000000000},
		{name: "overflows int64", createdAt: 1e300, want: fixedNow.UnixMilli()},
		{name: "exactly 2^63", createdAt: 9223372036854775808.0, want: fixedNow.UnixMilli()},
		{name: "fractional", createdAt: 1700000000000.5, want: fixedNow.UnixMilli()},
		{name: "negative", createdAt: -5.0, want: fixedNow.UnixMilli()},
		{name: "not a number", createdAt: "yesterday", want: fixedNow.UnixMilli()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := stroke("s1", []any{1.0, 2.0})
			raw["createdAt"] = tt.createdAt

			res, err := v.Validate(raw, "conn-1", StageDraft)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Element.CreatedAt)
		})
	}
}

func TestValidator_ShapeVariant(t *testing.T) {
	v := newTestValidator()

	t.Run("unknown variant is dropped with a warning", func(t *testing.T) {
		raw := map[string]any{"id": "r1", "kind": "shape", "shapeVariant": "hexagon", "x": 0, "y": 0, "width": 4, "height": 4}
		res, err := v.Validate(raw, "conn-1", StageComplete)
		require.NoError(t, err)
		assert.Empty(t, res.Element.ShapeVariant)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("line origin follows its first point", func(t *testing.T) {
		raw := map[string]any{"id": "l1", "kind": "shape", "shapeVariant": "line", "x": 99, "y": 99,
			"points": []any{[]any{3.0, 4.0}, []any{5.0, 6.0}}}
		res, err := v.Validate(raw, "conn-1", StageComplete)
		require.NoError(t, err)
		assert.Equal(t, 3.0, res.Element.X)
		assert.Equal(t, 4.0, res.Element.Y)
		assert.Len(t, res.Element.Points, 2)
	})
}

func TestValidator_ValidateSnapshot(t *testing.T) {
	v := newTestValidator()

	list := []any{
		map[string]any{"id": "a", "kind": "text-label", "x": 0, "y": 0, "text": "hi", "complete": true, "author": "conn-9"},
		map[string]any{"id": "b", "kind": "bogus", "x": 0, "y": 0},
		"not an element",
		map[string]any{"id": "a", "kind": "text-label", "x": 1, "y": 1, "text": "dup"},
		map[string]any{"id": "c", "kind": "shape", "shapeVariant": "circle", "x": 0, "y": 0, "complete": true},
	}

	res, err := v.ValidateSnapshot(list, "conn-1")
	require.NoError(t, err)

	require.Len(t, res.Elements, 2)
	assert.Equal(t, 3, res.Dropped)

	assert.Equal(t, "a", res.Elements[0].ID)
	assert.True(t, res.Elements[0].Complete)
	assert.Equal(t, "conn-9", res.Elements[0].Author)

	assert.Equal(t, "c", res.Elements[1].ID)
	assert.False(t, res.Elements[1].Complete, "circle without extent cannot stay complete")
	assert.Equal(t, "conn-1", res.Elements[1].Author)
}

func TestValidator_ValidateSnapshotTooLarge(t *testing.T) {
	v := newTestValidator()

	_, err := v.ValidateSnapshot(make([]any, MaxSnapshotSize+1), "conn-1")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "elements", verr.Field)
}

func TestValidator_ValidatePatch(t *testing.T) {
	v := newTestValidator()

	t.Run("keeps patchable fields only", func(t *testing.T) {
		res, err := v.ValidatePatch(map[string]any{
			"x":        "12.5",
			"text":     "hello",
			"id":       "hijack",
			"author":   "someone-else",
			"fontSize": -3,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"x": 12.5, "text": "hello"}, res.Fields)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("points need at least two", func(t *testing.T) {
		_, err := v.ValidatePatch(map[string]any{"points": []any{[]any{1.0, 1.0}}})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "points", verr.Field)
	})

	t.Run("points are normalized", func(t *testing.T) {
		res, err := v.ValidatePatch(map[string]any{"points": []any{[]any{1.0, 1.0}, map[string]any{"x": 2, "y": 2}}})
		require.NoError(t, err)
		assert.Equal(t, []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, res.Fields["points"])
	})

	t.Run("unknown shape variant is dropped", func(t *testing.T) {
		res, err := v.ValidatePatch(map[string]any{"shapeVariant": "star", "y": 3})
		require.NoError(t, err)
		assert.NotContains(t, res.Fields, "shapeVariant")
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		_, err := v.ValidatePatch(map[string]any{"id": "x"})
		require.Error(t, err)
	})
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1.5, 1.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{" 2.25 ", 2.25, true},
		{"abc", 0, false},
		{nil, 0, false},
		{true, 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := toNumber(tt.in)
		if ok != tt.ok {
			t.Errorf("toNumber(%v) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("toNumber(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
