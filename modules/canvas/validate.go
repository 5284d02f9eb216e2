package canvas

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// Validation limits.
const (
	MaxElementIDLength = 128
	MaxTextLength      = 5000
	MaxPathPoints      = 10000
	MaxSnapshotSize    = 5000

	DefaultStrokeColor = "#000000"
	DefaultStrokeWidth = 2.0
)

// Stage selects which content rules an element must satisfy.
type Stage int

const (
	// StageDraft accepts structurally minimal elements that are still being drawn.
	StageDraft Stage = iota
	// StageComplete enforces the kind's full minimum-content rule.
	StageComplete
)

func (s Stage) String() string {
	if s == StageComplete {
		return "complete"
	}
	return "draft"
}

// Result is a sanitized element plus any non-fatal findings.
type Result struct {
	Element  domain.Element
	Warnings []string
}

// PatchResult is a sanitized partial update.
type PatchResult struct {
	Fields   map[string]any
	Warnings []string
}

// SnapshotResult is a filtered undo/redo element list.
type SnapshotResult struct {
	Elements []domain.Element
	Dropped  int
	Warnings []string
}

// Validator turns untrusted element payloads into canonical elements.
// It performs no I/O; warnings are returned to the caller for logging.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a Validator. A nil clock defaults to time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Validate sanitizes raw and checks it against the rules for stage.
// authorID is stamped on the result; callers that must preserve a stored
// author overwrite it afterwards.
func (v *Validator) Validate(raw map[string]any, authorID string, stage Stage) (Result, error) {
	el, b, warnings, err := v.decode(raw, authorID)
	if err != nil {
		return Result{Warnings: warnings}, err
	}
	if stage == StageComplete {
		err = b.checkComplete()
	} else {
		err = b.checkDraft()
	}
	if err != nil {
		return Result{Warnings: warnings}, err
	}
	el.Complete = stage == StageComplete
	return Result{Element: el, Warnings: warnings}, nil
}

// ValidateSnapshot filters a client-computed element list for undo/redo.
// Every entry is checked independently at draft stage and dropped when it
// fails; survivors keep their relative order. An entry flagged complete
// keeps the flag only if it also satisfies the completion rule.
func (v *Validator) ValidateSnapshot(list []any, authorID string) (SnapshotResult, error) {
	if len(list) > MaxSnapshotSize {
		return SnapshotResult{}, invalid("elements", fmt.Sprintf("exceeds %d entries", MaxSnapshotSize))
	}

	res := SnapshotResult{Elements: make([]domain.Element, 0, len(list))}
	seen := make(map[string]struct{}, len(list))
	for i, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			res.Dropped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("elements[%d]: not an object", i))
			continue
		}

		author := authorID
		if a, ok := raw["author"].(string); ok && a != "" {
			author = a
		}

		el, b, warnings, err := v.decode(raw, author)
		res.Warnings = append(res.Warnings, warnings...)
		if err == nil {
			err = b.checkDraft()
		}
		if err != nil {
			res.Dropped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("elements[%d]: %v", i, err))
			continue
		}
		if _, dup := seen[el.ID]; dup {
			res.Dropped++
			res.Warnings = append(res.Warnings, fmt.Sprintf("elements[%d]: duplicate id %q", i, el.ID))
			continue
		}
		seen[el.ID] = struct{}{}

		if c, ok := raw["complete"].(bool); ok && c {
			el.Complete = b.checkComplete() == nil
		}
		res.Elements = append(res.Elements, el)
	}
	return res, nil
}

// patchable lists the fields a partial update may touch. Identity and
// provenance fields are never patchable.
var patchable = map[string]func(any) (any, bool){
	"x":            numberField,
	"y":            numberField,
	"width":        numberField,
	"height":       numberField,
	"strokeWidth":  positiveField,
	"fontSize":     positiveField,
	"text":         stringField,
	"src":          stringField,
	"strokeColor":  stringField,
	"fillColor":    stringField,
	"fontFamily":   stringField,
	"shapeVariant": stringField,
}

// ValidatePatch sanitizes a partial field update. A points array in the
// patch must itself carry at least two valid points.
func (v *Validator) ValidatePatch(raw map[string]any) (PatchResult, error) {
	res := PatchResult{Fields: make(map[string]any)}
	for key, value := range raw {
		if key == "points" {
			points, _, err := decodePoints(value)
			if err != nil {
				return PatchResult{}, err
			}
			if len(points) < 2 {
				return PatchResult{}, invalid("points", "patch must carry at least 2 points")
			}
			res.Fields[key] = points
			continue
		}
		coerce, ok := patchable[key]
		if !ok {
			continue
		}
		val, ok := coerce(value)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("patch field %q dropped: bad value", key))
			continue
		}
		if key == "shapeVariant" && !domain.ShapeVariant(val.(string)).Valid() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unrecognized shapeVariant %q dropped", val))
			continue
		}
		if key == "text" && utf8.RuneCountInString(val.(string)) > MaxTextLength {
			return PatchResult{}, invalid("text", fmt.Sprintf("exceeds %d characters", MaxTextLength))
		}
		res.Fields[key] = val
	}
	if len(res.Fields) == 0 {
		return PatchResult{}, invalid("patch", "has no applicable fields")
	}
	return res, nil
}

// decode performs the structural checks shared by every stage.
func (v *Validator) decode(raw map[string]any, authorID string) (domain.Element, body, []string, error) {
	var el domain.Element
	if raw == nil {
		return el, nil, nil, invalid("element", "is required")
	}

	id, ok := raw["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return el, nil, nil, invalid("id", "must be a non-empty string")
	}
	if len(id) > MaxElementIDLength {
		return el, nil, nil, invalid("id", fmt.Sprintf("exceeds %d characters", MaxElementIDLength))
	}
	kindName, ok := raw["kind"].(string)
	if !ok {
		return el, nil, nil, invalid("kind", "must be a string")
	}
	kind := domain.Kind(kindName)
	if !kind.Valid() {
		return el, nil, nil, invalid("kind", fmt.Sprintf("%q is not a recognized kind", kindName))
	}
	x, ok := toNumber(raw["x"])
	if !ok {
		return el, nil, nil, invalid("x", "must be numeric")
	}
	y, ok := toNumber(raw["y"])
	if !ok {
		return el, nil, nil, invalid("y", "must be numeric")
	}

	el = domain.Element{
		ID:          id,
		Kind:        kind,
		X:           x,
		Y:           y,
		StrokeColor: DefaultStrokeColor,
		StrokeWidth: DefaultStrokeWidth,
		Author:      authorID,
	}
	if s, ok := toString(raw["strokeColor"]); ok && s != "" {
		el.StrokeColor = s
	}
	if s, ok := toString(raw["fillColor"]); ok && s != "" {
		el.FillColor = s
	}
	if w, ok := toNumber(raw["strokeWidth"]); ok && w > 0 {
		el.StrokeWidth = w
	}
	if ts, ok := toNumber(raw["createdAt"]); ok && ts > 0 && ts < math.MaxInt64 && ts == math.Trunc(ts) {
		el.CreatedAt = int64(ts)
	} else {
		el.CreatedAt = v.now().UnixMilli()
	}

	b, warnings, err := decodeBody(kind, raw)
	if err != nil {
		return el, nil, warnings, err
	}
	b.apply(&el)
	return el, b, warnings, nil
}

// body holds the kind-specific part of an element.
type body interface {
	checkDraft() error
	checkComplete() error
	apply(el *domain.Element)
}

func decodeBody(kind domain.Kind, raw map[string]any) (body, []string, error) {
	switch kind {
	case domain.KindFreehand:
		points, _, err := decodePoints(raw["points"])
		if err != nil {
			return nil, nil, err
		}
		return strokeBody{points: points}, nil, nil

	case domain.KindText:
		b := labelBody{}
		b.text, _ = toString(raw["text"])
		if utf8.RuneCountInString(b.text) > MaxTextLength {
			return nil, nil, invalid("text", fmt.Sprintf("exceeds %d characters", MaxTextLength))
		}
		if fs, ok := toNumber(raw["fontSize"]); ok && fs > 0 {
			b.fontSize = &fs
		}
		b.fontFamily, _ = toString(raw["fontFamily"])
		return b, nil, nil

	case domain.KindShape:
		var warnings []string
		b := shapeBody{}
		b.width, b.height = extent(raw)
		if name, ok := toString(raw["shapeVariant"]); ok {
			if variant := domain.ShapeVariant(name); variant.Valid() {
				b.variant = variant
			} else {
				warnings = append(warnings, fmt.Sprintf("unrecognized shapeVariant %q dropped", name))
			}
		} else {
			warnings = append(warnings, "shape has no shapeVariant")
		}
		if b.variant == domain.ShapeLine {
			points, total, err := decodePoints(raw["points"])
			if err != nil {
				return nil, warnings, err
			}
			b.points, b.rawPoints = points, total
		}
		return b, warnings, nil

	case domain.KindImage:
		b := imageBody{}
		b.width, b.height = extent(raw)
		b.src, _ = toString(raw["src"])
		return b, nil, nil
	}
	return nil, nil, invalid("kind", fmt.Sprintf("%q is not a recognized kind", kind))
}

type strokeBody struct {
	points []domain.Point
}

func (b strokeBody) checkDraft() error {
	if len(b.points) < 1 {
		return invalid("points", "freehand stroke needs at least 1 point")
	}
	return nil
}

func (b strokeBody) checkComplete() error {
	if len(b.points) < 2 {
		return invalid("points", "freehand stroke needs at least 2 points to complete")
	}
	return nil
}

func (b strokeBody) apply(el *domain.Element) {
	el.Points = b.points
}

type labelBody struct {
	text       string
	fontSize   *float64
	fontFamily string
}

func (b labelBody) checkDraft() error { return nil }

func (b labelBody) checkComplete() error {
	if strings.TrimSpace(b.text) == "" {
		return invalid("text", "text label needs non-empty text to complete")
	}
	return nil
}

func (b labelBody) apply(el *domain.Element) {
	el.Text = b.text
	el.FontSize = b.fontSize
	el.FontFamily = b.fontFamily
}

type shapeBody struct {
	variant       domain.ShapeVariant
	width, height *float64
	points        []domain.Point
	rawPoints     int
}

func (b shapeBody) checkDraft() error { return nil }

func (b shapeBody) checkComplete() error {
	if b.variant == domain.ShapeLine {
		if b.rawPoints != 2 || len(b.points) != 2 {
			return invalid("points", "line needs exactly 2 valid points to complete")
		}
		return nil
	}
	return positiveExtent(b.width, b.height)
}

func (b shapeBody) apply(el *domain.Element) {
	el.ShapeVariant = b.variant
	el.Width, el.Height = b.width, b.height
	if b.variant == domain.ShapeLine && len(b.points) > 0 {
		el.Points = b.points
		el.X, el.Y = b.points[0].X, b.points[0].Y
	}
}

type imageBody struct {
	src           string
	width, height *float64
}

func (b imageBody) checkDraft() error { return nil }

func (b imageBody) checkComplete() error {
	return positiveExtent(b.width, b.height)
}

func (b imageBody) apply(el *domain.Element) {
	el.Src = b.src
	el.Width, el.Height = b.width, b.height
}

func positiveExtent(width, height *float64) error {
	if width == nil || *width <= 0 {
		return invalid("width", "must be positive to complete")
	}
	if height == nil || *height <= 0 {
		return invalid("height", "must be positive to complete")
	}
	return nil
}

func extent(raw map[string]any) (*float64, *float64) {
	var width, height *float64
	if w, ok := toNumber(raw["width"]); ok {
		width = &w
	}
	if h, ok := toNumber(raw["height"]); ok {
		height = &h
	}
	return width, height
}

// decodePoints returns the valid points of a path and the number of entries
// the client sent. Entries may be {x, y} objects or [x, y] pairs.
func decodePoints(v any) ([]domain.Point, int, error) {
	switch list := v.(type) {
	case nil:
		return nil, 0, nil
	case []domain.Point:
		if len(list) > MaxPathPoints {
			return nil, 0, invalid("points", fmt.Sprintf("exceeds %d entries", MaxPathPoints))
		}
		return list, len(list), nil
	case []any:
		if len(list) > MaxPathPoints {
			return nil, 0, invalid("points", fmt.Sprintf("exceeds %d entries", MaxPathPoints))
		}
		points := make([]domain.Point, 0, len(list))
		for _, item := range list {
			if p, ok := toPoint(item); ok {
				points = append(points, p)
			}
		}
		return points, len(list), nil
	default:
		return nil, 0, nil
	}
}

func toPoint(v any) (domain.Point, bool) {
	switch p := v.(type) {
	case map[string]any:
		x, okX := toNumber(p["x"])
		y, okY := toNumber(p["y"])
		return domain.Point{X: x, Y: y}, okX && okY
	case []any:
		if len(p) != 2 {
			return domain.Point{}, false
		}
		x, okX := toNumber(p[0])
		y, okY := toNumber(p[1])
		return domain.Point{X: x, Y: y}, okX && okY
	case domain.Point:
		return p, finite(p.X) && finite(p.Y)
	}
	return domain.Point{}, false
}

// toNumber coerces numeric-looking values. NaN and infinities are rejected.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, finite(f)
}

// toString coerces string-looking values.
func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		if !finite(s) {
			return "", false
		}
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func numberField(v any) (any, bool) {
	f, ok := toNumber(v)
	return f, ok
}

func positiveField(v any) (any, bool) {
	f, ok := toNumber(v)
	return f, ok && f > 0
}

func stringField(v any) (any, bool) {
	s, ok := toString(v)
	return s, ok
}
