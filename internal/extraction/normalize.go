package extraction

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/spf13/cast"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

const (
	unknownExercise = "Unknown Exercise"
	defaultType     = "other"
	minEffort       = 1
	maxEffort       = 10
)

var startTimePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// Workout is a normalized extraction result.
type Workout struct {
	// WorkoutDate is always the day of processing; model dates are ignored.
	WorkoutDate     time.Time
	StartTime       *string
	DurationMinutes *int
	Notes           *string
	Exercises       []Exercise
	TotalExercises  int
}

// Exercise is one normalized exercise.
type Exercise struct {
	Name            string
	Type            string
	MuscleGroups    []string
	Sets            *int
	Reps            []int
	WeightLbs       []float64
	DurationMinutes *float64
	DistanceMiles   *float64
	EffortLevel     *int
	RestSeconds     *int
	Notes           *string
	Order           int
}

// Normalize turns a model's JSON object into a Workout. It repairs what it
// can: defaults for missing names, types and order, scalars wrapped into
// lists, out-of-range effort dropped, and the exercise count recomputed. It
// fails only when exercises is present but not a list.
func Normalize(raw *jason.Object, today time.Time) (*Workout, error) {
	w := &Workout{
		WorkoutDate:     time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:       startTime(field(raw, "workout_start_time")),
		DurationMinutes: intValue(field(raw, "workout_duration_minutes")),
		Notes:           text(field(raw, "notes")),
		Exercises:       []Exercise{},
	}

	if list := field(raw, "exercises"); list != nil {
		items, err := list.Array()
		if err != nil {
			return nil, errors.Invalid(component, "exercises is not a list")
		}
		for i, item := range items {
			obj, err := item.Object()
			if err != nil {
				continue
			}
			w.Exercises = append(w.Exercises, normalizeExercise(obj, i+1))
		}
	}

	w.TotalExercises = len(w.Exercises)
	return w, nil
}

func normalizeExercise(obj *jason.Object, position int) Exercise {
	ex := Exercise{
		Name:            unknownExercise,
		Type:            defaultType,
		MuscleGroups:    stringList(field(obj, "muscle_groups")),
		Reps:            intList(field(obj, "reps")),
		WeightLbs:       floatList(field(obj, "weight_lbs")),
		DurationMinutes: floatValue(field(obj, "duration_minutes")),
		DistanceMiles:   floatValue(field(obj, "distance_miles")),
		EffortLevel:     effort(field(obj, "effort_level")),
		RestSeconds:     intValue(field(obj, "rest_seconds")),
		Notes:           text(field(obj, "notes")),
		Order:           position,
	}

	if name := text(field(obj, "exercise_name")); name != nil {
		ex.Name = *name
	}
	if typ := text(field(obj, "exercise_type")); typ != nil {
		ex.Type = *typ
	}
	if order := intValue(field(obj, "order_in_workout")); order != nil && *order > 0 {
		ex.Order = *order
	}

	ex.Sets = intValue(field(obj, "sets"))
	if ex.Sets == nil && len(ex.Reps) > 0 {
		n := len(ex.Reps)
		ex.Sets = &n
	}

	return ex
}

// field returns the value at key, or nil when it is absent or null.
func field(obj *jason.Object, key string) *jason.Value {
	v, err := obj.GetValue(key)
	if err != nil || v.Null() == nil {
		return nil
	}
	return v
}

// number reads a JSON number or a numeric string.
func number(v *jason.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch x := v.Interface().(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := cast.ToFloat64E(strings.TrimSpace(x))
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// effort keeps only JSON numbers within [1,10]. Words and numeric strings
// are dropped.
func effort(v *jason.Value) *int {
	if v == nil {
		return nil
	}
	n, err := v.Number()
	if err != nil {
		return nil
	}
	f, err := n.Float64()
	if err != nil || f < minEffort || f > maxEffort {
		return nil
	}
	e := int(math.Round(f))
	return &e
}

func intValue(v *jason.Value) *int {
	f, ok := number(v)
	if !ok {
		return nil
	}
	i := int(math.Round(f))
	return &i
}

func floatValue(v *jason.Value) *float64 {
	f, ok := number(v)
	if !ok {
		return nil
	}
	return &f
}

func text(v *jason.Value) *string {
	if v == nil {
		return nil
	}
	s, err := v.String()
	if err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func startTime(v *jason.Value) *string {
	s := text(v)
	if s == nil || !startTimePattern.MatchString(*s) {
		return nil
	}
	return s
}

// items returns the entries of a list, or the value itself as a
// one-element list when it is a scalar.
func items(v *jason.Value) []*jason.Value {
	if v == nil {
		return nil
	}
	if list, err := v.Array(); err == nil {
		return list
	}
	return []*jason.Value{v}
}

func intList(v *jason.Value) []int {
	var out []int
	for _, item := range items(v) {
		if f, ok := number(item); ok {
			out = append(out, int(math.Round(f)))
		}
	}
	return out
}

func floatList(v *jason.Value) []float64 {
	var out []float64
	for _, item := range items(v) {
		if f, ok := number(item); ok {
			out = append(out, f)
		}
	}
	return out
}

func stringList(v *jason.Value) []string {
	out := []string{}
	for _, item := range items(v) {
		if s := text(item); s != nil {
			out = append(out, *s)
		}
	}
	return out
}
