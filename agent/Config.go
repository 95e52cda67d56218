package agent

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samuelfneumann/tdlearner/buffer/episode"
	"github.com/samuelfneumann/tdlearner/tdform"
	"github.com/samuelfneumann/tdlearner/valuefunction"
)

// Parameter keys
const (
	ActionsNKey                = "actions_n"
	AlphaKey                   = "alpha"
	BetaKey                    = "beta"
	GammaKey                   = "gamma"
	WindowSizeKey              = "window_size"
	EpsilonStartKey            = "epsilon_start"
	EpsilonMinKey              = "epsilon_min"
	EpsilonDecayKey            = "epsilon_decay"
	EpsilonDecayEnabledKey     = "epsilon_decay_enabled"
	EntryMissingMaxAttemptsKey = "entry_missing_max_attempts"
	BufferCapacityKey          = "buffer_capacity"
	SeedKey                    = "seed"
	TilingsKey                 = "tilings"
	TilesPerDimKey             = "tiles_per_dim"
	StateMinKey                = "state_min"
	StateMaxKey                = "state_max"
)

// Parameters are the hyperparameters of a learner. Parameters survive
// a Reset of the learner.
type Parameters struct {
	ActionsN                int     `json:"actions_n"`
	Alpha                   float64 `json:"alpha"`
	Beta                    float64 `json:"beta"`
	Gamma                   float64 `json:"gamma"`
	WindowSize              int     `json:"window_size"`
	EpsilonStart            float64 `json:"epsilon_start"`
	EpsilonMin              float64 `json:"epsilon_min"`
	EpsilonDecay            float64 `json:"epsilon_decay"`
	EpsilonDecayEnabled     bool    `json:"epsilon_decay_enabled"`
	EntryMissingMaxAttempts int     `json:"entry_missing_max_attempts"`
	BufferCapacity          int     `json:"buffer_capacity"`
	Seed                    uint64  `json:"seed"`

	// Tile coding, only used by tile-coded learners
	Tilings     int       `json:"tilings"`
	TilesPerDim int       `json:"tiles_per_dim"`
	StateMin    []float64 `json:"state_min"`
	StateMax    []float64 `json:"state_max"`
}

// Defaults returns the default Parameters
func Defaults() Parameters {
	return Parameters{
		ActionsN:                2,
		Alpha:                   0.01,
		Beta:                    0.01,
		Gamma:                   0.9,
		WindowSize:              5,
		EpsilonStart:            0.9,
		EpsilonMin:              0.1,
		EpsilonDecay:            0.99,
		EpsilonDecayEnabled:     true,
		EntryMissingMaxAttempts: 100,
		BufferCapacity:          episode.DefaultCapacity,
		Seed:                    1,
		Tilings:                 8,
		TilesPerDim:             4,
	}
}

// Structural keys only take effect when a new generation is created
var structuralKeys = map[string]bool{
	ActionsNKey:       true,
	BetaKey:           true,
	GammaKey:          true,
	EpsilonStartKey:   true,
	BufferCapacityKey: true,
	SeedKey:           true,
	TilingsKey:        true,
	TilesPerDimKey:    true,
	StateMinKey:       true,
	StateMaxKey:       true,
}

// IsStructural returns whether changes to the parameter key only take
// effect on the next Reset
func IsStructural(key string) bool {
	return structuralKeys[key]
}

// Merge returns a copy of p with every known key of raw coerced and
// set. Keys missing from raw keep their value. Unknown keys are ignored
// and returned, sorted, so that callers may log them.
//
// Values may be numbers, numeric strings or, for boolean parameters,
// booleans. A value which cannot be coerced to the parameter's type
// results in a *ConfigError and p is returned unchanged.
func (p Parameters) Merge(raw map[string]interface{}) (Parameters, []string, error) {
	merged := p
	merged.StateMin = copyFloats(p.StateMin)
	merged.StateMax = copyFloats(p.StateMax)

	var unknown []string
	for key, value := range raw {
		var err error
		switch key {
		case ActionsNKey:
			merged.ActionsN, err = toInt(value)
		case AlphaKey:
			merged.Alpha, err = toFloat(value)
		case BetaKey:
			merged.Beta, err = toFloat(value)
		case GammaKey:
			merged.Gamma, err = toFloat(value)
		case WindowSizeKey:
			merged.WindowSize, err = toInt(value)
		case EpsilonStartKey:
			merged.EpsilonStart, err = toFloat(value)
		case EpsilonMinKey:
			merged.EpsilonMin, err = toFloat(value)
		case EpsilonDecayKey:
			merged.EpsilonDecay, err = toFloat(value)
		case EpsilonDecayEnabledKey:
			merged.EpsilonDecayEnabled, err = toBool(value)
		case EntryMissingMaxAttemptsKey:
			merged.EntryMissingMaxAttempts, err = toInt(value)
		case BufferCapacityKey:
			merged.BufferCapacity, err = toInt(value)
		case SeedKey:
			var seed int
			seed, err = toInt(value)
			if err == nil && seed < 0 {
				err = fmt.Errorf("must be >= 0 (have %d)", seed)
			}
			merged.Seed = uint64(seed)
		case TilingsKey:
			merged.Tilings, err = toInt(value)
		case TilesPerDimKey:
			merged.TilesPerDim, err = toInt(value)
		case StateMinKey:
			merged.StateMin, err = toFloats(value)
		case StateMaxKey:
			merged.StateMax, err = toFloats(value)
		default:
			unknown = append(unknown, key)
			continue
		}

		if err != nil {
			return p, nil, &ConfigError{Key: key, Err: err}
		}
	}

	sort.Strings(unknown)
	return merged, unknown, nil
}

// Validate returns a *ConfigError describing the first parameter which
// cannot be used to create a learner of Type t
func (p Parameters) Validate(t Type) error {
	switch {
	case p.ActionsN < 1:
		return invalid(ActionsNKey, "must be >= 1", p.ActionsN)
	case p.Alpha < 0 || !finite(p.Alpha):
		return invalid(AlphaKey, "must be >= 0", p.Alpha)
	case p.Beta < 0 || !finite(p.Beta):
		return invalid(BetaKey, "must be >= 0", p.Beta)
	case p.Gamma < 0 || p.Gamma > 1:
		return invalid(GammaKey, "must be in [0, 1]", p.Gamma)
	case p.WindowSize < 2:
		return invalid(WindowSizeKey, "must be >= 2", p.WindowSize)
	case p.EpsilonStart < 0 || p.EpsilonStart > 1:
		return invalid(EpsilonStartKey, "must be in [0, 1]", p.EpsilonStart)
	case p.EpsilonMin < 0 || p.EpsilonMin > 1:
		return invalid(EpsilonMinKey, "must be in [0, 1]", p.EpsilonMin)
	case p.EpsilonDecay <= 0 || p.EpsilonDecay > 1:
		return invalid(EpsilonDecayKey, "must be in (0, 1]", p.EpsilonDecay)
	case p.EntryMissingMaxAttempts < 1:
		return invalid(EntryMissingMaxAttemptsKey, "must be >= 1",
			p.EntryMissingMaxAttempts)
	case p.BufferCapacity < p.WindowSize:
		return invalid(BufferCapacityKey, "must be >= window_size",
			p.BufferCapacity)
	}

	c, ok := t.Components()
	if !ok || c.ValueFunction != valuefunction.TileCodedType {
		return nil
	}
	switch {
	case p.Tilings < 1:
		return invalid(TilingsKey, "must be >= 1", p.Tilings)
	case p.TilesPerDim < 1:
		return invalid(TilesPerDimKey, "must be >= 1", p.TilesPerDim)
	case len(p.StateMin) == 0:
		return invalid(StateMinKey, "must be set for tile coding", p.StateMin)
	case len(p.StateMin) != len(p.StateMax):
		return invalid(StateMaxKey, "must have the same length as state_min",
			p.StateMax)
	}
	return nil
}

// all returns every parameter keyed by name
func (p Parameters) all() map[string]interface{} {
	return map[string]interface{}{
		ActionsNKey:                p.ActionsN,
		AlphaKey:                   p.Alpha,
		BetaKey:                    p.Beta,
		GammaKey:                   p.Gamma,
		WindowSizeKey:              p.WindowSize,
		EpsilonStartKey:            p.EpsilonStart,
		EpsilonMinKey:              p.EpsilonMin,
		EpsilonDecayKey:            p.EpsilonDecay,
		EpsilonDecayEnabledKey:     p.EpsilonDecayEnabled,
		EntryMissingMaxAttemptsKey: p.EntryMissingMaxAttempts,
		BufferCapacityKey:          p.BufferCapacity,
		SeedKey:                    p.Seed,
		TilingsKey:                 p.Tilings,
		TilesPerDimKey:             p.TilesPerDim,
		StateMinKey:                copyFloats(p.StateMin),
		StateMaxKey:                copyFloats(p.StateMax),
	}
}

// Map returns the parameters exposed to clients of a learner of Type t.
// SARSA learners expose beta and Q-learning learners expose gamma;
// tiling parameters are only exposed by tile-coded learners.
func (p Parameters) Map(t Type) map[string]interface{} {
	m := p.all()

	c, _ := t.Components()
	if c.TDForm == tdform.QLearningType {
		delete(m, BetaKey)
	} else {
		delete(m, GammaKey)
	}

	if c.ValueFunction != valuefunction.TileCodedType {
		for _, key := range []string{TilingsKey, TilesPerDimKey,
			StateMinKey, StateMaxKey} {
			delete(m, key)
		}
	}

	return m
}

// Changed returns the sorted keys whose values differ between p and
// other
func (p Parameters) Changed(other Parameters) []string {
	otherValues := other.all()

	var changed []string
	for key, value := range p.all() {
		if fmt.Sprint(value) != fmt.Sprint(otherValues[key]) {
			changed = append(changed, key)
		}
	}

	sort.Strings(changed)
	return changed
}

func invalid(key, reason string, value interface{}) error {
	return &ConfigError{Key: key, Err: fmt.Errorf("%s (have %v)", reason, value)}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func copyFloats(f []float64) []float64 {
	if f == nil {
		return nil
	}
	c := make([]float64, len(f))
	copy(c, f)
	return c
}

// toFloat coerces a decoded JSON number, a Go number or a numeric string
// to a float64
func toFloat(value interface{}) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		f = parsed
	case fmt.Stringer:
		return toFloat(v.String())
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", value, value)
	}

	if !finite(f) {
		return 0, fmt.Errorf("not a finite number: %v", f)
	}
	return f, nil
}

// toInt coerces a value to an int. Fractional values are rejected.
func toInt(value interface{}) (int, error) {
	f, err := toFloat(value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int(f), nil
}

// toBool coerces a bool, a boolean string or a number to a bool
func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", v)
		}
		return b, nil
	default:
		f, err := toFloat(value)
		if err != nil {
			return false, fmt.Errorf("not a boolean: %v (%T)", value, value)
		}
		return f != 0, nil
	}
}

// toFloats coerces a list of numbers or a comma separated string of
// numbers to a []float64
func toFloats(value interface{}) ([]float64, error) {
	switch v := value.(type) {
	case []float64:
		return copyFloats(v), nil
	case []interface{}:
		floats := make([]float64, len(v))
		for i := range v {
			f, err := toFloat(v[i])
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			floats[i] = f
		}
		return floats, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		fields := strings.Split(v, ",")
		floats := make([]float64, len(fields))
		for i := range fields {
			f, err := toFloat(fields[i])
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			floats[i] = f
		}
		return floats, nil
	default:
		return nil, fmt.Errorf("not a list of numbers: %v (%T)", value, value)
	}
}
