package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samuelfneumann/tdlearner/timestep"
)

// Header names of the learning protocol
const (
	HeaderEid     = "X-P2pfaas-Learning-Eid"
	HeaderState   = "X-P2pfaas-Learning-State"
	HeaderAction  = "X-P2pfaas-Learning-Action"
	HeaderReward  = "X-P2pfaas-Learning-Reward"
	HeaderEpsilon = "X-P2pfaas-Eps"
)

// ParseError reports a request field which could not be decoded
type ParseError struct {
	Field string
	Value interface{}
	Err   error
}

// Error satisfies the error interface
func (p *ParseError) Error() string {
	return fmt.Sprintf("api: cannot parse %s (%v): %v", p.Field, p.Value,
		p.Err)
}

// Unwrap returns the underlying error
func (p *ParseError) Unwrap() error {
	return p.Err
}

// ParseState parses a comma separated list of numbers such as "1,0,3"
func ParseState(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &ParseError{"state", s, fmt.Errorf("empty")}
	}

	fields := strings.Split(s, ",")
	state := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, &ParseError{"state", s, err}
		}
		state[i] = v
	}
	return state, nil
}

// ParseAction parses an action, which may be sent as a float such as
// "1.0" and is truncated to an integer
func ParseAction(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &ParseError{"action", s, err}
	}
	return toAction(v, s)
}

func toAction(v float64, raw interface{}) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > math.MaxInt32 {
		return 0, &ParseError{"action", raw, fmt.Errorf("out of range")}
	}
	return int(v), nil
}

// ParseTimeStep parses an outcome report from the learning headers of
// a request
func ParseTimeStep(h http.Header) (timestep.TimeStep, error) {
	for _, key := range []string{HeaderEid, HeaderState, HeaderAction,
		HeaderReward} {
		if h.Get(key) == "" {
			return timestep.TimeStep{}, &ParseError{key, "",
				fmt.Errorf("missing header")}
		}
	}

	eid, err := strconv.ParseUint(strings.TrimSpace(h.Get(HeaderEid)), 10, 64)
	if err != nil {
		return timestep.TimeStep{}, &ParseError{"eid", h.Get(HeaderEid), err}
	}

	state, err := ParseState(h.Get(HeaderState))
	if err != nil {
		return timestep.TimeStep{}, err
	}

	action, err := ParseAction(h.Get(HeaderAction))
	if err != nil {
		return timestep.TimeStep{}, err
	}

	reward, err := strconv.ParseFloat(strings.TrimSpace(h.Get(HeaderReward)), 64)
	if err != nil {
		return timestep.TimeStep{}, &ParseError{"reward", h.Get(HeaderReward),
			err}
	}

	return timestep.New(eid, state, action, reward), nil
}

// batchEntry is one record of a training batch. Producers send numbers
// both as JSON numbers and as strings, so fields are decoded loosely.
type batchEntry struct {
	Eid    interface{} `json:"eid"`
	State  interface{} `json:"state"`
	Action interface{} `json:"action"`
	Reward interface{} `json:"reward"`
}

// ParseBatch decodes a JSON array of outcome reports. The whole batch
// is decoded before it is returned, so that a malformed record rejects
// the batch before anything is trained on.
func ParseBatch(data []byte) ([]timestep.TimeStep, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var entries []batchEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, &ParseError{"batch", len(data), err}
	}
	if len(entries) == 0 {
		return nil, &ParseError{"batch", 0, fmt.Errorf("empty batch")}
	}

	batch := make([]timestep.TimeStep, 0, len(entries))
	for i, entry := range entries {
		ts, err := entry.timeStep()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		batch = append(batch, ts)
	}
	return batch, nil
}

func (b batchEntry) timeStep() (timestep.TimeStep, error) {
	eid, err := strconv.ParseUint(numberString(b.Eid), 10, 64)
	if err != nil {
		return timestep.TimeStep{}, &ParseError{"eid", b.Eid, err}
	}

	state, err := b.state()
	if err != nil {
		return timestep.TimeStep{}, err
	}

	a, err := strconv.ParseFloat(numberString(b.Action), 64)
	if err != nil {
		return timestep.TimeStep{}, &ParseError{"action", b.Action, err}
	}
	action, err := toAction(a, b.Action)
	if err != nil {
		return timestep.TimeStep{}, err
	}

	reward, err := strconv.ParseFloat(numberString(b.Reward), 64)
	if err != nil {
		return timestep.TimeStep{}, &ParseError{"reward", b.Reward, err}
	}

	ts := timestep.New(eid, state, action, reward)
	if err := ts.Valid(); err != nil {
		return timestep.TimeStep{}, &ParseError{"entry", eid, err}
	}
	return ts, nil
}

// state decodes the state of a batch record, either a string such as
// "1,2" or an array of numbers
func (b batchEntry) state() ([]float64, error) {
	switch s := b.State.(type) {
	case string:
		return ParseState(s)

	case []interface{}:
		if len(s) == 0 {
			return nil, &ParseError{"state", s, fmt.Errorf("empty")}
		}
		state := make([]float64, len(s))
		for i, v := range s {
			f, err := strconv.ParseFloat(numberString(v), 64)
			if err != nil {
				return nil, &ParseError{"state", s, err}
			}
			state[i] = f
		}
		return state, nil

	default:
		return nil, &ParseError{"state", b.State, fmt.Errorf("not a list")}
	}
}

// numberString returns the text of a JSON number or numeric string, or
// an empty string for any other value
func numberString(v interface{}) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case string:
		return strings.TrimSpace(n)
	default:
		return ""
	}
}
