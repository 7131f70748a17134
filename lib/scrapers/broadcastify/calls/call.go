// Package calls covers the calls platform: archived call retrieval
// with bucket caching and the live call polling session.
package calls

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// MediaBaseUrl is the CDN serving call audio.
const MediaBaseUrl = "https://calls.broadcastify.com"

// Call is one recorded transmission. Fields the upstream record did
// not carry stay at their zero value; consumers must tolerate
// partially populated calls.
type Call struct {
	Talkgroup   int64   // talkgroup ID
	Duration    float64 // call duration in seconds
	StartTime   int64   // call start time in unix seconds
	Filename    string  // call filename on the CDN
	TGName      string  // talkgroup display name
	TGGroup     string  // talkgroup group (e.g. Fire, Police, EMS)
	SystemID    int64   // system ID
	UnitRadioID int64   // unit radio ID
	Hash        string  // content hash, part of the media url
}

// MediaURL derives the audio location from fields already on the
// call; no network access involved.
func (c Call) MediaURL() string {
	return fmt.Sprintf("%s/%s/%d/%s.mp3", MediaBaseUrl, c.Hash, c.SystemID, c.Filename)
}

// upstream key → field assignment. Keys outside this set are ignored.
var callFields = map[string]func(*Call, any){
	"call_tg":       func(c *Call, v any) { c.Talkgroup = asInt64(v) },
	"call_duration": func(c *Call, v any) { c.Duration = asFloat64(v) },
	"ts":            func(c *Call, v any) { c.StartTime = asInt64(v) },
	"filename":      func(c *Call, v any) { c.Filename = asString(v) },
	"display":       func(c *Call, v any) { c.TGName = asString(v) },
	"grouping":      func(c *Call, v any) { c.TGGroup = asString(v) },
	"systemId":      func(c *Call, v any) { c.SystemID = asInt64(v) },
	"call_src":      func(c *Call, v any) { c.UnitRadioID = asInt64(v) },
	"hash":          func(c *Call, v any) { c.Hash = asString(v) },
}

func callFromRecord(record map[string]any) Call {
	var call Call
	for key, value := range record {
		assign, known := callFields[key]
		if !known {
			continue
		}
		assign(&call, value)
	}
	return call
}

// parseCalls decodes a list of raw call records. A record that fails
// to decode is skipped with a warning rather than failing the batch.
func parseCalls(raw []json.RawMessage) []Call {
	calls := make([]Call, 0, len(raw))
	for i, record := range raw {
		var fields map[string]any
		err := json.Unmarshal(record, &fields)
		if err != nil {
			slog.Warn("skipping malformed call record", "index", i, "err", err)
			continue
		}
		calls = append(calls, callFromRecord(fields))
	}
	return calls
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		var out int64
		_, err := fmt.Sscanf(n, "%d", &out)
		if err != nil {
			return 0
		}
		return out
	case json.Number:
		out, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0
			}
			return int64(f)
		}
		return out
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var out float64
		_, err := fmt.Sscanf(n, "%g", &out)
		if err != nil {
			return 0
		}
		return out
	case json.Number:
		out, err := n.Float64()
		if err != nil {
			return 0
		}
		return out
	}
	return 0
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%v", s)
	case json.Number:
		return s.String()
	}
	return ""
}
