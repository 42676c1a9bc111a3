package remote

import (
	"bytes"
	"encoding/json"
	"net/http"

	"p2p-desk/internal/core/ports"
)

const (
	msgNetwork   = "Network error, please try again."
	msgTransient = "Something went wrong, please try again."
	msgMalformed = "Unexpected response from server, please try again."
	msgRejected  = "Request was rejected."

	// maxNesting bounds how many data.data levels are unwrapped.
	maxNesting = 3
)

var (
	messageKeys = []string{"message", "msg", "error"}
	countKeys   = []string{"count", "total", "totalCount"}
)

// normalize turns any of the backend's response shapes into an Envelope.
// It never fails: unreadable bodies become transient failures.
func normalize(status int, body []byte) *ports.Envelope {
	ok := status >= 200 && status < 300
	env := &ports.Envelope{Status: status, Success: ok}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		// success follows the status code
	case trimmed[0] == '[':
		if !json.Valid(trimmed) {
			return transient(env, msgMalformed)
		}
		env.Data = json.RawMessage(trimmed)
	case trimmed[0] == '{':
		var top map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &top); err != nil {
			return transient(env, msgMalformed)
		}
		if raw, found := top["success"]; found {
			var flag bool
			if json.Unmarshal(raw, &flag) == nil {
				env.Success = ok && flag
			}
		}
		env.Message = firstString(top, messageKeys)
		env.Data, env.Count, env.HasCount = unwrap(top, trimmed)
	default:
		return transient(env, msgMalformed)
	}

	if env.Success {
		return env
	}
	if status >= http.StatusInternalServerError {
		return transient(env, msgTransient)
	}
	env.Failure = ports.FailureRejected
	if env.Message == "" {
		if ok {
			env.Message = msgRejected
		} else {
			env.Message = http.StatusText(status)
		}
	}
	return env
}

func transient(env *ports.Envelope, message string) *ports.Envelope {
	env.Success = false
	env.Failure = ports.FailureTransient
	env.Message = message
	env.Data = nil
	return env
}

// unwrap follows data.data nesting down to the innermost payload and picks
// up a count from whichever level carries one, outermost first. Objects
// without a data key are their own payload.
func unwrap(obj map[string]json.RawMessage, raw json.RawMessage) (json.RawMessage, int, bool) {
	data := raw
	count, hasCount := findCount(obj)

	for depth := 0; depth < maxNesting; depth++ {
		inner, found := obj["data"]
		if !found {
			break
		}
		data = inner
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || inner[0] != '{' {
			break
		}
		var next map[string]json.RawMessage
		if err := json.Unmarshal(inner, &next); err != nil {
			break
		}
		if !hasCount {
			count, hasCount = findCount(next)
		}
		obj = next
	}
	return data, count, hasCount
}

func findCount(obj map[string]json.RawMessage) (int, bool) {
	for _, key := range countKeys {
		raw, found := obj[key]
		if !found {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		f, err := n.Float64()
		if err != nil || f < 0 {
			continue
		}
		return int(f), true
	}
	return 0, false
}

func firstString(obj map[string]json.RawMessage, keys []string) string {
	for _, key := range keys {
		raw, found := obj[key]
		if !found {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}
