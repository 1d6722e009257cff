package jobs

import (
	"bytes"
	"encoding/json"
)

// OutputKind tags the shape of a job output.
type OutputKind int

const (
	OutputNone OutputKind = iota
	OutputSingle
	OutputMany
	OutputOther
)

// Output is a job result resolved once at the orchestrator boundary: a
// single URL, an ordered list of URLs, or some other JSON payload kept raw.
type Output struct {
	kind OutputKind
	urls []string
	raw  json.RawMessage
}

// Single builds a one-URL output.
func Single(url string) Output {
	return Output{kind: OutputSingle, urls: []string{url}, raw: mustJSON(url)}
}

// Many builds an ordered multi-URL output.
func Many(urls ...string) Output {
	cp := append([]string(nil), urls...)
	return Output{kind: OutputMany, urls: cp, raw: mustJSON(cp)}
}

// Other keeps a non-URL payload as-is.
func Other(raw json.RawMessage) Output {
	return Output{kind: OutputOther, raw: append(json.RawMessage(nil), raw...)}
}

// ParseOutput classifies a raw provider output.
func ParseOutput(raw json.RawMessage) Output {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Output{kind: OutputNone}
	}
	keep := append(json.RawMessage(nil), trimmed...)
	var single string
	if err := json.Unmarshal(trimmed, &single); err == nil {
		return Output{kind: OutputSingle, urls: []string{single}, raw: keep}
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err == nil {
		return Output{kind: OutputMany, urls: many, raw: keep}
	}
	return Output{kind: OutputOther, raw: keep}
}

// Kind reports the output shape.
func (o Output) Kind() OutputKind { return o.kind }

// Single returns the URL of a single-URL output.
func (o Output) Single() (string, bool) {
	if o.kind != OutputSingle {
		return "", false
	}
	return o.urls[0], true
}

// Many returns the URLs of a multi-URL output.
func (o Output) Many() ([]string, bool) {
	if o.kind != OutputMany {
		return nil, false
	}
	return append([]string(nil), o.urls...), true
}

// URLs returns every URL in the output, in order, whatever its shape.
func (o Output) URLs() []string {
	return append([]string(nil), o.urls...)
}

// First returns the first URL, if any.
func (o Output) First() (string, bool) {
	if len(o.urls) == 0 {
		return "", false
	}
	return o.urls[0], true
}

// Raw returns the output as the provider sent it.
func (o Output) Raw() json.RawMessage {
	if o.kind == OutputNone {
		return json.RawMessage("null")
	}
	return o.raw
}

// MarshalJSON writes the provider shape back out.
func (o Output) MarshalJSON() ([]byte, error) {
	return o.Raw(), nil
}

// UnmarshalJSON classifies whatever JSON it is given.
func (o *Output) UnmarshalJSON(data []byte) error {
	*o = ParseOutput(data)
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
