// Package extract recovers structured values embedded in free-form model replies.
//
// Decoding always goes through a strict JSON grammar; nothing in a reply is ever evaluated.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// fenceRe matches the first ``` fenced block, optionally tagged (json, python, ...).
var fenceRe = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n?(.*?)```")

// Kind is the shape of a mapping value.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Entry is one key of a decoded mapping, in the order the model wrote it.
type Entry struct {
	Key    string
	Kind   Kind
	Text   string
	Number float64
	List   []string
}

// Value is a decoded mapping. Keys are unique and non-empty.
type Value struct {
	Entries []Entry
}

func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// DecodeError reports that no valid structured value could be recovered.
// Excerpt carries the offending substring (or the raw reply) for the operator.
type DecodeError struct {
	Excerpt string
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode structured response: %s: %v", e.Reason, e.Err)
	}
	return "decode structured response: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err carries a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Candidate returns the substring most likely to hold the structured value:
// the interior of the first fenced block, else the span from the first '{' to the last '}'.
func Candidate(text string) (string, bool) {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[2]), true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1]), true
	}
	return "", false
}

// Locate finds the candidate substring and checks it is a valid JSON object.
func Locate(text string) (gjson.Result, error) {
	candidate, ok := Candidate(text)
	if !ok {
		return gjson.Result{}, &DecodeError{Excerpt: text, Reason: "no fenced block or braces found"}
	}
	if !gjson.Valid(candidate) {
		return gjson.Result{}, &DecodeError{Excerpt: candidate, Reason: "candidate is not valid JSON"}
	}
	res := gjson.Parse(candidate)
	if !res.IsObject() {
		return gjson.Result{}, &DecodeError{Excerpt: candidate, Reason: "candidate is not a mapping"}
	}
	return res, nil
}

// Extract decodes the mapping embedded in responseText. Values must be strings, numbers
// or lists of strings, and the mapping must have at least one entry.
func Extract(responseText string) (Value, error) {
	obj, err := Locate(responseText)
	if err != nil {
		return Value{}, err
	}
	var (
		out     Value
		seen    = map[string]bool{}
		failure *DecodeError
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		key := CleanKey(k.String())
		if key == "" {
			failure = &DecodeError{Excerpt: obj.Raw, Reason: "empty key"}
			return false
		}
		if seen[key] {
			failure = &DecodeError{Excerpt: obj.Raw, Reason: fmt.Sprintf("duplicate key %q", key)}
			return false
		}
		seen[key] = true
		entry, ok := toEntry(key, v)
		if !ok {
			failure = &DecodeError{Excerpt: obj.Raw, Reason: fmt.Sprintf("unsupported value for key %q", key)}
			return false
		}
		out.Entries = append(out.Entries, entry)
		return true
	})
	if failure != nil {
		return Value{}, failure
	}
	if len(out.Entries) == 0 {
		return Value{}, &DecodeError{Excerpt: obj.Raw, Reason: "mapping is empty"}
	}
	return out, nil
}

func toEntry(key string, v gjson.Result) (Entry, bool) {
	switch {
	case v.Type == gjson.String:
		return Entry{Key: key, Kind: KindString, Text: v.Str}, true
	case v.Type == gjson.Number:
		return Entry{Key: key, Kind: KindNumber, Number: v.Num}, true
	case v.IsArray():
		items := v.Array()
		list := make([]string, 0, len(items))
		for _, it := range items {
			if it.Type != gjson.String {
				return Entry{}, false
			}
			list = append(list, it.Str)
		}
		return Entry{Key: key, Kind: KindList, List: list}, true
	default:
		return Entry{}, false
	}
}

// CleanKey strips markdown emphasis and surrounding whitespace from a key.
func CleanKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.NewReplacer("**", "", "__", "", "`", "").Replace(key)
	return strings.TrimSpace(strings.Trim(key, "*_ "))
}
