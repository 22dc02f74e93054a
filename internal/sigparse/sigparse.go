// Package sigparse extracts canonical function/event/error signatures from
// ABI JSON and from target-language source text, and computes their
// Keccak-256 hash.
package sigparse

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Kind is the declaration kind a signature was extracted as.
type Kind string

const (
	KindFunction    Kind = "function"
	KindEvent       Kind = "event"
	KindError       Kind = "error"
	KindConstructor Kind = "constructor"
	KindFallback    Kind = "fallback"
	KindReceive     Kind = "receive"
)

// Signature is one extracted (text, kind, is_valid) tuple, with its hash
// computed eagerly since every caller needs it to dedup/insert.
type Signature struct {
	Text    string
	Hash    string
	Kind    Kind
	IsValid bool
}

// NewSignature builds a Signature, computing its hash from text.
func NewSignature(text string, kind Kind, isValid bool) Signature {
	return Signature{
		Text:    text,
		Hash:    Hash(text),
		Kind:    kind,
		IsValid: isValid,
	}
}

// Hash returns the lowercase hex Keccak-256 digest of text.
func Hash(text string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// abiEntry mirrors the subset of a Solidity ABI JSON entry this package
// cares about.
type abiEntry struct {
	Type   string     `json:"type"`
	Name   string     `json:"name"`
	Inputs []abiInput `json:"inputs"`
}

type abiInput struct {
	Type string `json:"type"`
}

// decodeABI accepts both a bare JSON array of entries and a
// `{"abi": [...]}`-wrapped object, since ABI files in the wild come in
// either shape.
func decodeABI(content []byte) ([]abiEntry, error) {
	var entries []abiEntry
	if err := json.Unmarshal(content, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		ABI []abiEntry `json:"abi"`
	}
	if err := json.Unmarshal(content, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.ABI, nil
}

var abiKinds = map[string]Kind{
	"function": KindFunction,
	"event":    KindEvent,
	"error":    KindError,
}

// FromABI parses a JSON array of ABI entries and returns the function,
// event and error signatures found in it. All ABI-derived signatures are
// marked valid: they reached the ABI because a compiler already validated
// them.
func FromABI(content []byte) ([]Signature, error) {
	entries, err := decodeABI(content)
	if err != nil {
		return nil, fmt.Errorf("decoding ABI: %w", err)
	}

	sigs := make([]Signature, 0, len(entries))
	for _, e := range entries {
		kind, ok := abiKinds[strings.ToLower(e.Type)]
		if !ok {
			continue
		}
		if e.Name == "" {
			continue
		}

		types := make([]string, len(e.Inputs))
		for i, in := range e.Inputs {
			types[i] = in.Type
		}

		text := e.Name + "(" + strings.Join(types, ",") + ")"
		sigs = append(sigs, NewSignature(text, kind, true))
	}

	return sigs, nil
}

var (
	reLineComment  = regexp.MustCompile(`//[^\n]*`)
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reNewlines     = regexp.MustCompile(`\r?\n`)

	// reSignature captures "function|event|error name(params)". The match
	// ends at the first ")"; whatever follows (visibility, returns, "{" or
	// ";") is not part of it.
	reSignature = regexp.MustCompile(
		`(?P<kind>function|event|error)\s+(?P<name>[a-zA-Z_][a-zA-Z_0-9]*)\s*\((?P<params>[^)]*)\)`,
	)

	reElementaryType = regexp.MustCompile(
		`^(address|bool|string|bytes[0-9]{1,3}|bytes|u?int[0-9]{1,3}|u?int|u?fixed)(\[[0-9]*\])*$`,
	)
)

// FromSource parses target-language source text (no lexer/parser — a regex
// over comment/newline-stripped text) and returns the function, event and
// error signatures found in it.
func FromSource(content string) []Signature {
	stripped := reBlockComment.ReplaceAllString(content, "")
	stripped = reLineComment.ReplaceAllString(stripped, "")
	stripped = reNewlines.ReplaceAllString(stripped, " ")

	matches := reSignature.FindAllStringSubmatch(stripped, -1)
	if len(matches) == 0 {
		return nil
	}

	names := reSignature.SubexpNames()
	sigs := make([]Signature, 0, len(matches))

	for _, m := range matches {
		var kindStr, name, params string
		for i, n := range names {
			switch n {
			case "kind":
				kindStr = m[i]
			case "name":
				name = m[i]
			case "params":
				params = m[i]
			}
		}

		types := splitParamTypes(params)
		text := name + "(" + strings.Join(types, ",") + ")"
		isValid := allElementary(types)

		sigs = append(sigs, NewSignature(text, Kind(strings.ToLower(kindStr)), isValid))
	}

	return sigs
}

// splitParamTypes splits a raw parameter list on commas and keeps, for each
// piece, the type token: if the trimmed piece contains a space the token
// before the first space is the type (the rest is the parameter name),
// otherwise the whole trimmed piece is the type (an unnamed parameter).
// An empty parameter list yields no tokens.
func splitParamTypes(params string) []string {
	params = strings.TrimSpace(params)
	if params == "" {
		return nil
	}

	pieces := strings.Split(params, ",")
	types := make([]string, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if idx := strings.IndexAny(p, " \t"); idx >= 0 {
			types = append(types, p[:idx])
		} else {
			types = append(types, p)
		}
	}
	return types
}

// allElementary reports whether every type token matches the built-in
// value-type grammar (elementary types, optionally array-suffixed).
func allElementary(types []string) bool {
	for _, t := range types {
		if t == "" {
			continue
		}
		if !reElementaryType.MatchString(t) {
			return false
		}
	}
	return true
}
