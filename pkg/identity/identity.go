// Package identity canonicalizes raw name/team/position strings from either
// source into comparable tokens.
package identity

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizedIdentity is the comparable form of one player reference
type NormalizedIdentity struct {
	NameTokens    []string `json:"name_tokens"`
	TeamKey       string   `json:"team_key"`
	PositionClass string   `json:"position_class"`
}

// NameKey joins the tokens into the single indexed string stored on
// canonical players.
func (n NormalizedIdentity) NameKey() string {
	return strings.Join(n.NameTokens, " ")
}

// UnknownTeamError means the team vocabulary has no entry for the raw string.
// The record is skipped this pass and retried once the vocabulary is updated.
type UnknownTeamError struct {
	TeamRef string
}

func (e *UnknownTeamError) Error() string {
	return fmt.Sprintf("unknown team reference %q", e.TeamRef)
}

// foldOverrides covers letters NFD decomposition cannot reduce to ASCII
var foldOverrides = map[rune]string{
	'ø': "o", 'Ø': "o",
	'ł': "l", 'Ł': "l",
	'đ': "d", 'Đ': "d",
	'æ': "ae", 'Æ': "ae",
	'œ': "oe", 'Œ': "oe",
	'ß': "ss",
}

// generational suffixes are dropped so "Vinicius Junior" and "Vinicius"
// tokenize identically
var nameSuffixes = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "junior": true,
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a raw player reference. Pure and deterministic:
// the same inputs always produce the same identity.
func Normalize(displayName, teamRef, positionRef string) (NormalizedIdentity, error) {
	teamKey, ok := TeamKey(teamRef)
	if !ok {
		return NormalizedIdentity{}, &UnknownTeamError{TeamRef: teamRef}
	}

	return NormalizedIdentity{
		NameTokens:    Tokenize(displayName),
		TeamKey:       teamKey,
		PositionClass: string(PositionClassOf(positionRef)),
	}, nil
}

// Tokenize lowercases, folds diacritics, strips punctuation and suffixes,
// and splits into ordered tokens. Hyphenated surnames split into two tokens.
func Tokenize(name string) []string {
	folded := FoldASCII(name)

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '\'' || r == '’':
			// O'Brien -> obrien
		default:
			b.WriteRune(' ')
		}
	}

	raw := strings.Fields(b.String())
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if nameSuffixes[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// FoldASCII removes diacritics deterministically
func FoldASCII(s string) string {
	var pre strings.Builder
	pre.Grow(len(s))
	for _, r := range s {
		if repl, ok := foldOverrides[r]; ok {
			pre.WriteString(repl)
			continue
		}
		pre.WriteRune(r)
	}

	out, _, err := transform.String(foldTransformer, pre.String())
	if err != nil {
		return pre.String()
	}
	return out
}
