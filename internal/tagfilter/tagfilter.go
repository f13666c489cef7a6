// Package tagfilter parses and evaluates tag search expressions such as
// "#golang AND #course OR #class2024".
//
// An expression is a disjunction of conjunctions: OR (or a comma) separates
// alternatives, AND (or plain adjacency) joins tags that must all be present.
// Empty and "*" expressions admit everything, and so does any malformed
// expression.
package tagfilter

import (
	"strings"

	"igharvest/internal/util"
)

const (
	opAnd    = "AND"
	opOr     = "OR"
	wildcard = "*"
)

// Expr is a parsed tag expression. The zero value admits everything.
type Expr struct {
	groups [][]string
	raw    string
}

// Parse parses expr. It never fails: malformed input yields an Expr that
// admits everything.
func Parse(expr string) Expr {
	raw := strings.TrimSpace(expr)
	if raw == "" || raw == wildcard {
		return Expr{raw: raw}
	}
	var (
		groups  [][]string
		current []string
		lastOp  = opOr // an expression must not start with an operator
	)
	for _, tok := range tokenize(raw) {
		switch tok {
		case opAnd, opOr:
			if lastOp != "" {
				return Expr{raw: raw}
			}
			if tok == opOr {
				groups = append(groups, current)
				current = nil
			}
			lastOp = tok
		default:
			tag := util.NormalizeTag(tok)
			if tag == "" {
				continue
			}
			if tag == wildcard {
				return Expr{raw: raw}
			}
			current = append(current, tag)
			lastOp = ""
		}
	}
	if lastOp != "" {
		return Expr{raw: raw}
	}
	groups = append(groups, current)
	return Expr{groups: groups, raw: raw}
}

// tokenize splits on whitespace and turns every comma into an OR token.
func tokenize(s string) []string {
	var out []string
	for _, field := range strings.Fields(s) {
		parts := strings.Split(field, ",")
		for i, p := range parts {
			if i > 0 {
				out = append(out, opOr)
			}
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// MatchesAll reports whether the expression skips filtering altogether.
func (e Expr) MatchesAll() bool { return len(e.groups) == 0 }

// Admits reports whether a post carrying tags passes the expression.
func (e Expr) Admits(tags []string) bool {
	if e.MatchesAll() {
		return true
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[util.NormalizeTag(t)] = struct{}{}
	}
	for _, group := range e.groups {
		ok := true
		for _, tag := range group {
			if _, found := set[tag]; !found {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// QueryTags returns the tags to query the platform with in tag mode: the
// first tag of each alternative, without repeats. Any post the expression
// admits carries one of them, so fetching each and filtering locally with
// Admits finds every admitted post. A match-all expression has none.
func (e Expr) QueryTags() []string {
	var out []string
	seen := map[string]bool{}
	for _, g := range e.groups {
		if !seen[g[0]] {
			seen[g[0]] = true
			out = append(out, g[0])
		}
	}
	return out
}

func (e Expr) String() string { return e.raw }
