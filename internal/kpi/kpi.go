// Package kpi computes per-user engagement indicators from interactions.
package kpi

import (
	"sort"

	"igharvest/internal/model"
)

// Kind names one indicator.
type Kind string

const (
	Posts    Kind = "igposts"
	Replies  Kind = "igreplies"
	Likes    Kind = "iglikes"
	Mentions Kind = "igmentions"
)

// Kinds lists every indicator in persistence order.
var Kinds = []Kind{Posts, Replies, Likes, Mentions}

// MaxName is the name under which the cohort maximum of k is stored.
func MaxName(k Kind) string { return "max_" + string(k) }

// Direction tells which side of an interaction a user must be on to be counted.
type Direction string

const (
	Author    Direction = "author"
	Recipient Direction = "recipient"
)

// Scope distinguishes per-user values from cohort aggregates.
type Scope string

const (
	Individual Scope = "individual"
	Aggregated Scope = "aggregated"
	// Custom values are computed by this connector rather than by a generic counter.
	Custom Scope = "custom"
)

// Info describes one indicator for the consuming analytics layer.
type Info struct {
	Name       string
	Type       model.InteractionType
	NativeType string // "*" matches every subtype
	Direction  Direction
	Scope      Scope
}

// Catalogue returns the indicators produced for an activity in mode.
func Catalogue(mode model.HarvestMode) []Info {
	recipient := Individual
	if mode == model.ModeUser {
		recipient = Custom
	}
	out := []Info{
		{Name: string(Posts), Type: model.Post, NativeType: model.NativePost, Direction: Author, Scope: Individual},
		{Name: string(Replies), Type: model.Reply, NativeType: "*", Direction: Recipient, Scope: recipient},
		{Name: string(Likes), Type: model.Reaction, NativeType: model.NativeLike, Direction: Recipient, Scope: recipient},
		{Name: string(Mentions), Type: model.Mention, NativeType: model.NativeMention, Direction: Author, Scope: recipient},
	}
	for _, k := range Kinds {
		s := Aggregated
		if k != Posts && mode == model.ModeUser {
			s = Custom
		}
		out = append(out, Info{Name: MaxName(k), Scope: s})
	}
	return out
}

// Set holds the values of every cohort member plus the cohort maximum of each kind.
type Set struct {
	Values map[int64]map[Kind]int
	Max    map[Kind]int
}

// Aggregate counts interactions per cohort member. Users outside the cohort are
// ignored, every member gets every kind, and duplicate interactions count once. The
// result depends only on its inputs.
func Aggregate(cohort []int64, interactions []model.Interaction) Set {
	s := Set{Values: make(map[int64]map[Kind]int, len(cohort)), Max: make(map[Kind]int, len(Kinds))}
	for _, u := range cohort {
		s.Values[u] = zero()
	}
	for _, k := range Kinds {
		s.Max[k] = 0
	}
	seen := make(map[string]struct{}, len(interactions))
	for _, i := range interactions {
		if _, dup := seen[i.Key()]; dup {
			continue
		}
		seen[i.Key()] = struct{}{}
		kind, user, ok := classify(i)
		if !ok {
			continue
		}
		if vals, member := s.Values[user]; member {
			vals[kind]++
		}
	}
	for _, vals := range s.Values {
		for k, v := range vals {
			if v > s.Max[k] {
				s.Max[k] = v
			}
		}
	}
	return s
}

// classify returns the kind i counts towards and the user credited with it.
func classify(i model.Interaction) (Kind, int64, bool) {
	switch i.Type {
	case model.Post:
		if i.FromID != nil {
			return Posts, *i.FromID, true
		}
	case model.Reply:
		if i.ToID != nil {
			return Replies, *i.ToID, true
		}
	case model.Reaction:
		if i.NativeType == model.NativeLike && i.ToID != nil {
			return Likes, *i.ToID, true
		}
	case model.Mention:
		if i.FromID != nil {
			return Mentions, *i.FromID, true
		}
	}
	return "", 0, false
}

func zero() map[Kind]int {
	m := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		m[k] = 0
	}
	return m
}

// Users returns the cohort members in ascending order.
func (s Set) Users() []int64 {
	out := make([]int64, 0, len(s.Values))
	for u := range s.Values {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Flatten returns the name to value map stored for user, maxima included.
func (s Set) Flatten(user int64) map[string]int {
	out := make(map[string]int, 2*len(Kinds))
	vals := s.Values[user]
	for _, k := range Kinds {
		out[string(k)] = vals[k]
		out[MaxName(k)] = s.Max[k]
	}
	return out
}
