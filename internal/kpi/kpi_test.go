package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igharvest/internal/model"
)

func id(v int64) *int64 { return &v }

func sample() []model.Interaction {
	return []model.Interaction{
		{UID: "p1", Type: model.Post, NativeType: model.NativePost, FromID: id(1)},
		{UID: "p2", Type: model.Post, NativeType: model.NativePost, FromID: id(1)},
		{UID: "p3", Type: model.Post, NativeType: model.NativePost, FromID: id(2)},
		{UID: "p4", Type: model.Post, NativeType: model.NativePost},
		{UID: "c1", Type: model.Reply, NativeType: model.NativeComment, FromID: id(2), ToID: id(1), ParentUID: "p1"},
		{UID: "c2", Type: model.Reply, NativeType: model.NativeComment, FromID: id(99), ToID: id(1), ParentUID: "p2"},
		{UID: "p1-2", Type: model.Reaction, NativeType: model.NativeLike, FromID: id(2), ToID: id(1), ParentUID: "p1"},
		{UID: "p3-1", Type: model.Reaction, NativeType: "LOVE", FromID: id(1), ToID: id(2), ParentUID: "p3"},
		{UID: "p3-1m", Type: model.Mention, NativeType: model.NativeMention, FromID: id(1), ToID: id(2), ParentUID: "p3"},
		{UID: "p9", Type: model.Post, NativeType: model.NativePost, FromID: id(42)},
	}
}

func TestAggregateCounts(t *testing.T) {
	s := Aggregate([]int64{1, 2, 3}, sample())

	assert.Equal(t, map[Kind]int{Posts: 2, Replies: 2, Likes: 1, Mentions: 1}, s.Values[1])
	assert.Equal(t, map[Kind]int{Posts: 1, Replies: 0, Likes: 0, Mentions: 0}, s.Values[2])
	assert.Equal(t, map[Kind]int{Posts: 0, Replies: 0, Likes: 0, Mentions: 0}, s.Values[3])
	assert.NotContains(t, s.Values, int64(42))
	assert.Equal(t, map[Kind]int{Posts: 2, Replies: 2, Likes: 1, Mentions: 1}, s.Max)
}

func TestAggregateIsIdempotent(t *testing.T) {
	in := sample()
	a := Aggregate([]int64{1, 2, 3}, in)
	b := Aggregate([]int64{1, 2, 3}, in)
	assert.Equal(t, a, b)

	doubled := append(append([]model.Interaction{}, in...), in...)
	assert.Equal(t, a, Aggregate([]int64{1, 2, 3}, doubled))
}

func TestMaximaBoundEveryValue(t *testing.T) {
	s := Aggregate([]int64{1, 2, 3, 4}, sample())
	for _, u := range s.Users() {
		for _, k := range Kinds {
			assert.GreaterOrEqual(t, s.Max[k], s.Values[u][k])
		}
	}
}

func TestEmptyCohort(t *testing.T) {
	s := Aggregate(nil, sample())
	assert.Empty(t, s.Values)
	for _, k := range Kinds {
		v, ok := s.Max[k]
		require.True(t, ok)
		assert.Zero(t, v)
	}
}

func TestFlatten(t *testing.T) {
	s := Aggregate([]int64{1, 2}, sample())
	f := s.Flatten(2)
	assert.Equal(t, 1, f["igposts"])
	assert.Equal(t, 2, f["max_igposts"])
	assert.Equal(t, 0, f["iglikes"])
	assert.Equal(t, 1, f["max_iglikes"])
	assert.Len(t, f, 8)
	assert.Equal(t, 0, s.Flatten(77)["igposts"])
}

func TestCatalogue(t *testing.T) {
	user := Catalogue(model.ModeUser)
	require.Len(t, user, 8)
	assert.Equal(t, "igposts", user[0].Name)
	assert.Equal(t, Custom, user[1].Scope)
	assert.Equal(t, model.NativeLike, user[2].NativeType)
	assert.Equal(t, Aggregated, user[4].Scope)
	assert.Equal(t, Custom, user[5].Scope)

	tag := Catalogue(model.ModeTag)
	assert.Equal(t, Individual, tag[1].Scope)
	assert.Equal(t, Aggregated, tag[5].Scope)
}
