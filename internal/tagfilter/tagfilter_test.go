package tagfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyAndWildcardAdmitEverything(t *testing.T) {
	for _, expr := range []string{"", "   ", "*", " * "} {
		assert.True(t, Parse(expr).Admits(nil), "expr %q", expr)
		assert.True(t, Parse(expr).Admits([]string{"x"}), "expr %q", expr)
	}
}

func TestAndBindsTighterThanOr(t *testing.T) {
	expr := Parse("A AND B OR C")
	cases := []struct {
		tags []string
		want bool
	}{
		{[]string{"A", "B"}, true},
		{[]string{"C"}, true},
		{[]string{"A"}, false},
		{[]string{"B"}, false},
		{[]string{"A", "C"}, true},
		{[]string{"B", "D"}, false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, expr.Admits(c.tags), "tags %v", c.tags)
	}
	assert.Equal(t, []string{"A", "C"}, expr.QueryTags())
}

func TestHashPrefixAndCommas(t *testing.T) {
	expr := Parse("#golang AND #course, #class2024")
	assert.True(t, expr.Admits([]string{"class2024"}))
	assert.True(t, expr.Admits([]string{"#golang", "course"}))
	assert.False(t, expr.Admits([]string{"golang"}))
	assert.Equal(t, []string{"golang", "class2024"}, expr.QueryTags())
}

func TestAdjacentTagsAreConjunction(t *testing.T) {
	expr := Parse("#a #b")
	assert.True(t, expr.Admits([]string{"a", "b"}))
	assert.False(t, expr.Admits([]string{"a"}))
}

func TestMatchIsCaseSensitive(t *testing.T) {
	assert.False(t, Parse("#GoLang").Admits([]string{"golang"}))
	assert.True(t, Parse("#GoLang").Admits([]string{"GoLang"}))
}

func TestMalformedAdmitsEverything(t *testing.T) {
	for _, expr := range []string{"AND A", "A OR", "A AND OR B", "OR", "#", "A AND *"} {
		e := Parse(expr)
		assert.True(t, e.MatchesAll(), "expr %q", expr)
		assert.True(t, e.Admits([]string{"zzz"}), "expr %q", expr)
		assert.Empty(t, e.QueryTags())
	}
}

func TestZeroValueAdmits(t *testing.T) {
	var e Expr
	assert.True(t, e.Admits([]string{"a"}))
}

func TestQueryTagsSkipRepeats(t *testing.T) {
	expr := Parse("course AND week1, course AND week2, #extra")
	assert.Equal(t, []string{"course", "extra"}, expr.QueryTags())
	for _, tags := range [][]string{{"course", "week2"}, {"extra"}} {
		assert.True(t, expr.Admits(tags))
	}
}
