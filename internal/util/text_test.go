package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordCount(t *testing.T) {
	cases := map[string]int{
		"":                        0,
		"ok thanks":               2,
		"really great work today": 4,
		"  spaced   out  ":        2,
		"don't stop-now":          2,
		"123 456 wow":             1,
		"👍👍👍":                     0,
		"great!!!nice":            2,
		"¡qué bonito día!":        3,
	}
	for in, want := range cases {
		assert.Equal(t, want, WordCount(in), "input %q", in)
	}
}

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "golang", NormalizeTag("  #golang "))
	assert.Equal(t, "go#lang", NormalizeTag("go#lang"))
	assert.Equal(t, "", NormalizeTag("#"))
}
