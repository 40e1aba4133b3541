package crawler

import (
	"testing"

	"gamesfinder/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{raw: "Foo Bar (Deluxe Edition) - GOTY", expected: "Foo Bar"},
		{raw: "Cyberpunk 2077 (Standard Edition) - PC", expected: "Cyberpunk 2077"},
		{raw: "Elden Ring - Xbox Series X|S", expected: "Elden Ring"},
		{raw: "Hades (PC)", expected: "Hades"},
		{raw: "  Stardew Valley  ", expected: "Stardew Valley"},
		{raw: "Half-Life 2", expected: "Half-Life 2"},
		{raw: "Spider-Man Remastered - PC", expected: "Spider-Man Remastered"},
		{raw: "Portal 2", expected: "Portal 2"},
		// no match, returned as is
		{raw: "Line\nBreak", expected: "Line\nBreak"},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, NormalizeName(test.raw), test.raw)
	}
}

func TestSimplifiedName(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{name: "Half-Life 2 Key", expected: "Half-Life 2"},
		{name: "Half-Life 2 KEY", expected: "Half-Life 2"},
		{name: "Half-Life 2", expected: "Half-Life 2"},
		{name: "Monkey Island", expected: "Monkey Island"},
		{name: "Keyboard Hero", expected: "Keyboard Hero"},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, models.SimplifyName(test.name), test.name)
		assert.Equal(t, test.expected, models.NewGame(test.name).SimplifiedName, test.name)
	}
}
