package drift

import (
	"strings"
	"unicode"

	"github.com/thebtf/campus-drift/internal/scoring"
	"github.com/thebtf/campus-drift/pkg/models"
)

// tagKeywords maps outcome description words to fingerprint tags. Words
// match whole lower-case tokens; stems match any token they prefix.
var tagKeywords = []struct {
	tag   string
	words []string
	stems []string
}{
	{
		tag:   models.TagCollaboration,
		stems: []string{"collab", "team", "together", "project", "partner"},
	},
	{
		tag:   models.TagConnection,
		words: []string{"met"},
		stems: []string{"meet", "friend", "talk", "chat", "connect", "introduc"},
	},
	{
		tag:   models.TagSocial,
		words: []string{"party", "parties"},
		stems: []string{"people", "group", "crowd", "social"},
	},
	{
		tag:   models.TagCreative,
		words: []string{"art", "arts", "artist", "artists", "artwork", "artistic"},
		stems: []string{"music", "design", "creativ", "paint", "draw", "photo", "sculpt", "poem", "poet"},
	},
}

// DeriveTags returns the fingerprint tags for an outcome. Tags come from
// keywords in the description, a mention of a department other than the
// student's own, and the drift's crossed-department flag. The result is in
// a stable order without duplicates.
func DeriveTags(description, ownDepartment string, crossedDepartment bool) []string {
	tokens := tokenize(description)
	tags := make([]string, 0, 4)

	if crossedDepartment || mentionsOtherDepartment(tokens, ownDepartment) {
		tags = append(tags, models.TagCrossDepartmental)
	}
	for _, group := range tagKeywords {
		if matchesAny(tokens, group.words, group.stems) {
			tags = append(tags, group.tag)
		}
	}
	return tags
}

// tokenize lower-cases text and splits it on anything that is not a letter
// or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchesAny(tokens, words, stems []string) bool {
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
		for _, stem := range stems {
			if strings.HasPrefix(tok, stem) {
				return true
			}
		}
	}
	return false
}

// mentionsOtherDepartment reports whether the tokens contain the full name
// of a campus department other than own.
func mentionsOtherDepartment(tokens []string, own string) bool {
	text := " " + strings.Join(tokens, " ") + " "
	own = strings.Join(tokenize(own), " ")
	for _, dept := range scoring.CampusDepartments {
		d := strings.Join(tokenize(dept), " ")
		if d == own {
			continue
		}
		if strings.Contains(text, " "+d+" ") {
			return true
		}
	}
	return false
}
