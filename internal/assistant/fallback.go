package assistant

import "strings"

// FallbackFollowUp is offered with every fallback answer.
const FallbackFollowUp = "Want to know about tonight's events?"

var fallbackAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		[]string{"tonight", "evening"},
		"Tonight there's an Open Mic Night at the Music Department Hall at 7:30 PM. It's free and has a discovery slot, a good way to meet people from Arts and Literature.",
	},
	{
		[]string{"workshop"},
		"There's a Life Drawing Session at Fine Arts Studio 3 on Mar 1 at 2 PM. 120 minutes, free, and well outside the usual bubble.",
	},
	{
		[]string{"free"},
		"All current events are free: Open Mic tonight, Startup Pitch Practice and Life Drawing on Mar 1.",
	},
	{
		[]string{"bubble", "bored", "new"},
		"Time to break your bubble! Try the Open Mic Night tonight, or sign up for the Photography Club portfolio reviews this weekend.",
	},
}

const fallbackDefault = "I can help you discover campus events and break your bubble. Ask about tonight's events or workshops, or tell me you're bored for a surprise."

// Fallback returns a canned answer chosen by keywords in the query.
func Fallback(query string) string {
	q := strings.ToLower(query)
	for _, f := range fallbackAnswers {
		for _, kw := range f.keywords {
			if strings.Contains(q, kw) {
				return f.answer
			}
		}
	}
	return fallbackDefault
}
