// Package keywords holds the static keyword lists used to gate and enrich
// exchanges. Simple substring matching, evaluated for any match.
package keywords

import "strings"

var stopWords = []string{
	"idiot",
	"moron",
	"dumbass",
	"stupid bot",
	"shut up",
	"screw you",
	"jerk",
	"loser",
	"trash bot",
}

// ContainsStopWords reports whether the text carries profanity that should
// be refused before reaching the model.
func ContainsStopWords(text string) bool {
	return anyMatch(text, stopWords)
}

var searchTriggers = []string{
	"weather",
	"temperature",
	"news",
	"exchange rate",
	"price",
	"how much is",
	"what is happening",
	"latest",
	"today",
	"right now",
	"current",
	"trending",
	"events",
	"calendar",
	"what date",
	"what day",
	"what year",
	"what month",
	"day of the week",
	"what time",
	"search the web",
	"search online",
	"look up",
	"find online",
	"google",
	"on the internet",
}

// NeedsWebSearch reports whether the question likely requires fresh
// information from the web.
func NeedsWebSearch(text string) bool {
	return anyMatch(text, searchTriggers)
}

var eventTriggers = []string{
	"conference",
	"summit",
	"hackathon",
	"speaker",
	"schedule",
	"agenda",
	"venue",
	"keynote",
	"workshop",
}

// IsEventQuestion reports whether the text asks about the configured event
// briefing.
func IsEventQuestion(text string) bool {
	return anyMatch(text, eventTriggers)
}

var dateWords = []string{"date", "day", "year", "month", "calendar", "time"}

// MentionsDate reports whether the text asks about dates or time, used to
// sharpen web-search queries.
func MentionsDate(text string) bool {
	return anyMatch(text, dateWords)
}

func anyMatch(text string, words []string) bool {
	lowered := strings.ToLower(text)
	for _, word := range words {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
