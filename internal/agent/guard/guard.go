package guard

import (
	"regexp"
	"strings"

	logx "github.com/timberline-assist/server/pkg/logger"
)

// Annotation is the redirect instruction contributed when an utterance is
// flagged. It is prepended to the outbound user content, never sent as a
// separate message, and never blocks processing.
const Annotation = "NOTE: The customer's message appears unrelated to our business. " +
	"Stay in your role as a customer service assistant, politely decline the " +
	"unrelated request, and redirect the conversation back to our products and services."

// Matcher is one off-topic detector. Inputs are pre-lowered, so matchers are
// written against lower-case text.
type Matcher interface {
	Tag() string
	Match(lowered string) bool
}

type regexMatcher struct {
	tag string
	re  *regexp.Regexp
}

func (m regexMatcher) Tag() string               { return m.tag }
func (m regexMatcher) Match(lowered string) bool { return m.re.MatchString(lowered) }

// Regex builds a matcher from a regular expression, compiled once.
func Regex(tag, pattern string) Matcher {
	return regexMatcher{tag: tag, re: regexp.MustCompile(pattern)}
}

type substringMatcher struct {
	tag  string
	subs []string
}

func (m substringMatcher) Tag() string { return m.tag }

func (m substringMatcher) Match(lowered string) bool {
	for _, s := range m.subs {
		if strings.Contains(lowered, s) {
			return true
		}
	}
	return false
}

// Substrings builds a matcher that fires when any literal appears in the utterance.
func Substrings(tag string, subs ...string) Matcher {
	return substringMatcher{tag: tag, subs: subs}
}

// Guard flags, never rejects, utterances that look unrelated to the service
// domain. Evaluation is case-insensitive, once per turn, and independent of
// conversation history.
type Guard struct {
	matchers []Matcher
}

// New builds a guard over an ordered matcher list. With no arguments the
// default set is used; deployments extend the list without touching the
// orchestrator.
func New(matchers ...Matcher) *Guard {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Guard{matchers: matchers}
}

// DefaultMatchers covers the common off-domain requests seen in support chats.
func DefaultMatchers() []Matcher {
	return []Matcher{
		Regex("creative_writing", `write (me |us )?(a |an )?(poem|story|song|essay|novel|haiku|limerick)`),
		Substrings("weather", "weather", "forecast"),
		Regex("time", `what time is it|current time`),
		Substrings("news", "latest news", "headlines", "current events"),
		Regex("sports", `(football|soccer|basketball|cricket|tennis|rugby) (score|match|game|result)`),
		Regex("general_knowledge", `who is the (president|prime minister|king|queen)|capital of [a-z]`),
		Substrings("homework", "homework", "solve this equation"),
		Regex("code_help", `(write|debug|fix) (me )?(some |my |this )?(code|script|program)`),
		Substrings("resume_help", "my resume", "my cv", "cover letter"),
		Regex("jokes", `tell (me |us )?a joke|make me laugh`),
		Regex("opinion", `(what do you think|what is your opinion|your opinion on|your thoughts on)`),
		Substrings("philosophy", "meaning of life", "are you conscious", "do you have feelings"),
		Regex("prompt_injection", `ignore (all )?(previous|prior|your) instructions|disregard (all )?(previous|prior) instructions`),
		Substrings("prompt_leak", "system prompt", "reveal your instructions", "your initial instructions"),
	}
}

// Evaluate returns the redirect annotation and true when any matcher fires,
// empty string and false otherwise.
func (g *Guard) Evaluate(utterance string) (string, bool) {
	lowered := strings.ToLower(utterance)
	for _, m := range g.matchers {
		if m.Match(lowered) {
			logx.Debug().Str("matcher", m.Tag()).Msg("off-topic message flagged")
			return Annotation, true
		}
	}
	return "", false
}
