package assistant

import (
	"strings"
	"unicode/utf8"

	"github.com/kkkkikiki/portal/internal/model"
)

// Intent is the topic bucket a message is routed to
type Intent string

const (
	IntentMonthlyLearning Intent = "monthly_learning"
	IntentLearning        Intent = "learning"
	IntentVideo           Intent = "video"
	IntentQuiz            Intent = "quiz"
	IntentNews            Intent = "news"
	IntentLocalNews       Intent = "local_news"
	IntentGreeting        Intent = "greeting"
	IntentDataFound       Intent = "data_found"
	IntentUnmatched       Intent = "unmatched"
)

var (
	timeScopeTerms = []string{"今月", "this month"}
	learningTerms  = []string{"学び", "学習", "講座", "勉強", "learning", "course", "study"}
	videoTerms     = []string{"動画", "ビデオ", "video"}
	quizTerms      = []string{"クイズ", "テスト", "問題", "quiz", "test", "exam"}
	newsTerms      = []string{"ニュース", "お知らせ", "最新", "新着", "news", "latest", "announcement"}
	placeTerms     = []string{"地域", "地元", "近く", "市", "町", "村", "県", "区", "local", "region", "area"}
	greetingTerms  = []string{"こんにちは", "こんばんは", "おはよう", "はじめまして", "よろしく", "hello", "good morning"}
)

// route pairs a predicate over the lower-cased message with its intent
type route struct {
	intent Intent
	match  func(q string, snap *model.ContentSnapshot) bool
}

// routes are evaluated in order and the first match wins. Keyword sets
// overlap, so the time-scoped learning route must stay ahead of learning.
var routes = []route{
	{IntentMonthlyLearning, func(q string, _ *model.ContentSnapshot) bool {
		return containsAny(q, timeScopeTerms) && containsAny(q, learningTerms)
	}},
	{IntentLearning, keywords(learningTerms)},
	{IntentVideo, keywords(videoTerms)},
	{IntentQuiz, keywords(quizTerms)},
	{IntentNews, keywords(newsTerms)},
	{IntentLocalNews, keywords(placeTerms)},
	{IntentGreeting, keywords(greetingTerms)},
	{IntentDataFound, func(_ string, snap *model.ContentSnapshot) bool {
		return !snap.Empty()
	}},
}

// Classify routes message to an intent
func Classify(message string, snap *model.ContentSnapshot) Intent {
	q := strings.ToLower(message)
	for _, r := range routes {
		if r.match(q, snap) {
			return r.intent
		}
	}
	return IntentUnmatched
}

func keywords(terms []string) func(string, *model.ContentSnapshot) bool {
	return func(q string, _ *model.ContentSnapshot) bool {
		return containsAny(q, terms)
	}
}

// containsAny reports whether q contains any term. Latin terms must start a
// word, so "test" matches "tests" but not "latest".
func containsAny(q string, terms []string) bool {
	for _, t := range terms {
		if isLatin(t) {
			if startsWord(q, t) {
				return true
			}
			continue
		}
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}

func startsWord(q, term string) bool {
	for offset := 0; ; {
		i := strings.Index(q[offset:], term)
		if i < 0 {
			return false
		}
		i += offset
		if i == 0 || !isWordByte(q[i-1]) {
			return true
		}
		offset = i + 1
	}
}

func isLatin(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
