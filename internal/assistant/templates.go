package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/kkkkikiki/portal/internal/model"
)

const (
	apologyText = "申し訳ありません。ただいま情報を取得できませんでした。しばらくしてから、もう一度お試しください。"

	menuText = "次のような質問にお答えできます。\n" +
		"- 今月の学びは？\n" +
		"- おすすめの動画を教えて\n" +
		"- 挑戦できるクイズはある？\n" +
		"- 最新のお知らせは？\n" +
		"- 地域のニュースを教えて"
)

// renderer produces the reply for one intent
type renderer func(q string, snap *model.ContentSnapshot, rc renderContext) string

type renderContext struct {
	now   time.Time
	loc   *time.Location
	limit int
}

var renderers = map[Intent]renderer{
	IntentMonthlyLearning: renderMonthlyLearning,
	IntentLearning:        renderLearning,
	IntentVideo:           renderVideos,
	IntentQuiz:            renderQuizzes,
	IntentNews:            renderNews,
	IntentLocalNews:       renderLocalNews,
	IntentGreeting:        renderGreeting,
	IntentDataFound:       renderDataFound,
	IntentUnmatched:       renderUnmatched,
}

// render never returns an empty string
func render(intent Intent, q string, snap *model.ContentSnapshot, rc renderContext) string {
	r, ok := renderers[intent]
	if !ok {
		r = renderUnmatched
	}
	if text := r(q, snap, rc); strings.TrimSpace(text) != "" {
		return text
	}
	return renderUnmatched(q, snap, rc)
}

func renderMonthlyLearning(_ string, snap *model.ContentSnapshot, rc renderContext) string {
	now := rc.now.In(rc.loc)
	candidates := snap.MonthlyLearning
	if candidates == nil {
		candidates = snap.Learning
	}
	var thisMonth []model.ContentItem
	for _, item := range candidates {
		if item.StartsAt == nil {
			continue
		}
		start := item.StartsAt.In(rc.loc)
		if start.Year() == now.Year() && start.Month() == now.Month() {
			thisMonth = append(thisMonth, item)
		}
	}

	if len(thisMonth) > 0 {
		return fmt.Sprintf("%d月に始まる学びコンテンツはこちらです。\n%s",
			int(now.Month()), list(thisMonth, rc))
	}
	if len(snap.Learning) > 0 {
		return fmt.Sprintf("%d月に始まる学びコンテンツは見つかりませんでしたが、こちらの学びはいかがでしょうか。\n%s",
			int(now.Month()), list(snap.Learning, rc))
	}
	return "今月の学びコンテンツは見つかりませんでした。「動画」や「クイズ」についても聞いてみてください。"
}

func renderLearning(_ string, snap *model.ContentSnapshot, rc renderContext) string {
	if len(snap.Learning) == 0 {
		return "現在公開中の学びコンテンツは見つかりませんでした。「動画」や「クイズ」についても聞いてみてください。"
	}
	return "おすすめの学びコンテンツはこちらです。\n" + list(snap.Learning, rc)
}

func renderVideos(_ string, snap *model.ContentSnapshot, rc renderContext) string {
	if len(snap.Videos) == 0 {
		return "現在公開中の学習動画は見つかりませんでした。「今月の学び」について聞いてみてください。"
	}
	return "視聴できる学習動画はこちらです。\n" + list(snap.Videos, rc)
}

func renderQuizzes(_ string, snap *model.ContentSnapshot, rc renderContext) string {
	if len(snap.Quizzes) == 0 {
		return "現在挑戦できるクイズは見つかりませんでした。「学び」や「動画」についても聞いてみてください。"
	}
	return "挑戦できるクイズはこちらです。高得点でクーポンがもらえることもあります。\n" + list(snap.Quizzes, rc)
}

func renderNews(_ string, snap *model.ContentSnapshot, rc renderContext) string {
	if len(snap.News) == 0 {
		return "最新のお知らせは見つかりませんでした。「学び」や「クイズ」についても聞いてみてください。"
	}
	return "最新のお知らせはこちらです。\n" + list(snap.News, rc)
}

// renderLocalNews prefers news whose location is named in the message
func renderLocalNews(q string, snap *model.ContentSnapshot, rc renderContext) string {
	if len(snap.News) == 0 {
		return "地域のニュースは見つかりませんでした。「最新のお知らせ」や「今月の学び」について聞いてみてください。"
	}

	var local []model.ContentItem
	for _, item := range snap.News {
		if item.Location != "" && strings.Contains(q, strings.ToLower(item.Location)) {
			local = append(local, item)
		}
	}
	if len(local) > 0 {
		return "お住まいの地域に関するニュースはこちらです。\n" + list(local, rc)
	}
	return "地域のニュースはこちらです。\n" + list(snap.News, rc)
}

func renderGreeting(_ string, _ *model.ContentSnapshot, _ renderContext) string {
	return "こんにちは！ポータルのAIナビです。\n" + menuText
}

func renderDataFound(_ string, snap *model.ContentSnapshot, rc renderContext) string {
	return "ご質問に直接あてはまる情報は見つかりませんでしたが、現在ポータルには次の情報があります。\n" +
		dumpSnapshot(snap, rc.limit, rc.loc)
}

func renderUnmatched(_ string, _ *model.ContentSnapshot, _ renderContext) string {
	return "ご質問に関する情報が見つかりませんでした。\n" + menuText
}

func list(items []model.ContentItem, rc renderContext) string {
	lines := make([]string, 0, len(items))
	for i, item := range items {
		if i == rc.limit {
			break
		}
		lines = append(lines, "- "+flatten(item, rc.loc))
	}
	return strings.Join(lines, "\n")
}
