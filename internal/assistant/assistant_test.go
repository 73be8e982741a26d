package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkkkikiki/portal/internal/database/dbtest"
	"github.com/kkkkikiki/portal/internal/model"
)

// 2026-10-16 10:00 JST
var fixedNow = time.Date(2026, 10, 16, 10, 0, 0, 0, jst)

type staticSource struct {
	snap *model.ContentSnapshot
	err  error
}

func (s staticSource) Load(context.Context) (*model.ContentSnapshot, error) {
	return s.snap, s.err
}

type fakeCompleter struct {
	enabled bool
	text    string
	err     error

	gotSystem string
	gotUser   string
	calls     int
}

func (f *fakeCompleter) Enabled() bool { return f.enabled }

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.gotSystem, f.gotUser = system, user
	return f.text, f.err
}

func at(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 9, 0, 0, 0, jst)
	return &t
}

func sampleSnapshot() *model.ContentSnapshot {
	return &model.ContentSnapshot{
		Learning: []model.ContentItem{
			{Title: "防災講座", Summary: "避難所の使い方を学ぶ", Category: "防災", Location: "市民会館", StartsAt: at(2026, 10, 20)},
			{Title: "家庭菜園入門", Summary: "プランターで野菜づくり", Category: "暮らし", StartsAt: at(2026, 11, 3)},
		},
		Videos: []model.ContentItem{
			{Title: "ごみの分け方", Summary: "3分でわかる分別", URL: "https://example.jp/v/1", PublishedAt: at(2026, 9, 1)},
		},
		Quizzes: []model.ContentItem{
			{Title: "防災クイズ", Summary: "10問に挑戦", Category: "防災"},
		},
		Links: []model.ContentItem{
			{Title: "ごみ収集カレンダー", URL: "https://example.jp/gomi"},
		},
		News: []model.ContentItem{
			{Title: "道路工事のお知らせ", Summary: "駅前通りが通行止め", Location: "緑区", PublishedAt: at(2026, 10, 10)},
			{Title: "花火大会中止", Summary: "天候不良のため", Location: "青葉町", PublishedAt: at(2026, 10, 12)},
		},
	}
}

func newTestResponder(src Source, c Completer) *Responder {
	return NewResponder(src, c, Config{Location: jst}, WithClock(func() time.Time { return fixedNow }))
}

func TestClassify_Priority(t *testing.T) {
	snap := sampleSnapshot()
	cases := []struct {
		message string
		want    Intent
	}{
		{"今月の学びは？", IntentMonthlyLearning},
		{"What courses run THIS MONTH?", IntentMonthlyLearning},
		{"学びを教えて", IntentLearning},
		{"今月の動画", IntentVideo},
		{"おすすめの動画は？", IntentVideo},
		{"クイズに挑戦したい", IntentQuiz},
		{"最新のお知らせ", IntentNews},
		{"latest news please", IntentNews},
		{"is there a test today?", IntentQuiz},
		{"Practice tests", IntentQuiz},
		{"テストはある？", IntentQuiz},
		{"緑区の様子は？", IntentLocalNews},
		{"こんにちは", IntentGreeting},
		{"Hello there", IntentGreeting},
		{"asdkfjasldkfj", IntentDataFound},
		{"", IntentDataFound},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.message, snap))
		})
	}
}

func TestClassify_UnmatchedWithoutData(t *testing.T) {
	assert.Equal(t, IntentUnmatched, Classify("asdkfjasldkfj", &model.ContentSnapshot{}))
	assert.Equal(t, IntentUnmatched, Classify("", nil))
}

func TestRespond_IsTotal(t *testing.T) {
	sources := map[string]Source{
		"empty":  staticSource{snap: &model.ContentSnapshot{}},
		"data":   staticSource{snap: sampleSnapshot()},
		"broken": staticSource{err: errors.New("connection refused")},
		"nil":    nil,
	}
	for name, src := range sources {
		for _, msg := range []string{"", "asdkfjasldkfj", "今月の学びは？", "動画", "クイズ", "ニュース", "地域", "こんにちは"} {
			t.Run(name+"/"+msg, func(t *testing.T) {
				text := newTestResponder(src, nil).Respond(context.Background(), msg)
				assert.NotEmpty(t, strings.TrimSpace(text))
			})
		}
	}
}

func TestRespond_MonthlyLearningFiltersCurrentMonth(t *testing.T) {
	r := newTestResponder(staticSource{snap: sampleSnapshot()}, nil)

	reply := r.Answer(context.Background(), "今月の学びは？")
	assert.Equal(t, IntentMonthlyLearning, reply.Intent)
	assert.Equal(t, "local", reply.Source)
	assert.Contains(t, reply.Text, "10月に始まる学びコンテンツはこちらです")
	assert.Contains(t, reply.Text, "防災講座: 避難所の使い方を学ぶ (防災 / 市民会館 / 2026/10/20〜)")
	assert.NotContains(t, reply.Text, "家庭菜園入門")
}

func TestRespond_MonthlyLearningFallsBackToOthers(t *testing.T) {
	snap := sampleSnapshot()
	snap.Learning = snap.Learning[1:]
	r := newTestResponder(staticSource{snap: snap}, nil)

	text := r.Respond(context.Background(), "今月の学びは？")
	assert.Contains(t, text, "見つかりませんでしたが")
	assert.Contains(t, text, "家庭菜園入門")
}

func TestRespond_EmptyCollectionsDegrade(t *testing.T) {
	r := newTestResponder(staticSource{snap: &model.ContentSnapshot{}}, nil)

	for _, msg := range []string{"今月の学び", "学び", "動画", "クイズ", "ニュース", "地域"} {
		text := r.Respond(context.Background(), msg)
		assert.Contains(t, text, "見つかりませんでした", msg)
	}
	assert.Contains(t, r.Respond(context.Background(), "asdkfjasldkfj"), "今月の学びは？")
}

func TestRespond_LocalNewsPrefersNamedLocation(t *testing.T) {
	r := newTestResponder(staticSource{snap: sampleSnapshot()}, nil)

	text := r.Respond(context.Background(), "緑区の様子は？")
	assert.Contains(t, text, "道路工事のお知らせ")
	assert.NotContains(t, text, "花火大会中止")

	text = r.Respond(context.Background(), "地域の話題")
	assert.Contains(t, text, "道路工事のお知らせ")
	assert.Contains(t, text, "花火大会中止")
}

func TestRespond_DataFoundEchoesSnapshot(t *testing.T) {
	r := newTestResponder(staticSource{snap: sampleSnapshot()}, nil)

	reply := r.Answer(context.Background(), "asdkfjasldkfj")
	assert.Equal(t, IntentDataFound, reply.Intent)
	assert.Contains(t, reply.Text, "【学びコンテンツ】")
	assert.Contains(t, reply.Text, "ごみ収集カレンダー (https://example.jp/gomi)")
}

func TestRespond_DelegatesWhenConfigured(t *testing.T) {
	completer := &fakeCompleter{enabled: true, text: "今月は防災講座がおすすめです。"}
	r := newTestResponder(staticSource{snap: sampleSnapshot()}, completer)

	reply := r.Answer(context.Background(), "今月の学びは？")
	assert.Equal(t, "今月は防災講座がおすすめです。", reply.Text)
	assert.Equal(t, "llm", reply.Source)
	assert.Equal(t, "今月の学びは？", completer.gotUser)
	assert.Contains(t, completer.gotSystem, "2026/10/16")
	assert.Contains(t, completer.gotSystem, "- 防災講座: 避難所の使い方を学ぶ")
	assert.Contains(t, completer.gotSystem, "【ニュース】")
}

func TestRespond_DelegationFailureFallsBack(t *testing.T) {
	for name, c := range map[string]*fakeCompleter{
		"error":    {enabled: true, err: errors.New("status 503")},
		"blank":    {enabled: true, text: "  "},
		"disabled": {enabled: false, text: "never used"},
	} {
		t.Run(name, func(t *testing.T) {
			reply := newTestResponder(staticSource{snap: sampleSnapshot()}, c).Answer(context.Background(), "クイズ")
			assert.Equal(t, "local", reply.Source)
			assert.Equal(t, IntentQuiz, reply.Intent)
			assert.Contains(t, reply.Text, "防災クイズ")
		})
	}
}

func TestRespond_SnapshotErrorAnswersLocally(t *testing.T) {
	completer := &fakeCompleter{enabled: true, text: "unused"}
	r := newTestResponder(staticSource{err: errors.New("db down")}, completer)

	greeting := r.Answer(context.Background(), "こんにちは")
	assert.Equal(t, IntentGreeting, greeting.Intent)
	assert.Equal(t, "local", greeting.Source)
	assert.Contains(t, greeting.Text, "ポータルのAIナビです")

	monthly := r.Answer(context.Background(), "今月の学びは？")
	assert.Equal(t, IntentMonthlyLearning, monthly.Intent)
	assert.Contains(t, monthly.Text, "見つかりませんでした")

	assert.Equal(t, IntentUnmatched, r.Answer(context.Background(), "asdkfjasldkfj").Intent)
	assert.Zero(t, completer.calls)
}

func TestSystemContext_CapsRows(t *testing.T) {
	snap := &model.ContentSnapshot{}
	for i := 0; i < 15; i++ {
		snap.News = append(snap.News, model.ContentItem{Title: fmt.Sprintf("news-%02d", i)})
	}
	completer := &fakeCompleter{enabled: true, text: "ok"}
	r := NewResponder(staticSource{snap: snap}, completer, Config{RowLimit: 10})

	r.Respond(context.Background(), "hi")
	assert.Equal(t, 10, strings.Count(completer.gotSystem, "- news-"))
	assert.NotContains(t, completer.gotSystem, "news-10")
}

func TestDBSource_Load(t *testing.T) {
	db := dbtest.Open(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := db.Exec(`INSERT INTO news (id, title, summary, location, published_at) VALUES (?, ?, ?, ?, ?)`,
			fmt.Sprintf("n%d", i), fmt.Sprintf("News %d", i), "summary", "緑区", now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	_, err := db.Exec(`INSERT INTO learning_videos (id, title, video_url) VALUES ('v1', 'Sorting garbage', 'https://example.jp/v/1')`)
	require.NoError(t, err)

	snap, err := NewDBSource(db, 2).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.News, 2)
	assert.Equal(t, "News 2", snap.News[0].Title)
	require.Len(t, snap.Videos, 1)
	assert.Equal(t, "https://example.jp/v/1", snap.Videos[0].URL)
	assert.Empty(t, snap.Learning)
}

func TestRespond_MonthlyLearningFromDatabaseIgnoresRowCap(t *testing.T) {
	db := dbtest.Open(t)
	insert := func(id, title string, startsAt *time.Time) {
		t.Helper()
		var start any
		if startsAt != nil {
			start = startsAt.UTC()
		}
		_, err := db.Exec(`INSERT INTO learning_contents (id, title, description, starts_at, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, title, "", start, fixedNow.UTC())
		require.NoError(t, err)
	}

	insert("this-month", "防災講座", at(2026, 10, 18))
	for i := 1; i <= 11; i++ {
		insert(fmt.Sprintf("future-%02d", i), fmt.Sprintf("Future%d", i), at(2026, time.Month(11+i), 1))
	}
	for i := 1; i <= 11; i++ {
		insert(fmt.Sprintf("undated-%02d", i), fmt.Sprintf("Undated%d", i), nil)
	}

	clock := func() time.Time { return fixedNow }
	src := NewDBSource(db, DefaultRowLimit, WithSourceClock(clock), WithSourceLocation(jst))
	r := NewResponder(src, nil, Config{Location: jst}, WithClock(clock))

	reply := r.Answer(context.Background(), "今月の学びは？")
	assert.Equal(t, IntentMonthlyLearning, reply.Intent)
	assert.Contains(t, reply.Text, "10月に始まる学びコンテンツはこちらです")
	assert.Contains(t, reply.Text, "防災講座")
	assert.NotContains(t, reply.Text, "Future")

	learning := r.Respond(context.Background(), "学びを教えて")
	assert.NotContains(t, learning, "Undated")
}

func TestMonthBounds(t *testing.T) {
	from, to := monthBounds(time.Date(2026, 9, 30, 16, 0, 0, 0, time.UTC), jst)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, jst), from)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, jst), to)
}
