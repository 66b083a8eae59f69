package client

import (
	"sync"

	"github.com/nao1215/animalbase/pkg/wire"
	"github.com/rs/zerolog"
)

// DefaultAlertTitle はタイトルの無い通知に使う表示タイトル。
const DefaultAlertTitle = "AnimalBase"

// 通知の取得元。
const (
	SourceLive = "live"
	SourcePoll = "poll"
)

// Alert はユーザーに表示する1件の通知。
type Alert struct {
	// ID は通知レコードの識別子。不明な場合は空。
	ID string
	// Kind は通知の種類。
	Kind string
	// Title は表示タイトル。
	Title string
	// Message は本文。
	Message string
	// RelatedID は関連エンティティの識別子。
	RelatedID *int64
	// Source は取得元（SourceLive / SourcePoll）。
	Source string
}

// Alerter は通知をユーザーに表示する。
type Alerter interface {
	Alert(a Alert)
}

// alertFromPush はライブチャネルの通知フレームをAlertに変換する。
func alertFromPush(n wire.Notification) Alert {
	return newAlert(n.ID, n.Kind, n.Title, n.Message, n.RelatedID, SourceLive)
}

func newAlert(id, kind, title, message string, relatedID *int64, source string) Alert {
	if title == "" {
		title = DefaultAlertTitle
	}
	return Alert{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
		Source:    source,
	}
}

// LogAlerter は通知をログに出力するAlerter。
type LogAlerter struct {
	logger zerolog.Logger
}

// NewLogAlerter は新しいLogAlerterを生成する。
func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.With().Str("component", "alert").Logger()}
}

// Alert は通知を1行のログとして出力する。
func (l *LogAlerter) Alert(a Alert) {
	ev := l.logger.Info().
		Str("source", a.Source).
		Str("kind", a.Kind).
		Str("title", a.Title)
	if a.ID != "" {
		ev = ev.Str("id", a.ID)
	}
	if a.RelatedID != nil {
		ev = ev.Int64("related_id", *a.RelatedID)
	}
	ev.Msg(a.Message)
}

// DefaultDedupCapacity は DedupAlerter が覚えておく通知IDの既定の数。
const DefaultDedupCapacity = 256

// DedupAlerter は同じ通知IDのAlertを2回目以降は渡さないAlerter。
// ライブ配信とポーリングの両方で届いた通知の重複表示を防ぐ。
// IDの無いAlertは常に渡す。覚えておくIDは古いものから捨てる。
type DedupAlerter struct {
	next     Alerter
	capacity int

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewDedupAlerter は新しいDedupAlerterを生成する。capacityが0以下なら既定値を使う。
func NewDedupAlerter(next Alerter, capacity int) *DedupAlerter {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &DedupAlerter{
		next:     next,
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// Alert は初めて見るIDのAlertだけを次のAlerterに渡す。
func (d *DedupAlerter) Alert(a Alert) {
	if a.ID != "" && !d.remember(a.ID) {
		return
	}
	d.next.Alert(a)
}

// remember はIDを記録し、初めて見るIDならtrueを返す。
func (d *DedupAlerter) remember(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return false
	}
	if len(d.order) >= d.capacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	return true
}
