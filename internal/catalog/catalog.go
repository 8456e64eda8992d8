// Package catalog holds the fixed option lists shown on the report and login forms.
package catalog

import "fmt"

// OtherReason is the reason that reveals a free-text field.
const OtherReason = "その他"

// Default group naming used by the backend.
const (
	DefaultGroupPrefix = "グループ"
	DefaultGroupCount  = 200
)

var reasons = []string{"時間がなかった", "疲れていた", "スマホ・ゲーム", "難しくて止まった", OtherReason}

var improvements = map[string][]string{
	"時間がなかった": {
		"昼休みに5分だけ勉強する",
		"通学中に5分だけ勉強する",
		"帰宅してすぐ5分だけ勉強する",
		"お風呂前に5分だけ勉強する",
	},
	"疲れていた": {
		"明日10分早く起きて5分だけ勉強する",
		"立ったまま5分だけ勉強する",
		"ストレッチしてから5分だけ勉強する",
		"いつもと場所を変えて勉強する",
		"チームメンバーと自習室で勉強する",
	},
	"スマホ・ゲーム": {
		"別の部屋に置いてから勉強する",
		"スマホ・ゲームの時間帯を決めておく",
		"先に勉強を終わらせる",
		"いつもと場所を変えて勉強する",
	},
	"難しくて止まった": {
		"一旦飛ばして後で考えてみる",
		"不明点を付箋に書いて次へ進む",
		"すぐに飛ばして明日考えてみる",
		"その日の勉強後にまとめて質問する",
	},
	OtherReason: {},
}

// Reasons returns the selectable not-achieved reasons in display order.
func Reasons() []string {
	out := make([]string, len(reasons))
	copy(out, reasons)
	return out
}

// IsReason reports whether r is one of the listed reasons.
func IsReason(r string) bool {
	for _, known := range reasons {
		if known == r {
			return true
		}
	}
	return false
}

// Improvements returns the improvement options for a reason.
// Unknown reasons and the other reason have none.
func Improvements(reason string) []string {
	opts := improvements[reason]
	out := make([]string, len(opts))
	copy(out, opts)
	return out
}

// HasImprovement reports whether choice is listed for reason.
func HasImprovement(reason, choice string) bool {
	for _, opt := range improvements[reason] {
		if opt == choice {
			return true
		}
	}
	return false
}

// GroupOptions returns the group names prefix1..prefixN.
func GroupOptions(prefix string, count int) []string {
	if prefix == "" {
		prefix = DefaultGroupPrefix
	}
	if count <= 0 {
		count = DefaultGroupCount
	}
	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}
