package display

import (
	"strings"
	"testing"
	"time"

	"github.com/moneykin1993/habit-app/internal/model"
)

func TestMinutesLabelMatchesHoursAndRemainder(t *testing.T) {
	for min := MinStudyMinutes; min <= MaxStudyMinutes; min += StudyMinutesStep {
		label := MinutesLabel(min)
		h := min / 60
		m := min % 60
		hasHours := strings.Contains(label, " h")
		hasMinutes := strings.Contains(label, "min")
		if h == 0 && hasHours {
			t.Fatalf("%d: expected hour unit omitted, got %q", min, label)
		}
		if m == 0 && h > 0 && hasMinutes {
			t.Fatalf("%d: expected minute unit omitted, got %q", min, label)
		}
		var want string
		switch {
		case h == 0:
			want = itoa(m) + " min"
		case m == 0:
			want = itoa(h) + " h"
		default:
			want = itoa(h) + " h " + pad2(m) + " min"
		}
		if label != want {
			t.Fatalf("%d: expected %q, got %q", min, want, label)
		}
	}
}

func TestMinutesLabelSamples(t *testing.T) {
	cases := map[int]string{
		0:   "0 min",
		50:  "50 min",
		60:  "1 h",
		70:  "1 h 10 min",
		125: "2 h 05 min",
		720: "12 h",
	}
	for in, want := range cases {
		if got := MinutesLabel(in); got != want {
			t.Fatalf("MinutesLabel(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeOptions(t *testing.T) {
	opts := TimeOptions()
	if len(opts) != 73 {
		t.Fatalf("expected 73 options, got %d", len(opts))
	}
	if opts[0].Minutes != 0 || opts[len(opts)-1].Minutes != 720 {
		t.Fatalf("unexpected bounds: %+v .. %+v", opts[0], opts[len(opts)-1])
	}
	for i := 1; i < len(opts); i++ {
		if opts[i].Minutes-opts[i-1].Minutes != StudyMinutesStep {
			t.Fatalf("expected step of %d at %d", StudyMinutesStep, i)
		}
	}
}

func TestHoursToHM(t *testing.T) {
	h, m := HoursToHM(2.5)
	if h != 2 || m != 30 {
		t.Fatalf("expected 2h30m, got %dh%dm", h, m)
	}
	h, m = HoursToHM(1.999)
	if h != 2 || m != 0 {
		t.Fatalf("expected rounding to 2h0m, got %dh%dm", h, m)
	}
	if got := HoursLabel(0.25); got != "0 h 15 min" {
		t.Fatalf("unexpected hours label %q", got)
	}
}

func TestISOWeekMondayWeekOne(t *testing.T) {
	for year := 2000; year <= 2040; year++ {
		mon, err := ISOWeekMonday(itoa(year) + "-W01")
		if err != nil {
			t.Fatalf("%d: %v", year, err)
		}
		if mon.Weekday() != time.Monday {
			t.Fatalf("%d: expected Monday, got %s", year, mon.Weekday())
		}
		jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
		if mon.After(jan4) || jan4.Sub(mon) >= 7*24*time.Hour {
			t.Fatalf("%d: %s is not the Monday on/before Jan 4", year, mon.Format(DateLayout))
		}
	}
}

func TestISOWeekMondayUniqueAndConsistent(t *testing.T) {
	seen := map[string]string{}
	for year := 2015; year <= 2035; year++ {
		for week := 1; week <= 53; week++ {
			id := itoa(year) + "-W" + pad2(week)
			mon, err := ISOWeekMonday(id)
			if week == 53 && weeksInYear(year) == 52 {
				next, _ := ISOWeekMonday(itoa(year+1) + "-W01")
				if err != nil || !mon.Equal(next) {
					t.Fatalf("%s: expected the Monday of the next week 1, got %s (%v)", id, mon.Format(DateLayout), err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("%s: %v", id, err)
			}
			key := mon.Format(DateLayout)
			if prev, ok := seen[key]; ok {
				t.Fatalf("%s and %s map to the same Monday %s", prev, id, key)
			}
			seen[key] = id
			y, w := mon.ISOWeek()
			if y != year || w != week {
				t.Fatalf("%s: Monday %s is in ISO week %d-W%02d", id, key, y, w)
			}
		}
	}
}

// weeksInYear is 53 when December 28th falls in week 53, otherwise 52.
func weeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

func TestWeekLabelWeek53InShortYear(t *testing.T) {
	// 2025 has 52 ISO weeks.
	if got := WeekLabel("2025-W53"); got != "12/29~" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestISOWeekMondayRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "2025W01", "2025-W00", "2025-W54", "25-W01", "2025-w01"} {
		if _, err := ISOWeekMonday(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestWeekLabel(t *testing.T) {
	if got := WeekLabel("2025-W49"); got != "12/1~" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := WeekLabel("bogus"); got != "bogus" {
		t.Fatalf("expected invalid id unchanged, got %q", got)
	}
}

func TestPieAnglesBounds(t *testing.T) {
	for a := 0; a <= 7; a++ {
		for n := 0; n <= 7-a; n++ {
			u := 7 - a - n
			b1, b2 := PieAngles(model.Pie{Achieved: a, NotAchieved: n, Unreported: u})
			if b1 < 0 || b1 > b2 || b2 > 360 {
				t.Fatalf("a=%d n=%d u=%d: invalid boundaries %v %v", a, n, u, b1, b2)
			}
			if a == 0 && b1 != 0 {
				t.Fatalf("expected zero first boundary when achieved=0, got %v", b1)
			}
		}
	}
	b1, b2 := PieAngles(model.Pie{})
	if b1 != 0 || b2 != 0 {
		t.Fatalf("expected zero angles for empty pie, got %v %v", b1, b2)
	}
	b1, b2 = PieAngles(model.Pie{Achieved: 3, NotAchieved: 1})
	if b1 != 270 || b2 != 360 {
		t.Fatalf("unexpected angles %v %v", b1, b2)
	}
}

func TestToday(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2025, time.March, 1, 16, 30, 0, 0, time.UTC)
	if got := Today(now, tokyo); got != "2025-03-02" {
		t.Fatalf("expected next day in JST, got %s", got)
	}
}

func TestHasAnySpace(t *testing.T) {
	if HasAnySpace("山田太郎") {
		t.Fatalf("expected no space")
	}
	if !HasAnySpace("山田 太郎") || !HasAnySpace("山田　太郎") {
		t.Fatalf("expected half- and full-width spaces to be detected")
	}
}

func itoa(v int) string {
	return Number(float64(v))
}

func pad2(v int) string {
	if v < 10 {
		return "0" + itoa(v)
	}
	return itoa(v)
}
