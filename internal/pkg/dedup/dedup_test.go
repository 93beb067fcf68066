package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

func match(id string) models.Match {
	return models.Match{URL: "https://www.sofascore.com/event/" + id, HomeTeam: "H" + id}
}

func TestDeduplicator_FirstSeenOrder(t *testing.T) {
	d := New(10)
	keys := []string{"3", "1", "3", "2", "1", "4", "2"}
	for _, k := range keys {
		d.Add(k, match(k))
	}

	got := d.Matches()
	want := []string{"3", "1", "2", "4"}
	if assert.Len(t, got, len(want)) {
		for i, k := range want {
			assert.Equal(t, match(k), got[i], "position %d", i)
		}
	}
}

func TestDeduplicator_Verdicts(t *testing.T) {
	d := New(2)
	assert.False(t, d.Seen("a"))
	assert.Equal(t, Accepted, d.Add("a", match("a")))
	assert.True(t, d.Seen("a"))
	assert.Equal(t, Duplicate, d.Add("a", match("a")))
	assert.Equal(t, Unidentified, d.Add("", match("x")))
	assert.Equal(t, Accepted, d.Add("b", match("b")))
	assert.True(t, d.Full())
	assert.Equal(t, LimitReached, d.Add("c", match("c")))
	assert.Equal(t, 0, d.Remaining())
}

func TestDeduplicator_NeverExceedsLimit(t *testing.T) {
	for _, limit := range []int{-1, 0, 1, 3, 7} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			d := New(limit)
			for i := 0; i < 20; i++ {
				d.Add(fmt.Sprint(i), match(fmt.Sprint(i)))
			}
			want := limit
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, d.Len())
		})
	}
}

func TestDeduplicator_ZeroLimitIsFull(t *testing.T) {
	d := New(0)
	assert.True(t, d.Full())
	assert.Empty(t, d.Matches())
}

func TestDeduplicator_MatchesReturnsCopy(t *testing.T) {
	d := New(2)
	d.Add("a", match("a"))
	got := d.Matches()
	got[0].HomeTeam = "changed"
	assert.Equal(t, "Ha", d.Matches()[0].HomeTeam)
}
