package sliceutil

import (
	"slices"
	"testing"
)

func TestDeduplicateKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	ids := []int{42123880, 42123001, 42123880, 42122555, 42123001}
	got := Deduplicate(ids, func(id int) int { return id })

	want := []int{42123880, 42123001, 42122555}
	if !slices.Equal(got, want) {
		t.Errorf("Deduplicate() = %v, want %v", got, want)
	}
}

func TestDeduplicateNoDuplicates(t *testing.T) {
	t.Parallel()

	ids := []int{1, 2, 3}
	got := Deduplicate(ids, func(id int) int { return id })
	if !slices.Equal(got, ids) {
		t.Errorf("Deduplicate() = %v, want input unchanged", got)
	}
}

func TestDeduplicateEmptyAndSingle(t *testing.T) {
	t.Parallel()

	if got := Deduplicate([]int{}, func(id int) int { return id }); len(got) != 0 {
		t.Errorf("Deduplicate(empty) = %v, want empty", got)
	}
	if got := Deduplicate([]int{7}, func(id int) int { return id }); !slices.Equal(got, []int{7}) {
		t.Errorf("Deduplicate(single) = %v, want [7]", got)
	}
}

func TestDeduplicateByProjectedKey(t *testing.T) {
	t.Parallel()

	type story struct {
		id    int
		title string
	}
	stories := []story{
		{id: 3, title: "first"},
		{id: 1, title: "second"},
		{id: 3, title: "repeat of first"},
		{id: 2, title: "third"},
	}

	got := Deduplicate(stories, func(s story) int { return s.id })

	if len(got) != 3 {
		t.Fatalf("Deduplicate() kept %d items, want 3", len(got))
	}
	if got[0].title != "first" || got[1].title != "second" || got[2].title != "third" {
		t.Errorf("Deduplicate() reordered or kept the wrong occurrence: %v", got)
	}
}
