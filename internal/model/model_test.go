package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPopularWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		counts map[string]int
		top    int
		want   []WordCount
	}{
		{
			name:   "count descending",
			counts: map[string]int{"a": 1, "b": 3, "c": 2},
			top:    0,
			want:   []WordCount{{"b", 3}, {"c", 2}, {"a", 1}},
		},
		{
			name:   "ties broken by length then alphabet",
			counts: map[string]int{"cat": 2, "horse": 2, "dog": 2, "ox": 2},
			top:    0,
			want:   []WordCount{{"horse", 2}, {"cat", 2}, {"dog", 2}, {"ox", 2}},
		},
		{
			name:   "length counts runes",
			counts: map[string]int{"日本語": 1, "abcd": 1},
			top:    0,
			want:   []WordCount{{"abcd", 1}, {"日本語", 1}},
		},
		{
			name:   "truncated",
			counts: map[string]int{"a": 5, "b": 4, "c": 3, "d": 2},
			top:    2,
			want:   []WordCount{{"a", 5}, {"b", 4}},
		},
		{
			name:   "top larger than map",
			counts: map[string]int{"a": 1},
			top:    10,
			want:   []WordCount{{"a", 1}},
		},
		{
			name:   "empty",
			counts: map[string]int{},
			top:    3,
			want:   []WordCount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := PopularWords(tt.counts, tt.top)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PopularWords() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopularWordsDeterministic(t *testing.T) {
	t.Parallel()

	counts := make(map[string]int)
	for i, w := range strings.Fields("the quick brown fox jumps over the lazy dog and runs far away") {
		counts[w] += i % 3
	}

	first := PopularWords(counts, 0)
	for range 20 {
		if got := PopularWords(counts, 0); !reflect.DeepEqual(got, first) {
			t.Fatalf("PopularWords() not deterministic: %v vs %v", got, first)
		}
	}
}

func TestNewCrawlResult(t *testing.T) {
	t.Parallel()

	seeds := []string{"http://example.com/"}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	r := NewCrawlResult(seeds, started, 3)
	if _, err := uuid.Parse(r.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", r.ID, err)
	}
	if r.MaxDepth != 3 || !r.StartedAt.Equal(started) {
		t.Errorf("unexpected fields: %+v", r)
	}
	if r.WordCounts == nil {
		t.Error("WordCounts should be initialized")
	}

	seeds[0] = "changed"
	if r.Seeds[0] != "http://example.com/" {
		t.Error("Seeds should be copied")
	}

	other := NewCrawlResult(seeds, started, 3)
	if other.ID == r.ID {
		t.Error("IDs should be unique")
	}
}

func TestCrawlResultWordCounts(t *testing.T) {
	t.Parallel()

	r := NewCrawlResult(nil, time.Now(), 1)
	r.SetWordCounts(map[string]int{"go": 4, "rust": 2, "c": 1}, 2)

	if got := r.TotalWords(); got != 7 {
		t.Errorf("TotalWords() = %d, want 7", got)
	}
	want := []WordCount{{"go", 4}, {"rust", 2}}
	if !reflect.DeepEqual(r.PopularWords, want) {
		t.Errorf("PopularWords = %v, want %v", r.PopularWords, want)
	}
}

func TestCrawlResultJSON(t *testing.T) {
	t.Parallel()

	r := NewCrawlResult([]string{"http://example.com/"}, time.Now(), 2)
	r.SetWordCounts(map[string]int{"hello": 2}, 0)
	r.URLsVisited = 1

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"wordCounts", "urlsVisited", "popularWords", "id", "timedOut"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSON is missing %q: %s", key, data)
		}
	}
	if _, ok := fields["fetchErrors"]; ok {
		t.Errorf("empty fetchErrors should be omitted: %s", data)
	}
}

func TestCrawlResultSummary(t *testing.T) {
	t.Parallel()

	r := NewCrawlResult([]string{"http://a.test/"}, time.Now(), 4)
	r.SetWordCounts(map[string]int{"a": 2, "b": 3}, 1)
	r.URLsVisited = 7
	r.TimedOut = true
	r.Elapsed = time.Second

	s := r.Summary()
	if s.ID != r.ID || s.MaxDepth != 4 || s.URLsVisited != 7 || !s.TimedOut || s.Elapsed != time.Second {
		t.Errorf("Summary() = %+v", s)
	}
	if s.DistinctWords != 2 || s.TotalWords != 5 {
		t.Errorf("DistinctWords = %d, TotalWords = %d, want 2, 5", s.DistinctWords, s.TotalWords)
	}
}
