package idgen

import (
	"sort"
	"testing"
	"time"
)

func TestNewRun_SortsByTime(t *testing.T) {
	var ids []string
	for range 5 {
		ids = append(ids, NewRun())
		time.Sleep(2 * time.Millisecond)
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("ids not time ordered: %v", ids)
	}
	for _, id := range ids {
		if _, err := ParseRun(id); err != nil {
			t.Fatalf("parse %s: %v", id, err)
		}
	}
}

func TestParseRun_Rejects(t *testing.T) {
	for _, s := range []string{"", "run_", "abc", "run_not-a-uuid", "0190a1b2-0000-7000-8000-000000000000"} {
		if _, err := ParseRun(s); err == nil {
			t.Errorf("ParseRun(%q): expected error", s)
		}
	}
}
