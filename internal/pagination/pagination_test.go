package pagination

import (
	"math"
	"strconv"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	req := Parse("", "")
	if req.Page != 1 || req.Limit != 10 {
		t.Fatalf("unexpected defaults %+v", req)
	}
	req = Parse("-3", "abc")
	if req.Page != 1 || req.Limit != 10 {
		t.Fatalf("expected invalid values to fall back, got %+v", req)
	}
	req = Parse("4", "1000")
	if req.Page != 4 || req.Limit != MaxLimit {
		t.Fatalf("expected capped limit, got %+v", req)
	}
}

func TestBuildCursors(t *testing.T) {
	cases := []struct {
		page, limit, total int
		next, prev         bool
		pages              int
	}{
		{1, 10, 0, false, false, 0},
		{1, 10, 10, false, false, 1},
		{1, 10, 11, true, false, 2},
		{2, 10, 11, false, true, 2},
		{2, 5, 25, true, true, 5},
		{5, 5, 25, false, true, 5},
		{9, 5, 25, false, true, 5},
	}
	for _, tc := range cases {
		p := Build(Request{Page: tc.page, Limit: tc.limit}, tc.total)
		if (p.Next != nil) != tc.next || (p.Prev != nil) != tc.prev {
			t.Fatalf("page %d limit %d total %d: next=%v prev=%v", tc.page, tc.limit, tc.total, p.Next, p.Prev)
		}
		if p.Pages != tc.pages || p.CurrentPage != tc.page || p.Total != tc.total {
			t.Fatalf("unexpected pagination %+v for %+v", p, tc)
		}
		if p.Next != nil && (p.Next.Page != tc.page+1 || p.Next.Limit != tc.limit) {
			t.Fatalf("unexpected next cursor %+v", p.Next)
		}
		if p.Prev != nil && p.Prev.Page != tc.page-1 {
			t.Fatalf("unexpected prev cursor %+v", p.Prev)
		}
	}
}

func TestSliceNeverExceedsLimit(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}
	for page := 1; page <= 5; page++ {
		for limit := 1; limit <= 12; limit++ {
			r := Request{Page: page, Limit: limit}
			got := Slice(r, items)
			if len(got.Items) > limit {
				t.Fatalf("page %d limit %d returned %d items", page, limit, len(got.Items))
			}
			if len(got.Items) > 0 && got.Items[0] != (page-1)*limit {
				t.Fatalf("page %d limit %d starts at %d", page, limit, got.Items[0])
			}
			if (got.Pagination.Next != nil) != (page*limit < len(items)) {
				t.Fatalf("page %d limit %d: wrong next cursor", page, limit)
			}
			if (got.Pagination.Prev != nil) != (page > 1) {
				t.Fatalf("page %d limit %d: wrong prev cursor", page, limit)
			}
		}
	}
}

func TestNewPageNeverNil(t *testing.T) {
	page := NewPage[string](Request{Page: 1, Limit: 10}, nil, 0)
	if page.Items == nil {
		t.Fatalf("expected empty slice, not nil")
	}
}

func TestHugePageIsClamped(t *testing.T) {
	req := Parse(strconv.Itoa(math.MaxInt), "10")
	if req.Page != MaxPage {
		t.Fatalf("expected page clamped to %d, got %d", MaxPage, req.Page)
	}
	if off := req.Offset(); off < 0 {
		t.Fatalf("offset overflowed: %d", off)
	}
	p := Build(Request{Page: math.MaxInt, Limit: 10}, 5)
	if p.Next != nil {
		t.Fatalf("expected no next cursor past the end, got %+v", p.Next)
	}
	if p.Prev == nil || p.Prev.Page != MaxPage-1 {
		t.Fatalf("unexpected prev cursor %+v", p.Prev)
	}
	if p.CurrentPage != MaxPage || p.Pages != 1 {
		t.Fatalf("unexpected pagination %+v", p)
	}
}
