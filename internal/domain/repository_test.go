package domain

import (
	"errors"
	"testing"
	"time"
)

func TestOrderCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 15, 0, 123456000, time.UTC)
	cursor := OrderCursor{CreatedAt: at, ID: "ORD-20260301-101500-0001-7F3A9C"}

	parsed, err := ParseOrderCursor(cursor.Encode())
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !parsed.CreatedAt.Equal(at) || parsed.ID != cursor.ID {
		t.Fatalf("unexpected cursor: %+v", parsed)
	}
}

func TestParseOrderCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "bm8tY29sb24", "YWJjOk9SRC0x", "MTIzOg"} {
		if _, err := ParseOrderCursor(token); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("token %q: expected ErrInvalidCursor, got %v", token, err)
		}
	}
}

func TestOrderQueryMatches(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := Order{ID: "o-2", CustomerID: "c-1", Status: OrderStatusShipped, CreatedAt: base}

	tests := []struct {
		name  string
		query OrderQuery
		want  bool
	}{
		{name: "same customer", query: OrderQuery{CustomerID: "c-1"}, want: true},
		{name: "other customer", query: OrderQuery{CustomerID: "c-2"}},
		{name: "status filter hit", query: OrderQuery{CustomerID: "c-1", Status: OrderStatusShipped}, want: true},
		{name: "status filter miss", query: OrderQuery{CustomerID: "c-1", Status: OrderStatusPending}},
		{name: "after newer order", query: OrderQuery{CustomerID: "c-1", After: &OrderCursor{CreatedAt: base.Add(time.Second), ID: "o-9"}}, want: true},
		{name: "same time lower id", query: OrderQuery{CustomerID: "c-1", After: &OrderCursor{CreatedAt: base, ID: "o-3"}}, want: true},
		{name: "cursor itself", query: OrderQuery{CustomerID: "c-1", After: &OrderCursor{CreatedAt: base, ID: "o-2"}}},
		{name: "after older order", query: OrderQuery{CustomerID: "c-1", After: &OrderCursor{CreatedAt: base.Add(-time.Second), ID: "o-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(order); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
