package events

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWhereClause_Empty(t *testing.T) {
	where, args := whereClause(Filter{})
	if where != "" || len(args) != 0 {
		t.Errorf("expected no clause, got %q %v", where, args)
	}
}

func TestWhereClause_NumbersArguments(t *testing.T) {
	client := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := whereClause(Filter{
		Type:     TypeAccident,
		Status:   StatusOpen,
		ClientID: &client,
		From:     &from,
		Search:   "50%_off",
	})
	want := " WHERE type = $1 AND status = $2 AND client_id = $3 AND occurred_at >= $4 AND (title ILIKE $5 OR description ILIKE $5 OR location ILIKE $5)"
	if where != want {
		t.Errorf("unexpected clause:\n got %s\nwant %s", where, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if s := args[4].(string); !strings.Contains(s, `50\%\_off`) {
		t.Errorf("expected escaped search, got %q", s)
	}
}
