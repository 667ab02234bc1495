package query

import (
	"errors"
	"testing"
)

func TestHighestPlaceholder(t *testing.T) {
	cases := []struct {
		sql  string
		want int
	}{
		{"SELECT 1", 0},
		{"SELECT $1", 1},
		{"SELECT $2, $1", 2},
		{"SELECT $1 WHERE x = $10", 10},
		{"SELECT '$5'", 0},
		{"SELECT 'it''s $5'", 0},
		{"SELECT $1 -- $9", 1},
		{"SELECT $1 /* $9 */", 1},
		{"SELECT $$body $9$$, $1", 1},
		{"SELECT $tag$ $9 $tag$, $1", 1},
	}
	for _, c := range cases {
		if got := highestPlaceholder(c.sql); got != c.want {
			t.Errorf("highestPlaceholder(%q) = %d, want %d", c.sql, got, c.want)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	if err := validateRequest("SELECT $1", 1); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	err := validateRequest("SELECT $1, $2", 1)
	if !errors.Is(err, &QueryError{Kind: KindParamCountMismatch}) {
		t.Errorf("expected %s, got: %v", KindParamCountMismatch, err)
	}

	// Too many values is just as wrong as too few.
	err = validateRequest("SELECT $1", 2)
	if !errors.Is(err, &QueryError{Kind: KindParamCountMismatch}) {
		t.Errorf("expected %s, got: %v", KindParamCountMismatch, err)
	}

	err = validateRequest("", 0)
	if !errors.Is(err, &QueryError{Kind: KindMissingQueryText}) {
		t.Errorf("expected %s, got: %v", KindMissingQueryText, err)
	}
}
