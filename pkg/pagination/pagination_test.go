package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(t *testing.T, target string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext(t, "/consultas"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_ExplicitParams(t *testing.T) {
	p := FromContext(newContext(t, "/consultas?limit=25&offset=5"))
	if p.Limit != 25 {
		t.Errorf("expected limit 25, got %d", p.Limit)
	}
	if p.Offset != 5 {
		t.Errorf("expected offset 5, got %d", p.Offset)
	}
}

func TestFromContext_CapsLimit(t *testing.T) {
	p := FromContext(newContext(t, "/consultas?limit=9999"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	p := FromContext(newContext(t, "/consultas?limit=abc&offset=-3"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit for garbage input, got %d", p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestParams_SQL(t *testing.T) {
	p := Params{Limit: 10, Offset: 30}
	if got := p.SQL(); got != "LIMIT 10 OFFSET 30" {
		t.Errorf("unexpected SQL clause %q", got)
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}

	if !p.HasNext(50) {
		t.Error("expected HasNext for total 50")
	}
	if p.HasNext(30) {
		t.Error("expected no next page at the end")
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious at offset 20")
	}
	if p.NextOffset() != 30 {
		t.Errorf("expected next offset 30, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 10 {
		t.Errorf("expected previous offset 10, got %d", p.PreviousOffset())
	}

	first := Params{Limit: 10, Offset: 3}
	if first.PreviousOffset() != 0 {
		t.Errorf("expected previous offset clamped to 0, got %d", first.PreviousOffset())
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 12, 10, 0)
	if r.Total != 12 || r.Limit != 10 || r.Offset != 0 {
		t.Errorf("unexpected response meta: %+v", r)
	}
	if !r.HasMore {
		t.Error("expected HasMore for 12 results at offset 0 with limit 10")
	}

	last := NewResponse(nil, 12, 10, 10)
	if last.HasMore {
		t.Error("expected no more results on the last page")
	}
}
