package extract

import (
	"strings"
	"testing"
)

func TestMarkdown_StripsScriptsKeepsContent(t *testing.T) {
	// WHAT: snapshot markdown keeps the page content and drops script
	// payloads.
	// WHY: captures end up in run directories and on the control surface;
	// they must be safe to open anywhere.
	in := `<p>Nova <strong>12</strong> at ₹15,999</p><script>alert("x")</script>`
	out := Markdown(in, "https://shop.example")
	if !strings.Contains(out, "Nova") || !strings.Contains(out, "15,999") {
		t.Errorf("content missing from %q", out)
	}
	if strings.Contains(out, "alert") {
		t.Errorf("script leaked into %q", out)
	}
}

func TestMarkdown_EmptyInput(t *testing.T) {
	if out := Markdown("", "https://shop.example"); out != "" {
		t.Errorf("got %q, want empty", out)
	}
}

func TestBodyText_ScopedToBody(t *testing.T) {
	doc, err := Parse("<html><head><title>head title</title></head><body><p>visible</p></body></html>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := BodyText(doc)
	if got != "visible" {
		t.Errorf("got %q, want %q", got, "visible")
	}
}
