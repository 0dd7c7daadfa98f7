package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/releve/internal/extract"
	"github.com/hazyhaar/releve/internal/idgen"
)

// Capturer writes diagnostic artifacts for failed navigations: a
// viewport screenshot, plus a markdown rendering of the DOM for when the
// screenshot is blank (renderer gone) but the DOM still holds whatever
// block page the site served.
type Capturer struct {
	dir    string
	logger *slog.Logger
	newID  func() string
}

// NewCapturer creates a Capturer writing into dir. An empty dir disables
// captures entirely.
func NewCapturer(dir string, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("browser: capture dir unavailable", "dir", dir, "error", err)
			dir = ""
		}
	}
	return &Capturer{dir: dir, logger: logger, newID: idgen.NewCaptureID}
}

// Capture saves a screenshot named after the failure class and context
// tag. Every error is swallowed: diagnostics must never break a run.
// Returns the written path, or "" when nothing was saved.
func (c *Capturer) Capture(page *rod.Page, class FailureClass, tag string) string {
	return c.capturePNG(page, class.String(), tag)
}

// CaptureError saves a screenshot for a failure outside the navigation
// path, such as an extraction panic caught at the item boundary.
func (c *Capturer) CaptureError(page *rod.Page, tag string) string {
	return c.capturePNG(page, "error", tag)
}

func (c *Capturer) capturePNG(page *rod.Page, classLabel, tag string) string {
	if c == nil || c.dir == "" || page == nil {
		return ""
	}

	img, err := page.Screenshot(false, nil)
	if err != nil {
		c.logger.Debug("browser: screenshot failed", "error", err)
		return ""
	}

	path := filepath.Join(c.dir, c.fileName(classLabel, tag, "png"))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		c.logger.Debug("browser: screenshot write failed", "path", path, "error", err)
		return ""
	}

	c.logger.Info("browser: saved diagnostic capture", "path", path)
	return path
}

// CaptureDOM saves a sanitised markdown rendering of rawHTML alongside
// the screenshots. Same best-effort contract as Capture.
func (c *Capturer) CaptureDOM(rawHTML, sourceURL string, class FailureClass, tag string) string {
	if c == nil || c.dir == "" || rawHTML == "" {
		return ""
	}

	md := extract.Markdown(rawHTML, sourceURL)
	if md == "" {
		return ""
	}

	path := filepath.Join(c.dir, c.fileName(class.String(), tag, "md"))
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		c.logger.Debug("browser: dom snapshot write failed", "path", path, "error", err)
		return ""
	}
	return path
}

// Dir returns the capture directory, "" when captures are disabled.
func (c *Capturer) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Capturer) fileName(classLabel, tag, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", classLabel, sanitizeTag(tag), c.newID(), ext)
}

var tagRe = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeTag reduces a context tag (usually a host name) to a
// filesystem-safe token.
func sanitizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = tagRe.ReplaceAllString(tag, "-")
	tag = strings.Trim(tag, "-")
	if tag == "" {
		return "page"
	}
	return tag
}
