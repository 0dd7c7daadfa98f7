// Command capturepdf bundles a run's diagnostic PNG captures into a
// single PDF for handoff.
//
// Usage:
//
//	capturepdf -dir captures -out captures.pdf
//	capturepdf -dir captures -tag "Nova 12" -out nova12.pdf
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

func main() {
	dir := flag.String("dir", "captures", "capture directory to bundle")
	out := flag.String("out", "captures.pdf", "output PDF path")
	tag := flag.String("tag", "", "only captures whose file name contains this tag")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(logger, *dir, *out, *tag); err != nil {
		logger.Error("capturepdf: fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, dir, out, tag string) error {
	imgs, err := listCaptures(dir, tag)
	if err != nil {
		return err
	}
	if len(imgs) == 0 {
		return fmt.Errorf("no captures in %s", dir)
	}

	// nil import config: one page per image, image at natural size.
	if err := api.ImportImagesFile(imgs, out, nil, nil); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	logger.Info("captures bundled", "count", len(imgs), "out", out)
	return nil
}

var tagRe = regexp.MustCompile(`[^a-z0-9._-]+`)

// normalizeTag mirrors the capture writer's file naming, so a human tag
// like "Nova 12" matches files named error_nova-12_<id>.png.
func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = tagRe.ReplaceAllString(tag, "-")
	return strings.Trim(tag, "-")
}

// listCaptures returns the PNG captures in dir sorted by name, which
// groups files by failure class and context and orders each group by
// capture time thanks to the timestamped ids.
func listCaptures(dir, tag string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	needle := normalizeTag(tag)
	var imgs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		if needle != "" && !strings.Contains(e.Name(), needle) {
			continue
		}
		imgs = append(imgs, filepath.Join(dir, e.Name()))
	}
	sort.Strings(imgs)
	return imgs, nil
}
