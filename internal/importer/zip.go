package importer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/tome/internal/models"
)

// maxEntryBytes caps the decompressed size read from one archive entry.
const maxEntryBytes = 10 << 20

// ZIP parses every non-directory *.md entry independently. Entries that fail
// to read or parse are logged and skipped.
func (im *Importer) ZIP(data []byte) ([]models.Candidate, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, invalidf("failed to process ZIP file: %v", err)
	}

	var out []models.Candidate
	matched := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".md") {
			continue
		}
		matched++
		content, err := readEntry(f)
		if err != nil {
			im.logger.Warn("import: skipping ZIP entry: read failed",
				slog.String("entry", f.Name),
				slog.String("error", err.Error()))
			continue
		}
		c, err := Markdown(f.Name, content)
		if err != nil {
			im.logger.Warn("import: skipping ZIP entry: parse failed",
				slog.String("entry", f.Name),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, c)
	}

	switch {
	case matched == 0:
		return nil, invalidf("no Markdown files found in the ZIP archive")
	case len(out) == 0:
		return nil, invalidf("ZIP contained %d Markdown file(s), but none could be parsed", matched)
	}
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxEntryBytes)
	}
	return data, nil
}
