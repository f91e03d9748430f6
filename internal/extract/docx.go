package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// A .docx is a zip; the body usually lives at word/document.xml, but the
// authoritative location is the Override entry in [Content_Types].xml.
const (
	defaultDocxBodyPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxBodyContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// textRunRe captures the inner text of every <w:t> run, whatever attributes
// the tag carries (xml:space="preserve" and friends).
var textRunRe = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// The Override element lists PartName and ContentType in either order.
var (
	bodyPartNameFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxBodyContentType) + `"`)
	bodyPartNameLast  = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxBodyContentType) + `"[^>]+PartName="([^"]+)"`)
)

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// docxBodyPath resolves the main document part from [Content_Types].xml.
// Returns "" when the package carries no usable override.
func docxBodyPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return ""
		}
		for _, re := range []*regexp.Regexp{bodyPartNameFirst, bodyPartNameLast} {
			if m := re.FindSubmatch(data); len(m) > 1 {
				return strings.TrimPrefix(string(m[1]), "/")
			}
		}
		return ""
	}
	return ""
}

// extractDOCX pulls the text runs out of a .docx body and joins them with
// single spaces. Matching <w:t> runs instead of whole paragraphs keeps
// documents readable here even when every <w:p> carries revision attributes;
// lu4p/cat trips over exactly those, which is why it stays unused.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	bodyPath := docxBodyPath(zr)
	if bodyPath == "" {
		bodyPath = defaultDocxBodyPath
	}

	var bodyXML []byte
	for _, f := range zr.File {
		if f.Name != bodyPath {
			continue
		}
		bodyXML, err = readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if bodyXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", bodyPath)
	}

	runs := textRunRe.FindAllSubmatch(bodyXML, -1)
	if len(runs) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, run := range runs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.Write(bytes.TrimSpace(run[1]))
	}
	return strings.TrimSpace(b.String()), nil
}
