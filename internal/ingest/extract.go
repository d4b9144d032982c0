package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

// Content types recorded in document metadata.
const (
	ContentTypeText     = "text/plain"
	ContentTypeMarkdown = "text/markdown"
	ContentTypePDF      = "application/pdf"
	ContentTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
	ContentType() string
}

var extractors = map[string]Extractor{
	"txt":  plainExtractor{contentType: ContentTypeText},
	"md":   plainExtractor{contentType: ContentTypeMarkdown},
	"pdf":  pdfExtractor{},
	"docx": docxExtractor{},
}

// ExtractorFor returns the extractor registered for ext.
func ExtractorFor(ext string) (Extractor, bool) {
	e, ok := extractors[normalizeExt(ext)]
	return e, ok
}

// Extract converts data to plain text based on the filename extension.
func Extract(filename string, data []byte) (string, string, error) {
	ext := Extension(filename)
	e, ok := ExtractorFor(ext)
	if !ok {
		return "", "", raerrors.New(raerrors.ErrCodeUnsupportedType,
			fmt.Sprintf("no extractor for %q", ext), nil)
	}
	text, err := e.Extract(data)
	if err != nil {
		return "", "", raerrors.New(raerrors.ErrCodeExtractionFailed,
			"failed to extract text", err).WithDetail("filename", filename)
	}
	return normalizeText(text), e.ContentType(), nil
}

// normalizeText replaces invalid UTF-8 with U+FFFD, unifies line endings
// and strips a UTF-8 BOM.
func normalizeText(s string) string {
	s = strings.ToValidUTF8(s, "\ufffd")
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

type plainExtractor struct {
	contentType string
}

func (p plainExtractor) Extract(data []byte) (string, error) {
	return string(data), nil
}

func (p plainExtractor) ContentType() string { return p.contentType }

type pdfExtractor struct{}

func (pdfExtractor) Extract(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func (pdfExtractor) ContentType() string { return ContentTypePDF }

type docxExtractor struct{}

// documentXML is the subset of word/document.xml that carries text.
type documentXML struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []struct {
					Content string `xml:",chardata"`
				} `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func (docxExtractor) Extract(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		var b strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				b.WriteString("\n")
			}
			for _, run := range para.Runs {
				for _, t := range run.Text {
					b.WriteString(t.Content)
				}
			}
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("word/document.xml not found")
}

func (docxExtractor) ContentType() string { return ContentTypeDOCX }
