package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/minirag/internal/config"
	raerrors "github.com/Aman-CERP/minirag/internal/errors"
	"github.com/Aman-CERP/minirag/internal/store"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:       1024,
		AllowedExtensions: []string{"pdf", "txt", "docx", ".MD"},
	}
}

func newTestIngester(t *testing.T) (*Ingester, *store.DocumentStore) {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{
		DataDir:      t.TempDir(),
		ChunkSize:    50,
		ChunkOverlap: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s, testUploadConfig(), WithWorkers(3)), s
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body bytes.Buffer
	for _, p := range paragraphs {
		fmt.Fprintf(&body, `<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, p)
	}
	xmlDoc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(xmlDoc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestValidator_CheckFile(t *testing.T) {
	v := NewValidator(testUploadConfig())

	tests := []struct {
		name     string
		filename string
		size     int64
		code     string
	}{
		{"txt ok", "notes.txt", 10, ""},
		{"uppercase ext ok", "REPORT.PDF", 10, ""},
		{"md ok via dotted config", "readme.md", 10, ""},
		{"at limit ok", "a.txt", 1024, ""},
		{"unsupported", "image.png", 10, raerrors.ErrCodeUnsupportedType},
		{"no extension", "Makefile", 10, raerrors.ErrCodeUnsupportedType},
		{"too large", "big.txt", 1025, raerrors.ErrCodeFileTooLarge},
		{"blank name", "  ", 1, raerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.CheckFile(tt.filename, tt.size)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, raerrors.IsValidation(err))
			assert.Equal(t, tt.code, raerrors.GetCode(err))
		})
	}
}

func TestValidator_CheckContent(t *testing.T) {
	v := NewValidator(testUploadConfig())

	assert.NoError(t, v.CheckContent("a.txt", "hello"))
	err := v.CheckContent("a.txt", " \n\t ")
	assert.Equal(t, raerrors.ErrCodeEmptyContent, raerrors.GetCode(err))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		data        []byte
		want        string
		contentType string
	}{
		{"txt crlf", "a.txt", []byte("line one\r\nline two\r"), "line one\nline two\n", ContentTypeText},
		{"md bom", "a.md", []byte("\ufeff# Title\n"), "# Title\n", ContentTypeMarkdown},
		{"txt invalid utf8", "a.txt", []byte("ab\xffcd\xfe\xfeef"), "ab\ufffdcd\ufffdef", ContentTypeText},
		{"docx", "a.docx", buildDOCX(t, "First paragraph", "Second paragraph"), "First paragraph\nSecond paragraph", ContentTypeDOCX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ct, err := Extract(tt.filename, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, tt.contentType, ct)
		})
	}
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		code     string
	}{
		{"broken pdf", "a.pdf", []byte("not a pdf"), raerrors.ErrCodeExtractionFailed},
		{"broken docx", "a.docx", []byte("not a zip"), raerrors.ErrCodeExtractionFailed},
		{"unknown type", "a.png", []byte("x"), raerrors.ErrCodeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Extract(tt.filename, tt.data)
			require.Error(t, err)
			assert.Equal(t, tt.code, raerrors.GetCode(err))
		})
	}
}

func TestIngester_Upload(t *testing.T) {
	// Given: an ingester over an empty store
	ing, s := newTestIngester(t)

	// When: a text file is uploaded
	res, err := ing.Upload(context.Background(), "fox.txt", []byte("The quick brown fox jumps over the lazy dog. Twice: the quick brown fox."))

	// Then: the result reports the stored document
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "fox.txt", res.Filename)
	assert.Equal(t, 2, res.ChunksCreated)
	assert.Contains(t, res.Message, "2 chunks")

	doc, err := s.Get(res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeText, doc.Metadata.ContentType)
	assert.Equal(t, 2, doc.Metadata.TotalChunks)
}

func TestIngester_UploadRejectsEmpty(t *testing.T) {
	ing, s := newTestIngester(t)

	_, err := ing.Upload(context.Background(), "empty.txt", []byte("   \n"))

	assert.Equal(t, raerrors.ErrCodeEmptyContent, raerrors.GetCode(err))
	docs, _, _ := s.Counts()
	assert.Equal(t, 0, docs)
}

func TestIngester_UploadText(t *testing.T) {
	ing, s := newTestIngester(t)

	res, err := ing.UploadText(context.Background(), "notes.md", "# Notes\r\nhello")

	require.NoError(t, err)
	doc, err := s.Get(res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\nhello", doc.RawText)
	assert.Equal(t, ContentTypeMarkdown, doc.Metadata.ContentType)
}

func TestIngester_UploadFile(t *testing.T) {
	ing, s := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "report.docx", buildDOCX(t, "Quarterly numbers", "Revenue grew"))

	res, err := ing.UploadFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "report.docx", res.Filename)
	assert.Equal(t, path, res.Path)
	doc, err := s.Get(res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Metadata.Source)
	assert.Equal(t, "Quarterly numbers\nRevenue grew", doc.RawText)
}

func TestIngester_UploadFileMissing(t *testing.T) {
	ing, _ := newTestIngester(t)

	_, err := ing.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))

	assert.True(t, raerrors.IsNotFound(err))
	assert.Equal(t, raerrors.ErrCodeFileNotFound, raerrors.GetCode(err))
}

func TestIngester_UploadMany(t *testing.T) {
	// Given: a mix of good and bad files
	ing, s := newTestIngester(t)
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 6; i++ {
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("doc%d.txt", i), []byte(fmt.Sprintf("document number %d body", i))))
	}
	paths = append(paths,
		writeFile(t, dir, "image.png", []byte("png")),
		writeFile(t, dir, "huge.txt", bytes.Repeat([]byte("a"), 2048)),
		writeFile(t, dir, "blank.md", []byte("  ")),
	)

	// When: uploaded together, tracking progress
	var seen []int
	results := ing.UploadMany(context.Background(), paths, func(done, total int, _ Result) {
		assert.Equal(t, len(paths), total)
		seen = append(seen, done)
	})

	// Then: results are per file and in order
	require.Len(t, results, len(paths))
	assert.Equal(t, 6, Succeeded(results))
	for i := 0; i < 6; i++ {
		assert.Empty(t, results[i].Error)
		assert.Equal(t, paths[i], results[i].Path)
	}
	assert.Equal(t, raerrors.ErrCodeUnsupportedType, raerrors.GetCode(results[6].Err))
	assert.Equal(t, raerrors.ErrCodeFileTooLarge, raerrors.GetCode(results[7].Err))
	assert.Equal(t, raerrors.ErrCodeEmptyContent, raerrors.GetCode(results[8].Err))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, seen, "one call per file, counting up")

	docs, _, _ := s.Counts()
	assert.Equal(t, 6, docs)
	assert.True(t, s.CheckConsistency().Consistent())
}

func TestIngester_UploadManyCancelled(t *testing.T) {
	ing, s := newTestIngester(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", []byte("hello world"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ing.UploadMany(ctx, []string{path}, nil)

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	docs, _, _ := s.Counts()
	assert.Equal(t, 0, docs)
}
