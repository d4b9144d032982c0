package mcp

import (
	"fmt"
	"strings"
)

// FormatQueryResults formats ranked sources as markdown.
func FormatQueryResults(out QueryOutput) string {
	if len(out.Sources) == 0 {
		if len(out.Keywords) == 0 {
			return fmt.Sprintf("No results found for \"%s\": the query has no searchable keywords.", out.Query)
		}
		return fmt.Sprintf("No results found for \"%s\"", out.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Results for \"%s\"\n\n", out.Query)
	fmt.Fprintf(&sb, "Found %d source%s", len(out.Sources), plural(len(out.Sources)))
	if len(out.Keywords) > 0 {
		fmt.Fprintf(&sb, " (keywords: %s)", strings.Join(out.Keywords, ", "))
	}
	sb.WriteString("\n\n")

	for i, src := range out.Sources {
		formatSource(&sb, i+1, src)
	}
	return sb.String()
}

// formatSource formats a single ranked chunk.
func formatSource(sb *strings.Builder, num int, src SourceOutput) {
	fmt.Fprintf(sb, "### %d. %s, chunk %d (score: %.2f)\n",
		num,
		src.Filename,
		src.ChunkIndex,
		src.Score,
	)
	fmt.Fprintf(sb, "`%s` characters %d-%d\n\n", src.ChunkID, src.StartOffset, src.EndOffset)
	fmt.Fprintf(sb, "> %s\n\n", strings.ReplaceAll(src.ContentPreview, "\n", "\n> "))
}

// FormatDocumentList formats document summaries as a markdown list.
func FormatDocumentList(out ListOutput) string {
	if len(out.Documents) == 0 {
		return "No documents uploaded yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %d document%s\n\n", len(out.Documents), plural(len(out.Documents)))
	for _, d := range out.Documents {
		fmt.Fprintf(&sb, "- **%s** `%s` (%d chunk%s, uploaded %s)\n",
			d.Filename, d.ID, d.TotalChunks, plural(d.TotalChunks), d.UploadTime)
	}
	return sb.String()
}

// FormatDocument formats one document with its full text.
func FormatDocument(out DocumentOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", out.Filename)
	fmt.Fprintf(&sb, "- **ID:** `%s`\n", out.ID)
	fmt.Fprintf(&sb, "- **Uploaded:** %s\n", out.UploadTime)
	if out.ContentType != "" {
		fmt.Fprintf(&sb, "- **Type:** %s\n", out.ContentType)
	}
	fmt.Fprintf(&sb, "- **Chunks:** %d\n\n", out.TotalChunks)
	sb.WriteString(out.Content)
	sb.WriteString("\n")
	return sb.String()
}

// FormatStats formats the stats payload.
func FormatStats(out StatsOutput) string {
	var sb strings.Builder
	sb.WriteString("## Knowledge Base Status\n\n")
	fmt.Fprintf(&sb, "- **Status:** %s\n", out.SystemStatus)
	fmt.Fprintf(&sb, "- **Backend:** %s\n", out.StorageBackend)
	fmt.Fprintf(&sb, "- **Documents:** %d\n", out.TotalDocuments)
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", out.TotalChunks)
	fmt.Fprintf(&sb, "- **Indexed keywords:** %d\n", out.IndexedKeywords)

	q := out.Queries
	if q.Total > 0 {
		fmt.Fprintf(&sb, "\n### Queries\n\n- **Total:** %d (%d with no results)\n- **Avg latency:** %.2f ms\n",
			q.Total, q.ZeroResult, q.AvgLatencyMs)
		if len(q.TopTerms) > 0 {
			terms := make([]string, 0, len(q.TopTerms))
			for _, tc := range q.TopTerms {
				terms = append(terms, fmt.Sprintf("%s (%d)", tc.Term, tc.Count))
			}
			fmt.Fprintf(&sb, "- **Top terms:** %s\n", strings.Join(terms, ", "))
		}
	}
	return sb.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
