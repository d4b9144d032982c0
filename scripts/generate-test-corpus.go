//go:build ignore

// Package main generates a synthetic document corpus for load testing.
// Usage: go run scripts/generate-test-corpus.go -files 500 -output testdata/corpus
//
// Then: minirag add testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	minParas  = flag.Int("min-paragraphs", 3, "Minimum paragraphs per document")
	maxParas  = flag.Int("max-paragraphs", 12, "Maximum paragraphs per document")
)

var markdownTemplate = `# %s %s

_Owner: %s team. Status: %s._

%s

## Follow-up

- Review the %s figures with %s
- Share the %s summary before the next %s
`

var (
	topics = []string{
		"budget", "hiring", "roadmap", "incident", "migration",
		"onboarding", "security", "pricing", "inventory", "garden",
		"warehouse", "support", "release", "compliance", "training",
	}
	nouns = []string{
		"review", "plan", "report", "forecast", "retrospective",
		"schedule", "audit", "proposal", "checklist", "summary",
	}
	teams = []string{
		"finance", "platform", "marketing", "operations", "legal",
		"design", "research", "sales", "facilities", "data",
	}
	statuses = []string{"draft", "approved", "in review", "archived"}
	meetings = []string{"board meeting", "standup", "quarterly sync", "all hands"}
	phrases  = []string{
		"The %s %s was discussed in detail by the %s team.",
		"Most of the %s questions are still open, and the %s owner will follow up.",
		"Spending on %s rose compared to the previous %s.",
		"The %s dashboard now tracks the %s metrics every week.",
		"Several %s risks were raised during the %s.",
		"We agreed to revisit the %s numbers once the %s is published.",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	generated := 0
	var totalBytes int
	for i := 0; i < *numFiles; i++ {
		n, err := generateDocument(rng, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating document %d: %v\n", i, err)
			continue
		}
		generated++
		totalBytes += n
	}

	fmt.Printf("Generated %d documents (%d bytes).\n", generated, totalBytes)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func paragraph(rng *rand.Rand) string {
	sentences := 3 + rng.Intn(5)
	parts := make([]string, 0, sentences)
	for i := 0; i < sentences; i++ {
		parts = append(parts, fmt.Sprintf(pick(rng, phrases), pick(rng, topics), pick(rng, nouns), pick(rng, teams)))
	}
	return strings.Join(parts, " ")
}

// generateDocument writes one document, alternating Markdown and plain
// text, and returns its size.
func generateDocument(rng *rand.Rand, index int) (int, error) {
	topic := pick(rng, topics)
	noun := pick(rng, nouns)

	paras := *minParas
	if *maxParas > *minParas {
		paras += rng.Intn(*maxParas - *minParas + 1)
	}
	body := make([]string, paras)
	for i := range body {
		body[i] = paragraph(rng)
	}
	text := strings.Join(body, "\n\n")

	var content, name string
	if index%2 == 0 {
		content = fmt.Sprintf(markdownTemplate,
			strings.ToUpper(topic[:1])+topic[1:], noun,
			pick(rng, teams), pick(rng, statuses),
			text,
			topic, pick(rng, teams),
			noun, pick(rng, meetings),
		)
		name = fmt.Sprintf("%s_%s_%d.md", topic, noun, index)
	} else {
		content = text + "\n"
		name = fmt.Sprintf("%s_%s_%d.txt", topic, noun, index)
	}

	return len(content), os.WriteFile(filepath.Join(*outputDir, name), []byte(content), 0o644)
}
