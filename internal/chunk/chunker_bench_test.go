package chunk

import (
	"strings"
	"testing"
)

func BenchmarkChunker_Chunk(b *testing.B) {
	c, err := New(1000, 200)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("Quarterly budget review notes for the finance team. ", 2000)

	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Chunk("doc", text)
	}
}
