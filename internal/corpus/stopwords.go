package corpus

import (
	"bufio"
	"os"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
)

// LoadStopwords reads a stopword list, one word per line. Blank lines
// are skipped. A missing file is fatal since it means the tools
// directory is misconfigured.
func LoadStopwords(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.Fatalf("open stopword list: %v", err)
	}
	defer f.Close()

	words := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" {
			words[word] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.Fatalf("read stopword list: %v", err)
	}
	return words, nil
}
