package moderation

import (
	"bufio"
	"embed"
	"strings"

	"github.com/samber/lo"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// LoadEmbedded reads the bundled censored word lists, one word per line,
// lines starting with '#' ignored. Returns the deduplicated words and the
// language file names that contributed them.
func LoadEmbedded() ([]string, []string, error) {
	entries, err := censoredFolder.ReadDir("censored")
	if err != nil {
		return nil, nil, err
	}

	var words []string
	var languages []string
	for _, entry := range entries {
		f, err := censoredFolder.Open("censored/" + entry.Name())
		if err != nil {
			return nil, nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			words = append(words, line)
		}
		if err := scanner.Err(); err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		_ = f.Close()
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))
	}

	return lo.Uniq(words), languages, nil
}
