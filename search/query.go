package search

import (
	"strconv"
	"strings"
)

// Query holds the structured parameters of a message search.
// It decouples the raw user input from the index engine requirements.
type Query struct {
	RawInput string // the original input string
	Terms    string // the text to match against message bodies
	GroupID  string // restrict hits to one group
	SenderID string // restrict hits to one sender
	Limit    int
}

// ParseQuery extracts command-line style arguments from a raw string.
// Example: invoice --group 7f3a... --from alice --limit 5
func ParseQuery(input string) *Query {
	query := &Query{
		RawInput: input,
		Limit:    10, // default
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "group":
				query.GroupID = val
			case "from":
				query.SenderID = val
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = limit
				}
			}
			i++ // skip the value part
			continue
		}

		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
