package rules

import (
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/bankrules/internal/model"
)

const fallbackMatchLength = 20

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "to": {}, "from": {}, "for": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "by": {},
}

// SuggestFromTransaction proposes a Contains rule on the description using
// its first distinctive word. A word is distinctive when it is not a stopword
// and is longer than three characters. Without one, the first 20 characters
// of the description are used. The draft is advisory and never saved.
func SuggestFromTransaction(txn model.BankTransaction) model.RuleDraft {
	match := distinctiveWord(txn.Description)
	if match == "" {
		match = truncateRunes(txn.Description, fallbackMatchLength)
	}

	return model.RuleDraft{
		RuleName:          "Rule for " + match,
		MatchType:         model.MatchContains,
		MatchField:        model.MatchFieldDescription,
		MatchValue:        match,
		TransactionType:   txn.Type(),
		SampleAmount:      txn.Amount(),
		SampleDescription: txn.Description,
	}
}

func distinctiveWord(description string) string {
	for _, word := range strings.Fields(description) {
		if _, common := stopwords[strings.ToLower(word)]; common {
			continue
		}
		if utf8.RuneCountInString(word) > 3 {
			return word
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
