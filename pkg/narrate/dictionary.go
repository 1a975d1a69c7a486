package narrate

import (
	"regexp"
	"strings"

	"github.com/morioka22/ncb-tts-r2/pkg/configstore"
)

// ApplyDictionary runs ordered substitution rules over text, each rule's
// output feeding the next. A regex rule that fails to compile is skipped and
// reported through onSkip; it never aborts the remaining rules. Empty
// patterns are no-ops.
func ApplyDictionary(rules []configstore.DictionaryRule, text string, onSkip func(rule configstore.DictionaryRule, err error)) string {
	for _, rule := range rules {
		if rule.Pattern == "" {
			continue
		}
		if !rule.IsRegex {
			text = strings.ReplaceAll(text, rule.Pattern, rule.Replacement)
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			if onSkip != nil {
				onSkip(rule, err)
			}
			continue
		}
		text = re.ReplaceAllLiteralString(text, rule.Replacement)
	}
	return text
}
