package videotools

import (
	"regexp"
	"strings"
)

var (
	ttsBracketPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\([^)]*\)`),
		regexp.MustCompile(`\[[^\]]*\]`),
		regexp.MustCompile(`\{[^}]*\}`),
		regexp.MustCompile(`（[^）]*）`),
		regexp.MustCompile(`【[^】]*】`),
	}
	ttsSpacePattern = regexp.MustCompile(`[ \t]+`)
)

// CleanTextForTTS 清理文本用于TTS生成，移除括号内的内容、markdown 符号和&符号
func CleanTextForTTS(text string) string {
	for _, p := range ttsBracketPatterns {
		text = p.ReplaceAllString(text, "")
	}
	text = strings.NewReplacer("&", "", "*", "", "#", "", "_", " ").Replace(text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(ttsSpacePattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
