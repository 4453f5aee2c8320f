package videotools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ScriptSystemPrompt 文案生成的系统提示词
const ScriptSystemPrompt = `You are a professional short video copywriter.
Write a narration script for a short video about the given subject.
Rules:
- Return only the narration text, no title, no markdown, no scene directions.
- Do not mention this prompt, do not start with "welcome" or similar openings.
- Do not use labels such as "Narrator:" or "Voiceover:".
- Separate paragraphs with a blank line.`

// TermsSystemPrompt 关键词生成的系统提示词
const TermsSystemPrompt = `You are a stock footage search assistant.
Generate search terms for finding stock videos that match a short video narration.
Rules:
- Return a JSON array of strings and nothing else, e.g. ["sunset beach", "city traffic"].
- Each term is 1 to 3 English words describing concrete visual content.
- Terms must be in English regardless of the script language.`

// BuildScriptPrompt 构建文案生成的用户提示词
func BuildScriptPrompt(subject, language string, paragraphs int) string {
	if paragraphs <= 0 {
		paragraphs = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Video subject: %s\n", strings.TrimSpace(subject))
	fmt.Fprintf(&b, "Number of paragraphs: %d\n", paragraphs)
	if language != "" {
		fmt.Fprintf(&b, "Write the script in this language: %s\n", language)
	} else {
		b.WriteString("Write the script in the same language as the subject.\n")
	}
	return b.String()
}

// BuildTermsPrompt 构建关键词生成的用户提示词
func BuildTermsPrompt(subject, script string, amount int) string {
	if amount <= 0 {
		amount = 5
	}
	return fmt.Sprintf("Video subject: %s\nNumber of terms: %d\nScript:\n%s\n",
		strings.TrimSpace(subject), amount, strings.TrimSpace(script))
}

var (
	codeFencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	jsonArrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	roleLabelPattern  = regexp.MustCompile(`(?im)^\s*(narrator|voiceover|voice over|script|旁白|解说)\s*[:：]\s*`)
	markdownPattern   = regexp.MustCompile(`(?m)^\s*(#{1,6}\s+|[-*]\s+|>\s+)`)
	emphasisPattern   = regexp.MustCompile(`\*{1,2}([^*]+)\*{1,2}`)
	bracketDirPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	termSplitPattern  = regexp.MustCompile(`[,，\n;；]+`)
	listMarkerPattern = regexp.MustCompile(`^\s*(\d+[.)]|[-*•])\s+`)
	termTrimChars     = " \t\r\"'`“”‘’."
)

// ParseTerms 解析模型返回的关键词
// 优先按 JSON 数组解析，否则按逗号或换行分割；结果去重并截断到 amount
func ParseTerms(raw string, amount int) []string {
	text := strings.TrimSpace(raw)
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var items []string
	if m := jsonArrayPattern.FindString(text); m != "" {
		var arr []string
		if err := json.Unmarshal([]byte(m), &arr); err == nil {
			items = arr
		}
	}
	if items == nil {
		items = termSplitPattern.Split(text, -1)
	}

	seen := make(map[string]struct{}, len(items))
	terms := make([]string, 0, len(items))
	for _, item := range items {
		term := listMarkerPattern.ReplaceAllString(item, "")
		term = strings.Trim(strings.TrimSpace(term), termTrimChars)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
		if amount > 0 && len(terms) == amount {
			break
		}
	}
	return terms
}

// CleanScript 清理模型返回的文案：去掉代码块、markdown 标记、角色标签和舞台说明
func CleanScript(raw string) string {
	text := strings.TrimSpace(raw)
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = roleLabelPattern.ReplaceAllString(text, "")
	text = markdownPattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "$1")
	text = bracketDirPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
