package videotools

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-ego/gse"
	"github.com/rs/zerolog/log"
)

var (
	sharedSegmenter     *gse.Segmenter
	sharedSegmenterOnce sync.Once
)

// DefaultSegmenter 返回进程内共享的 gse 分词器，词典加载失败时返回 nil
func DefaultSegmenter() *gse.Segmenter {
	sharedSegmenterOnce.Do(func() {
		seg := new(gse.Segmenter)
		if err := seg.LoadDict(); err != nil {
			log.Warn().Err(err).Msg("failed to load gse dictionary, subtitle splitting falls back to characters")
			return
		}
		sharedSegmenter = seg
	})
	return sharedSegmenter
}

// SubtitleSplitter 字幕文本分割器，用于将文本按自然方式分割为字幕段落
type SubtitleSplitter struct {
	maxLength int            // 每段最大字符数（不含空格和标点）
	segmenter *gse.Segmenter // gse 分词器，nil 时按字符/单词分割
}

// NewSubtitleSplitter 创建字幕文本分割器实例
// maxLength <= 0 时根据文本语言自动选择
func NewSubtitleSplitter(maxLength int, segmenter *gse.Segmenter) *SubtitleSplitter {
	return &SubtitleSplitter{
		maxLength: maxLength,
		segmenter: segmenter,
	}
}

// SuggestMaxLength 按文本中 CJK 字符的比例给出每段长度上限
func SuggestMaxLength(text string) int {
	var han, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			han++
		}
	}
	if total > 0 && han*3 >= total {
		return 16
	}
	return 36
}

var (
	primaryEndings   = []rune{'。', '！', '？', '；', '…', '.', '!', '?', ';'}
	secondaryEndings = []rune{'，', '、', '：', ',', ':'}
)

// SplitTextNaturally 按句子自然分割文本，确保每句话尽量完整
func (ss *SubtitleSplitter) SplitTextNaturally(text string) []string {
	maxLength := ss.maxLength
	if maxLength <= 0 {
		maxLength = SuggestMaxLength(text)
	}

	text = strings.Join(strings.Fields(text), " ")
	var segments []string
	for _, sentence := range splitByEndings(text, primaryEndings) {
		if cleanLen(sentence) <= maxLength {
			segments = append(segments, sentence)
			continue
		}
		// 长句先按逗号分，仍然过长的再按词分
		for _, clause := range splitByEndings(sentence, secondaryEndings) {
			if cleanLen(clause) <= maxLength {
				segments = append(segments, clause)
			} else {
				segments = append(segments, ss.splitLongSentence(clause, maxLength)...)
			}
		}
	}

	return mergeShortSegments(segments)
}

// splitByEndings 按结束符分割，英文句点后必须跟空白才算句末
func splitByEndings(text string, endings []rune) []string {
	var (
		out     []string
		current strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if !containsRune(endings, r) {
			continue
		}
		if r < utf8.RuneSelf && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// splitLongSentence 按词边界分割过长的句子，避免词组被裁断
func (ss *SubtitleSplitter) splitLongSentence(sentence string, maxLength int) []string {
	var (
		segments []string
		current  string
	)
	flush := func() {
		if s := strings.TrimSpace(current); s != "" {
			segments = append(segments, s)
		}
		current = ""
	}

	for _, word := range ss.tokenize(sentence) {
		if cleanLen(word) == 0 {
			current += word
			continue
		}
		if cleanLen(current+word) <= maxLength {
			current += word
			continue
		}
		flush()
		current = word
		// 单个词过长，强制按字符分割
		if cleanLen(current) > maxLength {
			parts := splitByRunes(current, maxLength)
			segments = append(segments, parts[:len(parts)-1]...)
			current = parts[len(parts)-1]
		}
	}
	flush()
	return segments
}

var fallbackTokenPattern = regexp.MustCompile(`\p{Han}|[^\s\p{Han}]+\s*|\s+`)

// tokenize 分词，返回的片段拼接后等于原文
func (ss *SubtitleSplitter) tokenize(text string) []string {
	if ss.segmenter != nil {
		words := ss.segmenter.Cut(text, true)
		if strings.Join(words, "") == text {
			return words
		}
	}
	return fallbackTokenPattern.FindAllString(text, -1)
}

// splitByRunes 按字符强制分割文本
func splitByRunes(text string, maxLength int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > maxLength {
		out = append(out, string(runes[:maxLength]))
		runes = runes[maxLength:]
	}
	return append(out, string(runes))
}

// mergeShortSegments 单字符段落并入相邻段落
func mergeShortSegments(segments []string) []string {
	filtered := make([]string, 0, len(segments))
	var carry string
	for _, seg := range segments {
		seg = strings.TrimSpace(carry + seg)
		carry = ""
		if seg == "" {
			continue
		}
		if cleanLen(seg) <= 1 {
			if len(filtered) > 0 {
				filtered[len(filtered)-1] = joinSegments(filtered[len(filtered)-1], seg)
			} else {
				carry = seg + " "
			}
			continue
		}
		filtered = append(filtered, seg)
	}
	if carry != "" {
		filtered = append(filtered, strings.TrimSpace(carry))
	}
	return filtered
}

// joinSegments CJK 之间不加空格，其他语言用空格连接
func joinSegments(a, b string) string {
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if unicode.Is(unicode.Han, last) || unicode.Is(unicode.Han, first) || unicode.IsPunct(first) {
		return a + b
	}
	return a + " " + b
}

// containsRune 检查rune切片是否包含指定rune
func containsRune(slice []rune, r rune) bool {
	for _, v := range slice {
		if v == r {
			return true
		}
	}
	return false
}

// cleanSubtitleText 清理字幕文本，移除所有标点符号和空白
func cleanSubtitleText(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
}

func cleanLen(text string) int {
	return utf8.RuneCountInString(cleanSubtitleText(text))
}
