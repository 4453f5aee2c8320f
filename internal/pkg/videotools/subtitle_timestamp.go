package videotools

import "strings"

// SegmentTimestamp 段落时间戳
type SegmentTimestamp struct {
	Text      string  `json:"text"`       // 段落文本
	StartTime float64 `json:"start_time"` // 开始时间（秒）
	EndTime   float64 `json:"end_time"`   // 结束时间（秒）
}

// charStamp 字符级时间戳
type charStamp struct {
	r     rune
	start float64
	end   float64
}

// SubtitleTimestampCalculator 字幕时间戳计算器
type SubtitleTimestampCalculator struct{}

// NewSubtitleTimestampCalculator 创建字幕时间戳计算器实例
func NewSubtitleTimestampCalculator() *SubtitleTimestampCalculator {
	return &SubtitleTimestampCalculator{}
}

// Calculate 为分割后的段落计算时间戳，保证递增且不重叠
// 段落在词级时间戳里找不到时（例如 TTS 把数字读成单词），按段落在全文中的位置比例估算
func (stc *SubtitleTimestampCalculator) Calculate(segments []string, marks []WordMark, totalDuration float64) []SegmentTimestamp {
	if len(segments) == 0 {
		return nil
	}

	stream := expandMarks(marks)
	if totalDuration <= 0 && len(stream) > 0 {
		totalDuration = stream[len(stream)-1].end
	}

	totalLen := 0
	for _, seg := range segments {
		totalLen += len([]rune(cleanSubtitleText(seg)))
	}

	out := make([]SegmentTimestamp, 0, len(segments))
	cursor, cum := 0, 0
	for _, seg := range segments {
		clean := []rune(cleanSubtitleText(seg))
		ts := SegmentTimestamp{Text: seg}

		if idx := findRunes(stream, clean, cursor); idx >= 0 {
			ts.StartTime = stream[idx].start
			ts.EndTime = stream[idx+len(clean)-1].end
			cursor = idx + len(clean)
		} else if totalLen > 0 {
			ts.StartTime = totalDuration * float64(cum) / float64(totalLen)
			ts.EndTime = totalDuration * float64(cum+len(clean)) / float64(totalLen)
		}
		cum += len(clean)
		out = append(out, ts)
	}

	return fixOverlaps(out)
}

// expandMarks 将词级时间戳均分到字符
func expandMarks(marks []WordMark) []charStamp {
	var stream []charStamp
	for _, m := range marks {
		runes := []rune(cleanSubtitleText(m.Text))
		if len(runes) == 0 {
			continue
		}
		step := (m.End - m.Start) / float64(len(runes))
		for i, r := range runes {
			stream = append(stream, charStamp{
				r:     r,
				start: m.Start + float64(i)*step,
				end:   m.Start + float64(i+1)*step,
			})
		}
	}
	return stream
}

// findRunes 从 from 开始查找 target 在字符流中的位置
func findRunes(stream []charStamp, target []rune, from int) int {
	if len(target) == 0 {
		return -1
	}
	for i := from; i+len(target) <= len(stream); i++ {
		match := true
		for j, r := range target {
			if stream[i+j].r != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// fixOverlaps 修正重叠和零时长的段落
func fixOverlaps(segments []SegmentTimestamp) []SegmentTimestamp {
	const minDuration = 0.2
	for i := range segments {
		if i > 0 && segments[i].StartTime < segments[i-1].EndTime {
			d := segments[i].EndTime - segments[i].StartTime
			segments[i].StartTime = segments[i-1].EndTime
			if d < minDuration {
				d = minDuration
			}
			segments[i].EndTime = segments[i].StartTime + d
		}
		if segments[i].EndTime <= segments[i].StartTime {
			segments[i].EndTime = segments[i].StartTime + minDuration
		}
	}
	return segments
}

// EstimateMarks 没有词级时间戳的服务商按字符数把时长分配到每个词
func EstimateMarks(text string, duration float64) []WordMark {
	if duration <= 0 {
		return nil
	}
	var words []string
	total := 0
	for _, tok := range fallbackTokenPattern.FindAllString(text, -1) {
		if n := cleanLen(tok); n > 0 {
			words = append(words, tok)
			total += n
		}
	}
	if total == 0 {
		return nil
	}

	marks := make([]WordMark, 0, len(words))
	t := 0.0
	for _, w := range words {
		d := duration * float64(cleanLen(w)) / float64(total)
		marks = append(marks, WordMark{Text: strings.TrimSpace(w), Start: t, End: t + d})
		t += d
	}
	return marks
}
