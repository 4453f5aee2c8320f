package videotools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reelforge/internal/model/video"
)

func TestParseTerms(t *testing.T) {
	Convey("ParseTerms 兼容多种模型输出", t, func() {
		Convey("JSON 数组并去重", func() {
			So(ParseTerms(`["sunset beach", "City", "city"]`, 5), ShouldResemble, []string{"sunset beach", "City"})
		})

		Convey("代码块包裹的 JSON", func() {
			So(ParseTerms("```json\n[\"ocean waves\"]\n```", 5), ShouldResemble, []string{"ocean waves"})
		})

		Convey("编号列表", func() {
			raw := "1. sunset beach\n2. city traffic\n3. Top 10"
			So(ParseTerms(raw, 5), ShouldResemble, []string{"sunset beach", "city traffic", "Top 10"})
		})

		Convey("逗号分隔并截断", func() {
			So(ParseTerms("cat, dog, bird, fish", 2), ShouldResemble, []string{"cat", "dog"})
		})

		Convey("空输出", func() {
			So(ParseTerms("  ", 5), ShouldBeEmpty)
		})
	})
}

func TestCleanScript(t *testing.T) {
	Convey("CleanScript 去掉模型输出中的格式噪声", t, func() {
		raw := "```\nNarrator: Hello **world**.\n\n\n\n[music] Bye\n```"
		So(CleanScript(raw), ShouldEqual, "Hello world.\n\nBye")
	})
}

func TestCleanTextForTTS(t *testing.T) {
	Convey("CleanTextForTTS 移除舞台说明", t, func() {
		So(CleanTextForTTS("Hello (laughs) world & [sfx] you"), ShouldEqual, "Hello world you")
		So(CleanTextForTTS("第一段（旁白）\n\n第二段"), ShouldEqual, "第一段\n第二段")
	})
}

func TestBuildPrompts(t *testing.T) {
	Convey("提示词包含主题和数量", t, func() {
		p := BuildScriptPrompt(" cats ", "zh-CN", 2)
		So(p, ShouldContainSubstring, "Video subject: cats\n")
		So(p, ShouldContainSubstring, "Number of paragraphs: 2")
		So(p, ShouldContainSubstring, "zh-CN")

		So(BuildScriptPrompt("cats", "", 0), ShouldContainSubstring, "same language as the subject")
		So(BuildTermsPrompt("cats", "Cats purr.", 0), ShouldContainSubstring, "Number of terms: 5")
	})
}

func TestSubtitleSplitter(t *testing.T) {
	Convey("SubtitleSplitter 分段不丢内容且不超长", t, func() {
		check := func(text string, maxLength int) []string {
			segs := NewSubtitleSplitter(maxLength, nil).SplitTextNaturally(text)
			joined := ""
			for _, s := range segs {
				So(cleanLen(s), ShouldBeLessThanOrEqualTo, maxLength)
				joined += s
			}
			So(cleanSubtitleText(joined), ShouldEqual, cleanSubtitleText(text))
			return segs
		}

		Convey("英文长句按逗号和单词分割", func() {
			segs := check("Cats purr when they are happy. They also purr when stressed, hurt, or giving birth to kittens in a quiet place.", 30)
			So(segs[0], ShouldEqual, "Cats purr when they are happy.")
			So(len(segs), ShouldBeGreaterThan, 3)
		})

		Convey("中文按句号和逗号分割", func() {
			segs := check("今天天气很好。我们去公园散步，看看花草树木，呼吸新鲜空气。", 8)
			So(segs[0], ShouldEqual, "今天天气很好。")
		})

		Convey("小数点不算句末", func() {
			segs := check("Pi is 3.14 roughly.", 30)
			So(segs, ShouldResemble, []string{"Pi is 3.14 roughly."})
		})

		Convey("自动选择长度上限", func() {
			So(SuggestMaxLength("今天天气很好"), ShouldEqual, 16)
			So(SuggestMaxLength("hello world"), ShouldEqual, 36)
		})
	})
}

func TestSubtitleTimestampCalculator(t *testing.T) {
	Convey("字幕时间戳对齐词级时间戳", t, func() {
		calc := NewSubtitleTimestampCalculator()

		Convey("能匹配的段落使用配音时间", func() {
			marks := []WordMark{
				{Text: "Hello", Start: 0, End: 0.5},
				{Text: "world", Start: 0.5, End: 1.0},
				{Text: "foo", Start: 1.0, End: 1.5},
				{Text: "bar", Start: 1.5, End: 2.0},
			}
			ts := calc.Calculate([]string{"Hello world.", "Foo bar."}, marks, 0)
			So(ts, ShouldHaveLength, 2)
			So(ts[0].StartTime, ShouldAlmostEqual, 0)
			So(ts[0].EndTime, ShouldAlmostEqual, 1.0)
			So(ts[1].StartTime, ShouldAlmostEqual, 1.0)
			So(ts[1].EndTime, ShouldAlmostEqual, 2.0)
		})

		Convey("没有时间戳时按长度比例估算", func() {
			ts := calc.Calculate([]string{"ab", "cdef"}, nil, 9)
			So(ts[0].StartTime, ShouldAlmostEqual, 0)
			So(ts[0].EndTime, ShouldAlmostEqual, 3)
			So(ts[1].StartTime, ShouldAlmostEqual, 3)
			So(ts[1].EndTime, ShouldAlmostEqual, 9)
		})

		Convey("结果递增且不重叠", func() {
			marks := []WordMark{{Text: "one", Start: 0, End: 1}, {Text: "two", Start: 0.5, End: 0.6}}
			ts := calc.Calculate([]string{"one", "two"}, marks, 0)
			So(ts[1].StartTime, ShouldBeGreaterThanOrEqualTo, ts[0].EndTime)
			So(ts[1].EndTime, ShouldBeGreaterThan, ts[1].StartTime)
		})

		Convey("空输入", func() {
			So(calc.Calculate(nil, nil, 3), ShouldBeNil)
		})
	})
}

func TestASSGenerator(t *testing.T) {
	Convey("ASS 字幕生成", t, func() {
		So(ASSColor("#FF8800"), ShouldEqual, "&H000088FF")
		So(ASSColor("bad"), ShouldEqual, "&H00FFFFFF")
		So(FormatASSTime(3661.25), ShouldEqual, "1:01:01.25")
		So(FormatASSTime(-1), ShouldEqual, "0:00:00.00")
		So(FontFamily("fonts/MicrosoftYaHeiBold.ttc"), ShouldEqual, "MicrosoftYaHeiBold")

		p := video.Defaults()
		p.FontName = "STHeitiMedium.ttc"
		style := StyleFromParams(p)
		segs := []SegmentTimestamp{{Text: "hello {x}", StartTime: 0, EndTime: 1.5}}

		Convey("底部对齐", func() {
			out := NewASSGenerator().Generate(segs, style)
			So(out, ShouldContainSubstring, "PlayResX: 1080")
			So(out, ShouldContainSubstring, "Style: Default,STHeitiMedium,60,&H00FFFFFF,&H000000FF,&H00000000")
			So(out, ShouldContainSubstring, "Dialogue: 0,0:00:00.00,0:00:01.50,Default,,0,0,0,,hello x")
		})

		Convey("自定义位置使用 pos 标签", func() {
			style.Position = video.SubtitleCustom
			style.CustomPosition = 50
			out := NewASSGenerator().Generate(segs, style)
			So(out, ShouldContainSubstring, `{\an5\pos(540,960)}hello x`)
		})
	})
}

func TestFailure(t *testing.T) {
	Convey("失败类型在适配器边界确定", t, func() {
		So(FromHTTPStatus("pexels", 429, "").Kind, ShouldEqual, FailureRateLimited)
		So(FromHTTPStatus("pexels", 401, "").Kind, ShouldEqual, FailureAuth)
		So(FromHTTPStatus("pexels", 404, "").Kind, ShouldEqual, FailureNotFound)
		So(FromHTTPStatus("pexels", 503, "").Kind, ShouldEqual, FailureTransientIO)
		So(FromHTTPStatus("pexels", 400, strings.Repeat("x", 1000)).Kind, ShouldEqual, FailureInvalidInput)

		So(KindOf(Classify("llm", context.DeadlineExceeded)), ShouldEqual, FailureTransientIO)
		So(KindOf(Classify("llm", errors.New("status 429: too many requests"))), ShouldEqual, FailureRateLimited)
		So(KindOf(Classify("llm", errors.New("401 Unauthorized"))), ShouldEqual, FailureAuth)
		So(KindOf(Classify("llm", errors.New("model refused"))), ShouldEqual, FailureInvalidInput)
		So(Classify("llm", nil), ShouldBeNil)

		f := NewFailure(FailureNotFound, "pixabay", errors.New("no hits"))
		wrapped := fmt.Errorf("resolve: %w", f)
		So(KindOf(Classify("other", wrapped)), ShouldEqual, FailureNotFound)
		So(KindOf(errors.New("plain")), ShouldEqual, FailureKind(""))
		So(f.Error(), ShouldEqual, "pixabay: not_found: no hits")
	})
}

func TestEstimateMarks(t *testing.T) {
	Convey("EstimateMarks 按字符数分配时长", t, func() {
		marks := EstimateMarks("ab, cdef", 6)
		So(marks, ShouldHaveLength, 2)
		So(marks[0].Text, ShouldEqual, "ab,")
		So(marks[0].End, ShouldAlmostEqual, 2)
		So(marks[1].Start, ShouldAlmostEqual, 2)
		So(marks[1].End, ShouldAlmostEqual, 6)

		So(EstimateMarks("你好", 1), ShouldHaveLength, 2)
		So(EstimateMarks("hello", 0), ShouldBeNil)
		So(EstimateMarks("...", 3), ShouldBeNil)
	})
}
