package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reelforge/internal/model/video"
	"reelforge/internal/service/task"
)

type fakeLLM struct {
	scripts int
	terms   []string
	err     error
}

func (f *fakeLLM) GenerateScript(ctx context.Context, subject, language string, paragraphs int) (string, error) {
	f.scripts++
	return "Cats purr when they are happy.", f.err
}

func (f *fakeLLM) GenerateTerms(ctx context.Context, subject, script string, amount int) ([]string, error) {
	return f.terms, f.err
}

func TestPrintScript(t *testing.T) {
	Convey("--script-only 输出", t, func() {
		ctx := context.Background()
		llm := &fakeLLM{terms: []string{"cat", "purr"}}
		writer := &task.Orchestrator{Script: llm, Terms: llm}
		var out bytes.Buffer

		p := video.Defaults()
		p.VideoSubject = "cats"

		Convey("远程来源输出文案和关键词", func() {
			p.VideoSource = video.VideoSourcePexels
			So(printScript(ctx, &out, writer, p), ShouldBeNil)
			So(out.String(), ShouldEqual, "Cats purr when they are happy.\n\ncat, purr\n")
		})

		Convey("本地来源只输出文案", func() {
			p.VideoSource = video.VideoSourceLocal
			So(printScript(ctx, &out, writer, p), ShouldBeNil)
			So(out.String(), ShouldEqual, "Cats purr when they are happy.\n")
		})

		Convey("已有文案时不再生成", func() {
			p.VideoSource = video.VideoSourcePixabay
			p.VideoScript = "Dogs bark."
			So(printScript(ctx, &out, writer, p), ShouldBeNil)
			So(llm.scripts, ShouldEqual, 0)
			So(out.String(), ShouldStartWith, "Dogs bark.\n")
		})

		Convey("大模型失败时返回错误类型", func() {
			llm.err = errors.New("quota exceeded")
			err := cliError(printScript(ctx, &out, writer, p))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "script_generation: failed to generate video script")
			So(out.Len(), ShouldEqual, 0)
		})
	})
}
