package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	. "github.com/smartystreets/goconvey/convey"

	"reelforge/internal/pkg/videotools"
)

// fakeChatModel 记录收到的消息并返回固定内容
type fakeChatModel struct {
	reply    string
	err      error
	messages []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.messages = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestLLM(t *testing.T) {
	Convey("LLM 文案和关键词生成", t, func() {
		ctx := context.Background()
		cm := &fakeChatModel{}
		llm := NewEinoLLM("openai", cm)

		Convey("文案带系统提示词并被清理", func() {
			cm.reply = "Narrator: Cats purr **a lot**."
			script, err := llm.GenerateScript(ctx, "cats", "", 1)
			So(err, ShouldBeNil)
			So(script, ShouldEqual, "Cats purr a lot.")
			So(cm.messages, ShouldHaveLength, 2)
			So(cm.messages[0].Role, ShouldEqual, schema.System)
			So(cm.messages[1].Content, ShouldContainSubstring, "Video subject: cats")
		})

		Convey("空文案归类为 invalid_input", func() {
			cm.reply = "   "
			_, err := llm.GenerateScript(ctx, "cats", "", 1)
			So(videotools.KindOf(err), ShouldEqual, videotools.FailureInvalidInput)
		})

		Convey("模型错误在边界归类", func() {
			cm.err = errors.New("status 429: rate limit reached")
			_, err := llm.GenerateTerms(ctx, "cats", "script", 3)
			So(videotools.KindOf(err), ShouldEqual, videotools.FailureRateLimited)
		})

		Convey("关键词解析", func() {
			cm.reply = `["cat", "kitten", "purring cat", "pet"]`
			terms, err := llm.GenerateTerms(ctx, "cats", "script", 3)
			So(err, ShouldBeNil)
			So(terms, ShouldResemble, []string{"cat", "kitten", "purring cat"})
		})

		Convey("没有关键词归类为 not_found", func() {
			cm.reply = "[]"
			_, err := llm.GenerateTerms(ctx, "cats", "script", 3)
			So(videotools.KindOf(err), ShouldEqual, videotools.FailureNotFound)
		})
	})
}
