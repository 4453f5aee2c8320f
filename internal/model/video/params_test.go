package video

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reelforge/internal/config"
)

func validParams() VideoParams {
	p := Defaults()
	p.VideoSubject = "why cats purr"
	p.VoiceName = "azure:en-US-JennyNeural"
	return p
}

func TestVideoParams_Validate(t *testing.T) {
	Convey("VideoParams.Validate 检查所有不变量", t, func() {
		p := validParams()
		So(p.Validate(), ShouldBeNil)

		Convey("主题和文案不能同时为空", func() {
			p.VideoSubject = "  "
			p.VideoScript = ""
			err := p.Validate()
			So(errors.Is(err, ErrInvalidParams), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "cannot both be empty")
		})

		Convey("只有文案也合法", func() {
			p.VideoSubject = ""
			p.VideoScript = "Cats purr for many reasons."
			So(p.Validate(), ShouldBeNil)
		})

		Convey("不支持的素材来源", func() {
			p.VideoSource = "douyin"
			So(errors.Is(p.Validate(), ErrInvalidParams), ShouldBeTrue)
		})

		Convey("本地来源必须带素材", func() {
			p.VideoSource = VideoSourceLocal
			So(p.Validate(), ShouldNotBeNil)

			p.VideoMaterials = []MaterialInfo{{Provider: "local", URL: "/tmp/a.mp4"}}
			So(p.Validate(), ShouldBeNil)
		})

		Convey("自定义字幕位置必须在 [0,100]", func() {
			p.SubtitlePosition = SubtitleCustom
			p.CustomPosition = 150
			So(errors.Is(p.Validate(), ErrInvalidParams), ShouldBeTrue)

			p.CustomPosition = 100
			So(p.Validate(), ShouldBeNil)

			p.CustomPosition = -1
			So(p.Validate(), ShouldNotBeNil)
		})

		Convey("成片数量有上限", func() {
			p.VideoCount = 6
			So(p.Validate(), ShouldNotBeNil)
			p.VideoCount = 0
			So(p.Validate(), ShouldNotBeNil)
		})

		Convey("自定义背景音乐文件必须存在", func() {
			p.BgmType = BgmCustom
			p.BgmFile = filepath.Join(t.TempDir(), "missing.mp3")
			So(p.Validate(), ShouldNotBeNil)

			So(os.WriteFile(p.BgmFile, []byte("id3"), 0o644), ShouldBeNil)
			So(p.Validate(), ShouldBeNil)
		})

		Convey("背景音乐音量在 [0,1]", func() {
			p.BgmVolume = 1.5
			So(p.Validate(), ShouldNotBeNil)
		})

		Convey("颜色格式校验只在开启字幕时生效", func() {
			p.TextForeColor = "white"
			So(p.Validate(), ShouldNotBeNil)
			p.SubtitleEnabled = false
			So(p.Validate(), ShouldBeNil)
		})

		Convey("语速和音量必须为正", func() {
			p.VoiceRate = 0
			So(p.Validate(), ShouldNotBeNil)
		})
	})
}

func TestVideoParams_Clone(t *testing.T) {
	Convey("Clone 不与原参数共享切片", t, func() {
		p := validParams()
		p.VideoTerms = []string{"cat", "purr"}
		p.VideoMaterials = []MaterialInfo{{Provider: "local", URL: "a.mp4"}}

		c := p.Clone()
		c.VideoTerms[0] = "dog"
		c.VideoMaterials[0].URL = "b.mp4"

		So(p.VideoTerms[0], ShouldEqual, "cat")
		So(p.VideoMaterials[0].URL, ShouldEqual, "a.mp4")
	})
}

func TestFromUIConfig(t *testing.T) {
	Convey("FromUIConfig 使用界面偏好并回落到默认值", t, func() {
		p := FromUIConfig(config.UIConfig{
			VideoSource:     "local",
			VideoAspect:     "landscape",
			VoiceName:       "volc:BV001_streaming",
			BgmType:         "none",
			SubtitleEnabled: true,
			FontSize:        0,
		})
		So(p.VideoSource, ShouldEqual, VideoSourceLocal)
		So(p.VideoAspect, ShouldEqual, AspectLandscape)
		So(p.VideoConcatMode, ShouldEqual, ConcatModeRandom)
		So(p.VideoClipDuration, ShouldEqual, 3)
		So(p.FontSize, ShouldEqual, 60)
		So(p.BgmType, ShouldEqual, BgmNone)

		w, h := p.VideoAspect.Resolution()
		So(w, ShouldEqual, 1920)
		So(h, ShouldEqual, 1080)
	})
}
