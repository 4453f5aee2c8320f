package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizeKeys(t *testing.T) {
	Convey("NormalizeKeys 展开逗号分隔的 key", t, func() {
		So(NormalizeKeys(nil), ShouldBeNil)
		So(NormalizeKeys([]string{"a, b", "", " c "}), ShouldResemble, []string{"a", "b", "c"})
		So(NormalizeKeys([]string{" , "}), ShouldBeNil)
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Config.Validate", t, func() {
		cfg := &Config{
			Server: ServerConfig{Port: 8080, Mode: "release"},
			App:    AppConfig{WorkDir: "/tmp/reelforge"},
		}
		So(cfg.Validate(), ShouldBeNil)

		Convey("端口非法", func() {
			cfg.Server.Port = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("模式非法", func() {
			cfg.Server.Mode = "prod"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("缺少工作目录", func() {
			cfg.App.WorkDir = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
