package keypool

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPool(t *testing.T) {
	Convey("key 池轮换与冷却", t, func() {
		Convey("空池返回 ErrNoKeys", func() {
			_, err := New(nil).Get()
			So(errors.Is(err, ErrNoKeys), ShouldBeTrue)

			var nilPool *Pool
			_, err = nilPool.Get()
			So(errors.Is(err, ErrNoKeys), ShouldBeTrue)
			So(nilPool.Len(), ShouldEqual, 0)
		})

		Convey("使用次数均衡分布", func() {
			p := New([]string{"a", "b"})
			for i := 0; i < 10; i++ {
				_, err := p.Get()
				So(err, ShouldBeNil)
			}
			stats := p.Stats()
			So(stats.Total, ShouldEqual, 2)
			So(stats.UsageCounts["a"]+stats.UsageCounts["b"], ShouldEqual, 10)
			So(stats.UsageCounts["a"], ShouldBeGreaterThan, 0)
			So(stats.UsageCounts["b"], ShouldBeGreaterThan, 0)
		})

		Convey("失败的 key 在冷却期内不可用", func() {
			now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			p := New([]string{"a", "b"})
			p.now = func() time.Time { return now }

			p.MarkFailed("a", time.Minute)
			for i := 0; i < 5; i++ {
				key, err := p.Get()
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "b")
			}
			So(p.Stats().Blacklisted, ShouldEqual, 1)

			p.MarkFailed("b", time.Minute)
			_, err := p.Get()
			So(errors.Is(err, ErrNoKeys), ShouldBeTrue)

			now = now.Add(2 * time.Minute)
			_, err = p.Get()
			So(err, ShouldBeNil)
			So(p.Stats().Blacklisted, ShouldEqual, 0)
		})
	})
}
