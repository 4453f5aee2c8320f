package jwt

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJWT(t *testing.T) {
	Convey("签发和校验 token", t, func() {
		j := NewJWT("secret", time.Hour)

		token, err := j.GenerateToken("u1")
		So(err, ShouldBeNil)

		claims, err := j.ValidateToken(token)
		So(err, ShouldBeNil)
		So(claims.UserID, ShouldEqual, "u1")
		So(claims.Subject, ShouldEqual, "u1")

		Convey("密钥不同则无效", func() {
			_, err := NewJWT("other", time.Hour).ValidateToken(token)
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("过期 token", func() {
			expired, err := NewJWT("secret", time.Nanosecond).GenerateToken("u1")
			So(err, ShouldBeNil)
			time.Sleep(10 * time.Millisecond)
			_, err = j.ValidateToken(expired)
			So(err, ShouldEqual, ErrExpiredToken)
		})

		Convey("空用户和乱码", func() {
			_, err := j.GenerateToken("")
			So(err, ShouldNotBeNil)
			_, err = j.ValidateToken("not-a-token")
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("默认有效期", func() {
			So(NewJWT("s", 0).Expiration(), ShouldEqual, 24*time.Hour)
		})
	})
}
