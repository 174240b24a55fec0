package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDevBypassDisabledNeverMarks(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Request.Header.Set(DevBypassHeader, "secret")

	DevBypass(false, "secret")(c)
	if IsDevBypassed(c) {
		t.Fatalf("disabled gate must never mark the request bypassed")
	}
}

func TestDevBypassMatchingSecretMarks(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Request.Header.Set(DevBypassHeader, "secret")

	DevBypass(true, "secret")(c)
	if !IsDevBypassed(c) {
		t.Fatalf("matching secret must mark the request bypassed")
	}
	if w.Header().Get(DevBypassWarningHeader) != "true" {
		t.Fatalf("expected warning header to be set")
	}
}

func TestDevBypassWrongSecretDoesNotMark(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	c.Request.Header.Set(DevBypassHeader, "wrong")

	DevBypass(true, "secret")(c)
	if IsDevBypassed(c) {
		t.Fatalf("wrong secret must not mark the request bypassed")
	}
}
