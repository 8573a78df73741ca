package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	androidUA = "Mozilla/5.0 (Linux; Android 12; Pixel 6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Mobile Safari/537.36"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	botUA     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestParseDeviceInfo(t *testing.T) {
	t.Run("Android Phone", func(t *testing.T) {
		info := ParseDeviceInfo(androidUA, "203.0.113.7")
		assert.Equal(t, "mobile", info["device_type"])
		assert.Equal(t, "android", info["platform"])
		assert.Equal(t, "203.0.113.7", info["ip"])
		assert.Equal(t, false, info["is_bot"])
		assert.Contains(t, info["browser"], "Chrome")
	})

	t.Run("Tablet", func(t *testing.T) {
		info := ParseDeviceInfo(ipadUA, "")
		assert.Equal(t, "tablet", info["device_type"])
		assert.NotContains(t, info, "ip")
	})

	t.Run("Desktop", func(t *testing.T) {
		info := ParseDeviceInfo(desktopUA, "")
		assert.Equal(t, "desktop", info["device_type"])
		assert.Equal(t, "windows", info["platform"])
	})

	t.Run("Bot", func(t *testing.T) {
		assert.Equal(t, true, ParseDeviceInfo(botUA, "")["is_bot"])
	})

	t.Run("Empty", func(t *testing.T) {
		info := ParseDeviceInfo("  ", "")
		assert.Equal(t, "unknown", info["device_type"])
		assert.NotContains(t, info, "user_agent")
	})
}

func TestClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("First Public Forwarded Address", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		c.Request.Header.Set("X-Forwarded-For", "10.0.0.4, 203.0.113.9, 198.51.100.1")
		assert.Equal(t, "203.0.113.9", ClientIP(c))
	})

	t.Run("Falls Back To Remote Address", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		c.Request.RemoteAddr = "192.0.2.10:5123"
		assert.Equal(t, "192.0.2.10", ClientIP(c))
	})
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(32)
	require.NoError(t, err)
	b, err := GenerateSecret(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	_, err = GenerateSecret(0)
	assert.Error(t, err)
}
