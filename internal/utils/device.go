package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	ua "github.com/mssola/user_agent"
	"github.com/smarttransit/booking-engine/internal/models"
)

var tabletIndicators = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "xoom", "sm-t"}

var platformByOS = []struct{ prefix, platform string }{
	{"android", "android"},
	{"ios", "ios"},
	{"iphone os", "ios"},
	{"cpu iphone os", "ios"},
	{"windows", "windows"},
	{"mac os x", "mac"},
	{"macos", "mac"},
	{"chrome os", "chromeos"},
	{"cros", "chromeos"},
	{"linux", "linux"},
	{"ubuntu", "linux"},
}

// ParseDeviceInfo extracts the device metadata stored with a booking
func ParseDeviceInfo(userAgent, clientIP string) models.DeviceInfo {
	info := models.DeviceInfo{}
	if clientIP != "" {
		info["ip"] = clientIP
	}

	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		info["device_type"] = "unknown"
		info["platform"] = "unknown"
		return info
	}

	parser := ua.New(userAgent)
	browser, version := parser.Browser()
	osInfo := parser.OSInfo()

	info["user_agent"] = userAgent
	info["device_type"] = deviceType(parser)
	info["platform"] = platform(osInfo.Name)
	info["is_bot"] = parser.Bot()
	if browser != "" {
		info["browser"] = strings.TrimSpace(browser + " " + version)
	}
	if osInfo.Name != "" {
		info["os"] = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	}
	return info
}

// DeviceInfoFromRequest parses the caller's user agent and address
func DeviceInfoFromRequest(c *gin.Context) models.DeviceInfo {
	return ParseDeviceInfo(c.Request.UserAgent(), ClientIP(c))
}

// ClientIP prefers the first public address in X-Forwarded-For and falls back to gin's ClientIP
func ClientIP(c *gin.Context) string {
	for _, part := range strings.Split(c.GetHeader("X-Forwarded-For"), ",") {
		ip := net.ParseIP(strings.TrimSpace(part))
		if ip != nil && !ip.IsPrivate() && !ip.IsLoopback() {
			return ip.String()
		}
	}
	return c.ClientIP()
}

func deviceType(parser *ua.UserAgent) string {
	if !parser.Mobile() {
		return "desktop"
	}
	lower := strings.ToLower(parser.UA())
	for _, indicator := range tabletIndicators {
		if strings.Contains(lower, indicator) {
			return "tablet"
		}
	}
	return "mobile"
}

func platform(osName string) string {
	lower := strings.ToLower(osName)
	for _, p := range platformByOS {
		if strings.HasPrefix(lower, p.prefix) {
			return p.platform
		}
	}
	return "unknown"
}
