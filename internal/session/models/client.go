package models

import (
	"strconv"
	"strings"

	"github.com/mssola/useragent"
)

// Custom attribute keys describing the client a session was opened from.
const (
	AttributeIPAddress = "ip_address"
	AttributeUserAgent = "user_agent"
	AttributeBrowser   = "browser"
	AttributeOS        = "os"
	AttributePlatform  = "platform"
	AttributeIsMobile  = "is_mobile"
	AttributeIsBot     = "is_bot"
)

const maxUserAgentLength = 2048

// ClientAttributes describes the client of a sign-in. Empty inputs yield no
// attributes.
func ClientAttributes(clientIP, userAgent string) map[string]string {
	attrs := make(map[string]string)
	if ip := strings.TrimSpace(clientIP); ip != "" {
		attrs[AttributeIPAddress] = ip
	}
	raw := strings.TrimSpace(userAgent)
	if raw == "" {
		return attrs
	}
	if len(raw) > maxUserAgentLength {
		raw = raw[:maxUserAgentLength]
	}
	attrs[AttributeUserAgent] = raw

	ua := useragent.New(raw)
	if name, version := ua.Browser(); name != "" {
		attrs[AttributeBrowser] = strings.TrimSpace(name + " " + version)
	}
	if os := ua.OS(); os != "" {
		attrs[AttributeOS] = os
	}
	if platform := ua.Platform(); platform != "" {
		attrs[AttributePlatform] = platform
	}
	attrs[AttributeIsMobile] = strconv.FormatBool(ua.Mobile())
	attrs[AttributeIsBot] = strconv.FormatBool(ua.Bot())
	return attrs
}
