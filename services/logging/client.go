package logging

import (
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

// ClientInfo is the coarse client description attached to request logs.
type ClientInfo struct {
	Browser    string
	OS         string
	DeviceType string
	Bot        bool
}

func ParseClient(userAgent string) ClientInfo {
	if userAgent == "" {
		return ClientInfo{Browser: "unknown", OS: "unknown", DeviceType: "unknown"}
	}

	ua := useragent.Parse(userAgent)

	info := ClientInfo{
		Browser:    "unknown",
		OS:         "unknown",
		DeviceType: "desktop",
		Bot:        ua.Bot,
	}

	if ua.Name != "" {
		info.Browser = ua.Name
		if ua.Version != "" {
			info.Browser += " " + ua.Version
		}
	}
	if ua.OS != "" {
		info.OS = ua.OS
	}

	switch {
	case ua.Bot:
		info.DeviceType = "bot"
	case ua.Mobile:
		info.DeviceType = "mobile"
	case ua.Tablet:
		info.DeviceType = "tablet"
	}

	return info
}

func (ci ClientInfo) Fields() []zap.Field {
	return []zap.Field{
		zap.String("browser", ci.Browser),
		zap.String("os", ci.OS),
		zap.String("device", ci.DeviceType),
	}
}
