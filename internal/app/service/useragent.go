package service

import (
	"regexp"

	"github.com/sifan077/clickhook/internal/app/model"
)

// UserAgentInfo holds the labels derived from a user-agent string.
type UserAgentInfo struct {
	Browser string
	OS      string
}

type uaRule struct {
	pattern *regexp.Regexp
	label   string
}

func rule(pattern, label string) uaRule {
	return uaRule{pattern: regexp.MustCompile(`(?i)` + pattern), label: label}
}

// Order matters: the first matching rule wins.
var (
	browserRules = []uaRule{
		rule(`MSIE|Trident`, "Internet Explorer"),
		rule(`Firefox`, "Firefox"),
		rule(`Chrome`, "Chrome"),
		rule(`Safari`, "Safari"),
	}

	// Chromium derivatives advertise Chrome too.
	chromeFamilyRules = []uaRule{
		rule(`Edge|Edg`, "Edge"),
		rule(`OPR|Opera`, "Opera"),
		rule(`Brave`, "Brave"),
	}

	osRules = []uaRule{
		rule(`Windows`, "Windows"),
		rule(`Macintosh|Mac OS X`, "macOS"),
		rule(`Android`, "Android"),
		rule(`iOS|iPhone|iPad|iPod`, "iOS"),
		rule(`Linux`, "Linux"),
	}

	windowsVersionRules = []uaRule{
		rule(`Windows NT 10\.0`, "10/11"),
		rule(`Windows NT 6\.3`, "8.1"),
		rule(`Windows NT 6\.2`, "8"),
		rule(`Windows NT 6\.1`, "7"),
	}
)

// ClassifyUserAgent maps a raw user-agent string to browser and OS labels.
// Anything it does not recognise is reported as "Unknown".
func ClassifyUserAgent(ua string) UserAgentInfo {
	info := UserAgentInfo{Browser: model.Unknown, OS: model.Unknown}

	if label, ok := firstMatch(browserRules, ua); ok {
		info.Browser = label
		if label == "Chrome" {
			if derived, ok := firstMatch(chromeFamilyRules, ua); ok {
				info.Browser = derived
			}
		}
	}

	if label, ok := firstMatch(osRules, ua); ok {
		info.OS = label
		if label == "Windows" {
			if version, ok := firstMatch(windowsVersionRules, ua); ok {
				info.OS += " " + version
			}
		}
	}

	return info
}

func firstMatch(rules []uaRule, s string) (string, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(s) {
			return r.label, true
		}
	}
	return "", false
}
