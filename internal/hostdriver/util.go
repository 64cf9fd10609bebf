package hostdriver

import (
	"fmt"
	"strings"
	"time"
)

func dotsToDashes(s string) string {
	return strings.ReplaceAll(s, ".", "-")
}

func deviceName(deviceType string) string {
	return fmt.Sprintf("%s-%d", strings.ReplaceAll(deviceType, " ", "-"), time.Now().UnixNano())
}

func trimTrailingNewline(b []byte) string {
	return strings.TrimSpace(string(b))
}
