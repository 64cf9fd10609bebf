package hostdriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

func TestMapStateKnownValues(t *testing.T) {
	cases := map[string]DeviceState{
		"Booted":        StateBooted,
		"Booting":       StateBooting,
		"Shutdown":      StateShutdown,
		"Shutting Down": StateShuttingDown,
		"Creating":      StateUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapState(in), "mapState(%q)", in)
	}
}

func TestDimensionsKnownDeviceType(t *testing.T) {
	dim, err := Dimensions("iPhone 15")
	require.NoError(t, err)
	assert.Equal(t, 393, dim.PointWidth)
	assert.Equal(t, 852, dim.PointHeight)
	assert.Equal(t, 3, dim.Scale)
	assert.Equal(t, 393*3, dim.PixelWidth)
	assert.Equal(t, 852*3, dim.PixelHeight)
}

func TestDimensionsUnknownDeviceTypeErrors(t *testing.T) {
	_, err := Dimensions("Commodore 64")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))
}

func TestParseLaunchctlListSkipsHeaderAndMalformedRows(t *testing.T) {
	raw := []byte("PID\tStatus\tLabel\n" +
		"123\t0\tcom.apple.foo\n" +
		"garbage-line\n" +
		"456\t0\tcom.apple.bar\n")

	procs := parseLaunchctlList(raw)
	require.Len(t, procs, 2)
	assert.Equal(t, ProcessInfo{PID: 123, Process: "com.apple.foo"}, procs[0])
	assert.Equal(t, ProcessInfo{PID: 456, Process: "com.apple.bar"}, procs[1])
}

func TestParseInstalledAppsExtractsDisplayNameAndVersion(t *testing.T) {
	raw := []byte(`"com.example.app" = {
    CFBundleDisplayName = "Example App";
    CFBundleShortVersionString = "1.2.3";
};
`)
	apps := parseInstalledApps(raw)
	require.Len(t, apps, 1)
	assert.Equal(t, "com.example.app", apps[0].BundleID)
	assert.Equal(t, "Example App", apps[0].DisplayName)
	assert.Equal(t, "1.2.3", apps[0].Version)
}

func TestExtractQuoted(t *testing.T) {
	assert.Equal(t, "Example App", extractQuoted(`CFBundleDisplayName = "Example App";`))
	assert.Equal(t, "", extractQuoted("no quotes here"))
}

func TestDotsToDashes(t *testing.T) {
	assert.Equal(t, "17-0", dotsToDashes("17.0"))
}
