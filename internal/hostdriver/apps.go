package hostdriver

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

// InstallApp preprocesses archivePath for simulator compatibility (see
// preprocess.go) and installs the resulting bundle, returning its bundle
// identifier. The caller's file is never mutated (spec §4.3).
func (d *Driver) InstallApp(ctx context.Context, udid, archivePath string) (bundleID string, err error) {
	simBundlePath, cleanup, err := preprocessForSimulator(archivePath)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindConfiguration, "install-app", "failed to prepare bundle for simulator", err)
	}
	defer cleanup()

	if _, err := d.simctl(ctx, "install-app", d.actionTimeout, "install", udid, simBundlePath); err != nil {
		return "", err
	}

	bundleID, err = readBundleID(simBundlePath)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindHostDriver, "install-app", "installed but could not determine bundle id", err)
	}
	return bundleID, nil
}

// LaunchApp launches bundleID on udid and returns its process id.
func (d *Driver) LaunchApp(ctx context.Context, udid, bundleID string) (pid int, err error) {
	res, err := d.simctl(ctx, "launch-app", d.actionTimeout, "launch", udid, bundleID)
	if err != nil {
		return 0, err
	}
	// simctl prints "<bundleID>: <pid>" on success.
	parts := strings.SplitN(strings.TrimSpace(string(res.Stdout)), ": ", 2)
	if len(parts) != 2 {
		return 0, apperrors.New(apperrors.KindHostDriver, "launch-app", "unexpected simctl launch output")
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(parts[1]))
	if convErr != nil {
		return 0, apperrors.Wrap(apperrors.KindHostDriver, "launch-app", "could not parse launched pid", convErr)
	}
	return pid, nil
}

// TerminateApp terminates a running app.
func (d *Driver) TerminateApp(ctx context.Context, udid, bundleID string) error {
	_, err := d.simctl(ctx, "terminate-app", d.actionTimeout, "terminate", udid, bundleID)
	return err
}

// UninstallApp removes an installed app.
func (d *Driver) UninstallApp(ctx context.Context, udid, bundleID string) error {
	_, err := d.simctl(ctx, "uninstall-app", d.actionTimeout, "uninstall", udid, bundleID)
	return err
}

// ListInstalledApps lists apps installed on udid.
func (d *Driver) ListInstalledApps(ctx context.Context, udid string) ([]InstalledApp, error) {
	res, err := d.simctl(ctx, "list-apps", d.actionTimeout, "listapps", udid)
	if err != nil {
		return nil, err
	}
	return parseInstalledApps(res.Stdout), nil
}

// parseInstalledApps parses simctl's plist-ish `listapps` text dump into
// InstalledApp records on a best-effort basis: it looks for
// "<bundle-id>" = { CFBundleDisplayName = "<name>"; ... } blocks.
func parseInstalledApps(raw []byte) []InstalledApp {
	var apps []InstalledApp
	now := time.Now()
	lines := strings.Split(string(raw), "\n")
	var currentBundle string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "= {") && strings.Contains(trimmed, ".") {
			currentBundle = strings.Trim(strings.TrimSuffix(trimmed, "= {"), "\" ")
			apps = append(apps, InstalledApp{BundleID: currentBundle, InstalledAt: now})
			continue
		}
		if currentBundle == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "CFBundleDisplayName") {
			apps[len(apps)-1].DisplayName = extractQuoted(trimmed)
		}
		if strings.HasPrefix(trimmed, "CFBundleShortVersionString") {
			apps[len(apps)-1].Version = extractQuoted(trimmed)
		}
	}
	return apps
}

func extractQuoted(s string) string {
	first := strings.Index(s, "\"")
	if first == -1 {
		return ""
	}
	last := strings.LastIndex(s, "\"")
	if last <= first {
		return ""
	}
	return s[first+1 : last]
}
