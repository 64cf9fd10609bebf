package hostdriver

import (
	"context"
	"fmt"
	"time"
)

// Screenshot captures a frame from udid in the given format ("png"|"jpeg").
func (d *Driver) Screenshot(ctx context.Context, udid, format string) ([]byte, error) {
	res, err := d.simctl(ctx, "screenshot", d.actionTimeout, "io", udid, "screenshot", "--type", format, "-")
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// OpenURL opens rawURL in the device's default handler.
func (d *Driver) OpenURL(ctx context.Context, udid, rawURL string) error {
	_, err := d.simctl(ctx, "open-url", d.actionTimeout, "openurl", udid, rawURL)
	return err
}

// Tap performs a tap at logical point coordinates (x, y).
func (d *Driver) Tap(ctx context.Context, udid string, x, y float64) error {
	_, err := d.automation(ctx, "tap", d.actionTimeout, "ui", "tap", "--udid", udid,
		fmt.Sprintf("%.2f", x), fmt.Sprintf("%.2f", y))
	return err
}

// Swipe performs a swipe from (startX,startY) to (endX,endY) over duration.
func (d *Driver) Swipe(ctx context.Context, udid string, startX, startY, endX, endY float64, duration time.Duration) error {
	_, err := d.automation(ctx, "swipe", d.actionTimeout, "ui", "swipe", "--udid", udid,
		fmt.Sprintf("%.2f,%.2f", startX, startY),
		fmt.Sprintf("%.2f,%.2f", endX, endY),
		"--duration", duration.String())
	return err
}

// HardwareButton names a hardware button spec §4.7.1 accepts.
type HardwareButton string

const (
	ButtonHome        HardwareButton = "home"
	ButtonLock        HardwareButton = "lock"
	ButtonSiri        HardwareButton = "siri"
	ButtonSideButton  HardwareButton = "side-button"
	ButtonApplePay    HardwareButton = "apple-pay"
	ButtonVolumeUp    HardwareButton = "volume-up"
	ButtonVolumeDown  HardwareButton = "volume-down"
	ButtonShake       HardwareButton = "shake"
)

// Button presses a hardware button.
func (d *Driver) Button(ctx context.Context, udid string, button HardwareButton) error {
	_, err := d.automation(ctx, "button", d.actionTimeout, "ui", "button", "--udid", udid, string(button))
	return err
}

// Key sends a single HID usage-code keypress, held for duration (0 = tap).
func (d *Driver) Key(ctx context.Context, udid, keyCode string, duration time.Duration) error {
	args := []string{"ui", "key", "--udid", udid, keyCode}
	if duration > 0 {
		args = append(args, "--duration", duration.String())
	}
	_, err := d.automation(ctx, "key", d.actionTimeout, args...)
	return err
}

// Text types a literal string through the on-device keyboard input driver.
func (d *Driver) Text(ctx context.Context, udid, text string) error {
	_, err := d.automation(ctx, "text", d.actionTimeout, "ui", "text", "--udid", udid, text)
	return err
}

// Orientation rotates the device to the named orientation.
func (d *Driver) Orientation(ctx context.Context, udid, orientation string) error {
	_, err := d.automation(ctx, "orientation", d.actionTimeout, "ui", "orientation", "--udid", udid, orientation)
	return err
}

// SetLocation simulates a fixed GPS location.
func (d *Driver) SetLocation(ctx context.Context, udid string, lat, lon float64) error {
	_, err := d.simctl(ctx, "set-location", d.actionTimeout, "location", udid, "set", fmt.Sprintf("%f,%f", lat, lon))
	return err
}

// ClearLocation stops location simulation.
func (d *Driver) ClearLocation(ctx context.Context, udid string) error {
	_, err := d.simctl(ctx, "clear-location", d.actionTimeout, "location", udid, "clear")
	return err
}

// LocationPresets returns a fixed catalog of commonly-used GPS presets.
func LocationPresets() []LocationPreset {
	return []LocationPreset{
		{Name: "San Francisco", Latitude: 37.7749, Longitude: -122.4194},
		{Name: "New York", Latitude: 40.7128, Longitude: -74.0060},
		{Name: "London", Latitude: 51.5074, Longitude: -0.1278},
		{Name: "Tokyo", Latitude: 35.6762, Longitude: 139.6503},
		{Name: "Sydney", Latitude: -33.8688, Longitude: 151.2093},
	}
}
