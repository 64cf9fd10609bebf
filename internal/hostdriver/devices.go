package hostdriver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

// simctlDeviceList mirrors the shape of `xcrun simctl list devices --json`.
type simctlDeviceList struct {
	Devices map[string][]simctlDevice `json:"devices"`
}

type simctlDevice struct {
	UDID       string `json:"udid"`
	Name       string `json:"name"`
	State      string `json:"state"`
	IsAvailable bool  `json:"isAvailable"`
}

// ListDevices enumerates every simulator device known to the host,
// regardless of which (if any) session owns it (spec §4.3).
func (d *Driver) ListDevices(ctx context.Context) ([]Device, error) {
	res, err := d.simctl(ctx, "list-devices", d.actionTimeout, "list", "devices", "--json")
	if err != nil {
		return nil, err
	}

	var parsed simctlDeviceList
	if err := json.Unmarshal(res.Stdout, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindHostDriver, "list-devices", "malformed simctl output", err)
	}

	var out []Device
	for runtime, devices := range parsed.Devices {
		for _, dev := range devices {
			if !dev.IsAvailable {
				continue
			}
			out = append(out, Device{
				UDID:    dev.UDID,
				Name:    dev.Name,
				Runtime: runtime,
				State:   mapState(dev.State),
			})
		}
	}
	return out, nil
}

func mapState(s string) DeviceState {
	switch s {
	case "Booted":
		return StateBooted
	case "Booting":
		return StateBooting
	case "Shutdown":
		return StateShutdown
	case "Shutting Down":
		return StateShuttingDown
	default:
		return StateUnknown
	}
}

// ListConfigurations enumerates the device types and OS (runtime) versions
// available on the host (spec §4.1 "list-configurations").
func (d *Driver) ListConfigurations(ctx context.Context) (deviceTypes []string, osVersions []string, err error) {
	dtRes, err := d.simctl(ctx, "list-device-types", d.actionTimeout, "list", "devicetypes", "--json")
	if err != nil {
		return nil, nil, err
	}
	var dtParsed struct {
		DeviceTypes []struct {
			Name string `json:"name"`
		} `json:"devicetypes"`
	}
	if err := json.Unmarshal(dtRes.Stdout, &dtParsed); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindHostDriver, "list-device-types", "malformed simctl output", err)
	}
	for _, dt := range dtParsed.DeviceTypes {
		deviceTypes = append(deviceTypes, dt.Name)
	}

	rtRes, err := d.simctl(ctx, "list-runtimes", d.actionTimeout, "list", "runtimes", "--json")
	if err != nil {
		return nil, nil, err
	}
	var rtParsed struct {
		Runtimes []struct {
			Version string `json:"version"`
		} `json:"runtimes"`
	}
	if err := json.Unmarshal(rtRes.Stdout, &rtParsed); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindHostDriver, "list-runtimes", "malformed simctl output", err)
	}
	for _, rt := range rtParsed.Runtimes {
		osVersions = append(osVersions, rt.Version)
	}

	return deviceTypes, osVersions, nil
}

// CreateDevice creates (but does not boot) a new simulator device of the
// given type and OS runtime version.
func (d *Driver) CreateDevice(ctx context.Context, deviceType, osVersion string) (udid string, err error) {
	runtimeID := fmt.Sprintf("com.apple.CoreSimulator.SimRuntime.iOS-%s", dotsToDashes(osVersion))
	res, err := d.simctl(ctx, "create-device", d.createTimeout, "create", deviceName(deviceType), deviceType, runtimeID)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindConfiguration, "create-device", "device creation failed", err)
	}
	udid = trimTrailingNewline(res.Stdout)
	if udid == "" {
		return "", apperrors.New(apperrors.KindHostDriver, "create-device", "simctl returned no UDID")
	}
	return udid, nil
}

// Boot boots the given device. Booting a device that is already booted
// returns the host tool's error.
func (d *Driver) Boot(ctx context.Context, udid string) error {
	_, err := d.simctl(ctx, "boot", d.createTimeout, "boot", udid)
	return err
}

// Shutdown shuts down the given device. Shutting down a device that is
// already shut down returns the host tool's error.
func (d *Driver) Shutdown(ctx context.Context, udid string) error {
	_, err := d.simctl(ctx, "shutdown", d.actionTimeout, "shutdown", udid)
	return err
}

// Erase erases all content and settings from the given device. The device
// must be shut down first.
func (d *Driver) Erase(ctx context.Context, udid string) error {
	_, err := d.simctl(ctx, "erase", d.actionTimeout, "erase", udid)
	return err
}

// Delete permanently removes the device record from the host.
func (d *Driver) Delete(ctx context.Context, udid string) error {
	_, err := d.simctl(ctx, "delete-device", d.actionTimeout, "delete", udid)
	return err
}

// Dimensions returns the logical/pixel screen geometry for a device type.
// Real screen geometry is a property of the device type catalog, not of
// any single booted instance, so this is a lookup rather than a live query.
func Dimensions(deviceType string) (Dimensions, error) {
	if dim, ok := deviceCatalog[deviceType]; ok {
		return dim, nil
	}
	return Dimensions{}, apperrors.New(apperrors.KindConfiguration, "dimensions", fmt.Sprintf("unknown device type %q", deviceType))
}

// deviceCatalog carries the logical-point/pixel geometry for the device
// types this driver is expected to provision. Values are Apple's published
// point sizes and scale factors for each simulator class.
var deviceCatalog = map[string]Dimensions{
	"iPhone SE (3rd generation)": {PointWidth: 375, PointHeight: 667, Scale: 2},
	"iPhone 15":                  {PointWidth: 393, PointHeight: 852, Scale: 3},
	"iPhone 15 Pro":              {PointWidth: 393, PointHeight: 852, Scale: 3},
	"iPhone 15 Pro Max":          {PointWidth: 430, PointHeight: 932, Scale: 3},
	"iPad (10th generation)":     {PointWidth: 820, PointHeight: 1180, Scale: 2},
	"iPad Pro (12.9-inch)":       {PointWidth: 1024, PointHeight: 1366, Scale: 2},
}

func init() {
	for name, dim := range deviceCatalog {
		dim.PixelWidth = dim.PointWidth * dim.Scale
		dim.PixelHeight = dim.PointHeight * dim.Scale
		deviceCatalog[name] = dim
	}
}
