package hostdriver

import (
	"context"
	"strconv"
	"strings"
)

// ProcessInfo is one running process as reported by launchctl inside the
// simulator's launchd domain.
type ProcessInfo struct {
	PID     int    `json:"pid"`
	Process string `json:"process"`
}

// ListProcesses lists running user processes on udid via `launchctl list`
// run inside the simulator's launchd domain.
func (d *Driver) ListProcesses(ctx context.Context, udid string) ([]ProcessInfo, error) {
	res, err := d.simctl(ctx, "list-processes", d.actionTimeout, "spawn", udid, "launchctl", "list")
	if err != nil {
		return nil, err
	}
	return parseLaunchctlList(res.Stdout), nil
}

// ClearLogs erases the simulator's unified log archive for udid.
func (d *Driver) ClearLogs(ctx context.Context, udid string) error {
	_, err := d.simctl(ctx, "clear-logs", d.actionTimeout, "spawn", udid, "log", "erase", "--all")
	return err
}

func parseLaunchctlList(raw []byte) []ProcessInfo {
	var out []ProcessInfo
	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		if i == 0 && strings.Contains(line, "Label") {
			continue // header row
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		out = append(out, ProcessInfo{PID: pid, Process: fields[2]})
	}
	return out
}
