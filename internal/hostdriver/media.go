package hostdriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/radiocontrol/simctrl/internal/apperrors"
)

// PushFile copies localPath into the simulator's filesystem at a
// destination scoped to bundleID's container (or the device's shared
// media location when bundleID is empty).
func (d *Driver) PushFile(ctx context.Context, udid, bundleID, localPath, destPath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "push-file", "local file not found", err)
	}
	args := []string{"addmedia", udid}
	if bundleID != "" {
		args = []string{"file", "push", udid, bundleID, localPath, destPath}
	} else {
		args = append(args, localPath)
	}
	_, err := d.simctl(ctx, "push-file", d.actionTimeout, args...)
	return err
}

// PullFile copies srcPath out of the simulator's filesystem to localPath.
func (d *Driver) PullFile(ctx context.Context, udid, bundleID, srcPath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "pull-file", "failed to prepare destination directory", err)
	}
	_, err := d.simctl(ctx, "pull-file", d.actionTimeout, "file", "pull", udid, bundleID, srcPath, localPath)
	return err
}

// AddPhoto adds an image file to the simulator's photo library.
func (d *Driver) AddPhoto(ctx context.Context, udid, localPath string) error {
	return d.addMediaAsset(ctx, "add-photo", udid, localPath, []string{"jpg", "jpeg", "png", "heic"})
}

// AddVideo adds a video file to the simulator's photo library.
func (d *Driver) AddVideo(ctx context.Context, udid, localPath string) error {
	return d.addMediaAsset(ctx, "add-video", udid, localPath, []string{"mov", "mp4", "m4v"})
}

func (d *Driver) addMediaAsset(ctx context.Context, op, udid, localPath string, allowedExt []string) error {
	ext := filepath.Ext(localPath)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	ok := false
	for _, a := range allowedExt {
		if ext == a {
			ok = true
			break
		}
	}
	if !ok {
		return apperrors.New(apperrors.KindConfiguration, op, fmt.Sprintf("unsupported media extension %q", ext))
	}
	if _, err := os.Stat(localPath); err != nil {
		return apperrors.Wrap(apperrors.KindIO, op, "local file not found", err)
	}
	_, err := d.simctl(ctx, op, d.actionTimeout, "addmedia", udid, localPath)
	return err
}
