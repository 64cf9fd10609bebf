package hostdriver

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// simulatorSupportedPlatform is the platform string the simulator runtime
// requires in a bundle's Info.plist before it will install it.
const simulatorSupportedPlatform = "iPhoneSimulator"

// preprocessForSimulator expands archivePath into a temp directory, strips
// embedded code-signing blobs, rewrites the bundle's supported-platforms
// metadata to include the simulator platform, and re-packs it into a new
// temp .app bundle path. It never mutates the caller's original archive;
// the returned cleanup removes the whole temp directory, on success or on
// any failure path (spec §4.3).
func preprocessForSimulator(archivePath string) (bundlePath string, cleanup func(), err error) {
	workDir, err := os.MkdirTemp("", "simctrl-install-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp workdir: %w", err)
	}
	cleanup = func() { os.RemoveAll(workDir) }

	extractDir := filepath.Join(workDir, "extracted")
	if err := unzip(archivePath, extractDir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to expand archive: %w", err)
	}

	appDir, err := findAppBundle(extractDir)
	if err != nil {
		cleanup()
		return "", nil, err
	}

	if err := stripCodeSigning(appDir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to strip code signing: %w", err)
	}

	if err := rewriteSupportedPlatforms(filepath.Join(appDir, "Info.plist")); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to rewrite Info.plist: %w", err)
	}

	return appDir, cleanup, nil
}

func unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		path := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := extractZipFile(f, path); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func findAppBundle(root string) (string, error) {
	var found string
	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() && strings.HasSuffix(path, ".app") {
			found = path
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no .app bundle found in archive")
	}
	return found, nil
}

// stripCodeSigning removes the embedded code-signing blob directory and
// signature attribute files so the simulator runtime does not reject the
// bundle's (device-targeted) signature.
func stripCodeSigning(appDir string) error {
	candidates := []string{
		filepath.Join(appDir, "_CodeSignature"),
		filepath.Join(appDir, "embedded.mobileprovision"),
	}
	for _, c := range candidates {
		if err := os.RemoveAll(c); err != nil {
			return err
		}
	}
	return nil
}

// rewriteSupportedPlatforms rewrites CFBundleSupportedPlatforms in the
// bundle's Info.plist to include the simulator platform, preserving every
// other key.
func rewriteSupportedPlatforms(plistPath string) error {
	data, err := os.ReadFile(plistPath)
	if err != nil {
		return err
	}

	var doc map[string]interface{}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse Info.plist: %w", err)
	}

	platforms := []string{simulatorSupportedPlatform}
	if existing, ok := doc["CFBundleSupportedPlatforms"].([]interface{}); ok {
		seen := map[string]bool{simulatorSupportedPlatform: true}
		for _, p := range existing {
			if s, ok := p.(string); ok && !seen[s] {
				platforms = append(platforms, s)
				seen[s] = true
			}
		}
	}
	doc["CFBundleSupportedPlatforms"] = platforms

	out, err := plist.MarshalIndent(doc, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal Info.plist: %w", err)
	}
	return os.WriteFile(plistPath, out, 0644)
}

func readBundleID(appDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(appDir, "Info.plist"))
	if err != nil {
		return "", err
	}
	var doc map[string]interface{}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return "", err
	}
	id, ok := doc["CFBundleIdentifier"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("Info.plist missing CFBundleIdentifier")
	}
	return id, nil
}
