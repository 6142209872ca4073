package drivermgr

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// LoadedPackage points at the cached chrome and chromedriver executables
// for one version and platform. Both paths are verified regular files.
type LoadedPackage struct {
	ChromePath       string
	ChromedriverPath string
}

// Ensure makes the selected version's binaries available on local disk,
// downloading and extracting whatever is missing, and returns their paths.
//
// The presence of the expected executable is the only install marker: a
// crash mid-extraction can leave a directory that passes this check while
// being incomplete. Concurrent Ensure calls for the same version/platform
// share a single download; distinct keys proceed in parallel. The shared
// download runs under the first caller's context, so a joining caller can
// receive that caller's cancellation error.
func (m *Manager) Ensure(ctx context.Context, selected SelectedVersion) (LoadedPackage, error) {
	key := selected.Version.String() + "/" + string(m.platform)
	v, err, _ := m.ensures.Do(key, func() (interface{}, error) {
		return m.ensure(ctx, selected)
	})
	if err != nil {
		return LoadedPackage{}, err
	}
	return v.(LoadedPackage), nil
}

func (m *Manager) ensure(ctx context.Context, selected SelectedVersion) (LoadedPackage, error) {
	platformDir := filepath.Join(m.cacheRoot, selected.Version.String(), string(m.platform))
	if err := os.MkdirAll(platformDir, 0o755); err != nil {
		return LoadedPackage{}, fmt.Errorf("create %s: %w", platformDir, err)
	}

	chromeRel, ok := m.chromeLayout.Path(m.platform)
	if !ok {
		return LoadedPackage{}, fmt.Errorf("no chrome executable layout for platform %s", m.platform)
	}
	driverRel, ok := m.driverLayout.Path(m.platform)
	if !ok {
		return LoadedPackage{}, fmt.Errorf("no chromedriver executable layout for platform %s", m.platform)
	}
	chromePath := filepath.Join(platformDir, filepath.FromSlash(chromeRel))
	driverPath := filepath.Join(platformDir, filepath.FromSlash(driverRel))

	if isRegularFile(chromePath) {
		m.logger.Info("chrome already installed", "version", selected.Version, "path", chromePath)
	} else {
		if err := m.download(ctx, selected.chrome.URL, platformDir, "chrome"); err != nil {
			return LoadedPackage{}, fmt.Errorf("install chrome %s: %w", selected.Version, err)
		}
	}

	if isRegularFile(driverPath) {
		m.logger.Info("chromedriver already installed", "version", selected.Version, "path", driverPath)
	} else {
		if err := m.download(ctx, selected.chromedriver.URL, platformDir, "chromedriver"); err != nil {
			return LoadedPackage{}, fmt.Errorf("install chromedriver %s: %w", selected.Version, err)
		}
	}

	if !isRegularFile(chromePath) {
		return LoadedPackage{}, fmt.Errorf("chrome archive did not contain expected executable %s", chromePath)
	}
	if !isRegularFile(driverPath) {
		return LoadedPackage{}, fmt.Errorf("chromedriver archive did not contain expected executable %s", driverPath)
	}

	return LoadedPackage{ChromePath: chromePath, ChromedriverPath: driverPath}, nil
}

// download streams the archive at url to a temporary file in destDir,
// extracts it into destDir, and removes the archive. There is no resume and
// no integrity check beyond the HTTP status.
func (m *Manager) download(ctx context.Context, url, destDir, artifact string) error {
	m.logger.Info("downloading", "artifact", artifact, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, res.Status)
	}

	archive, err := os.CreateTemp(destDir, artifact+"-*.zip")
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	archivePath := archive.Name()

	if _, err := io.Copy(archive, res.Body); err != nil {
		archive.Close()
		os.Remove(archivePath)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := archive.Close(); err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("write archive: %w", err)
	}

	m.logger.Info("extracting", "artifact", artifact, "dir", destDir)
	if err := extractZip(archivePath, destDir); err != nil {
		os.Remove(archivePath)
		return fmt.Errorf("extract %s: %w", artifact, err)
	}
	if err := os.Remove(archivePath); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}
	return nil
}

// extractZip unpacks archive into destDir, preserving file modes so the
// executables keep their exec bits and recreating symlink entries (the
// mac chrome .app bundle ships several). Entries escaping destDir are
// rejected.
func extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		rel := filepath.FromSlash(file.Name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("archive entry %q escapes destination", file.Name)
		}
		target := filepath.Join(destDir, rel)

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if file.Mode()&os.ModeSymlink != 0 {
			if err := extractSymlink(file, target); err != nil {
				return fmt.Errorf("entry %q: %w", file.Name, err)
			}
			continue
		}

		mode := file.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		if err := extractFile(file, target, mode); err != nil {
			return fmt.Errorf("entry %q: %w", file.Name, err)
		}
	}
	return nil
}

// extractSymlink recreates a symlink entry, whose body is the link target.
func extractSymlink(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	linkTarget, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(string(linkTarget), target)
}

func extractFile(file *zip.File, target string, mode os.FileMode) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// ClearCache removes the entire cache root recursively and recreates it
// empty. Destructive and not resumable.
func (m *Manager) ClearCache() error {
	m.logger.Info("clearing artifact cache", "dir", m.cacheRoot)
	if err := os.RemoveAll(m.cacheRoot); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	if err := os.MkdirAll(m.cacheRoot, 0o755); err != nil {
		return fmt.Errorf("recreate cache: %w", err)
	}
	return nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
