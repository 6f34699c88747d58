package utils

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
)

// PathResolver finds config and catalog files relative to the places
// menuserve is usually run from: the executable dir, the working dir and
// the user config dir.
type PathResolver struct {
	executableDir string
	homeDir       string
	configDir     string
}

// NewPathResolver creates a new path resolver that determines the executable location
func NewPathResolver() (*PathResolver, error) {
	execDir, err := GetExecutableDir()
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executableDir: execDir,
		homeDir:       homeDir,
		configDir:     configDirFor(homeDir),
	}
	log.Debugf("PathResolver initialized: execDir=%s, configDir=%s", execDir, pr.configDir)
	return pr, nil
}

// configDirFor returns the appropriate config directory for the platform
func configDirFor(homeDir string) string {
	switch runtime.GOOS {
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, "menuserve")
		}
		return filepath.Join(homeDir, ".config", "menuserve")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "menuserve")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "menuserve")
	default:
		return filepath.Join(homeDir, ".config", "menuserve")
	}
}

// ResolveCatalog finds a catalog file. Absolute paths are returned as is;
// relative ones are tried against the working dir, the executable dir and
// the config dir, in that order.
func (pr *PathResolver) ResolveCatalog(userPath string) (string, error) {
	if userPath == "" {
		return "", os.ErrNotExist
	}
	if filepath.IsAbs(userPath) {
		if FileExists(userPath) {
			return userPath, nil
		}
		return "", os.ErrNotExist
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, userPath))
	}
	candidates = append(candidates,
		filepath.Join(pr.executableDir, userPath),
		filepath.Join(pr.configDir, userPath),
	)
	for _, path := range candidates {
		if FileExists(path) {
			log.Debugf("Found catalog at: %s", path)
			return path, nil
		}
		log.Debugf("Catalog candidate not found: %s", path)
	}
	return "", os.ErrNotExist
}

// GetConfigPath returns the full path for a config file, falling back to
// ~/.menuserve and the temp dir when the config dir is not writable.
func (pr *PathResolver) GetConfigPath(filename string) (string, error) {
	dirs := []string{
		pr.configDir,
		filepath.Join(pr.homeDir, ".menuserve"),
		filepath.Join(os.TempDir(), "menuserve"),
	}
	for i, dir := range dirs {
		if res := CheckDirStatus(dir); res.Writable {
			path := filepath.Join(dir, filename)
			if i > 0 {
				log.Warnf("Using fallback config location: %s", path)
			}
			return path, nil
		}
	}
	tempPath := filepath.Join(os.TempDir(), filename)
	log.Warnf("Using temporary config file: %s", tempPath)
	return tempPath, nil
}
