// Package artifacts owns the on-disk side files of a run: cookies, the
// captured request log, screenshots and result files.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
)

type Store struct {
	paths config.PathsConfig
}

func New(paths config.PathsConfig) *Store {
	return &Store{paths: paths}
}

// EnsureDirs creates every directory the run may write to.
func (s *Store) EnsureDirs() error {
	dirs := []string{
		s.paths.DataDir,
		filepath.Dir(s.paths.CookiesFile),
		filepath.Dir(s.paths.RequestsFile),
		s.paths.MatchesDir,
		s.paths.ScreenshotsDir,
	}
	for _, d := range dirs {
		if d == "" || d == "." {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

func (s *Store) ScreenshotPath(name string) string {
	return filepath.Join(s.paths.ScreenshotsDir, name)
}

// MatchesPath is data/matches/sofascore_matches_<method>_<YYYYmmdd_HHMMSS>.json.
func (s *Store) MatchesPath(method string, at time.Time) string {
	name := fmt.Sprintf("sofascore_matches_%s_%s.json", method, at.Format("20060102_150405"))
	return filepath.Join(s.paths.MatchesDir, name)
}

func (s *Store) CookiesPath() string { return s.paths.CookiesFile }

func (s *Store) RequestsPath() string { return s.paths.RequestsFile }

// AnalysisPath sits next to the request log.
func (s *Store) AnalysisPath() string {
	ext := filepath.Ext(s.paths.RequestsFile)
	return s.paths.RequestsFile[:len(s.paths.RequestsFile)-len(ext)] + "_analysis.json"
}

// SaveJSON writes v with 2-space indentation, creating parent directories.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LoadJSON reads a file written by SaveJSON into v.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
