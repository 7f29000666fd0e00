package main

import (
	"fmt"
	"log"
	"os"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"satellitor-desktop/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if settings.DownloadPath == "" {
		return fmt.Errorf("download path cannot be empty")
	}
	if settings.CacheMaxSizeMB <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if settings.CacheTTLDays <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	// Save to disk (validates the rest)
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	a.settings = settings

	// Endpoints, tiles, bounds and cache settings are wired at startup
	log.Printf("Settings saved. Service, map and cache settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// GetDownloadPath returns the current download directory
func (a *App) GetDownloadPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.DownloadPath
}

// SetDownloadPath sets the download directory
func (a *App) SetDownloadPath(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}

	updated := *a.settings
	updated.DownloadPath = path
	if err := config.SaveSettings(&updated); err != nil {
		return err
	}
	a.settings = &updated
	return nil
}

// SelectDownloadFolder opens a folder picker dialog
func (a *App) SelectDownloadFolder() (string, error) {
	path, err := wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Select Download Folder",
		DefaultDirectory: a.GetDownloadPath(),
	})
	if err != nil {
		return "", err
	}

	if path != "" {
		if err := a.SetDownloadPath(path); err != nil {
			return "", err
		}
	}

	return path, nil
}
