package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rezon/mediasession/backend/playback"
)

func newTestApp(t *testing.T) *App {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &App{
		appVersionTag: "v0.4.0",
		configDir:     dir,
		configPath:    filepath.Join(dir, "config.toml"),
		bgrndCtx:      ctx,
		cancel:        cancel,
	}
}

func TestReadConfigBacksUpMalformedFile(t *testing.T) {
	a := newTestApp(t)
	os.WriteFile(a.configPath, []byte("[Session\nbroken"), 0644)

	a.readConfig()
	if a.Config == nil || a.Config.Session.DefaultTitle != "Rezon Audiobooks" {
		t.Fatalf("config = %+v, want defaults", a.Config)
	}
	if a.IsFirstLaunch() {
		t.Error("existing file is not a first launch")
	}
	b, err := os.ReadFile(filepath.Join(a.configDir, "config.toml.bak"))
	if err != nil || string(b) != "[Session\nbroken" {
		t.Errorf("backup = %q, %v", b, err)
	}
}

func TestReadConfigFirstLaunch(t *testing.T) {
	a := newTestApp(t)
	a.readConfig()
	if !a.IsFirstLaunch() {
		t.Error("missing file should be a first launch")
	}
	if _, err := os.Stat(filepath.Join(a.configDir, "config.toml.bak")); err == nil {
		t.Error("nothing to back up on first launch")
	}
}

func TestReloadConfigUpdatesDefaults(t *testing.T) {
	a := newTestApp(t)
	a.readConfig()
	a.Coordinator = NewSessionCoordinator(a.bgrndCtx, nil, nil, nil)
	a.Coordinator.SetDefaults(a.Config.Session.DefaultTitle, a.Config.Session.DefaultAuthor)

	cfg := DefaultConfig("v0.4.0")
	cfg.Session.DefaultTitle = "My Library"
	if err := cfg.WriteConfigFile(a.configPath); err != nil {
		t.Fatal(err)
	}
	a.reloadConfig()

	a.Coordinator.UpdateState(playback.Patch{IsPlaying: playback.Ptr(true)})
	st, _ := a.Coordinator.State()
	if st.Title != "My Library" || st.Author != "Now Playing" {
		t.Errorf("fresh session = %q/%q, want reloaded defaults", st.Title, st.Author)
	}

	// a broken edit keeps the last good defaults
	os.WriteFile(a.configPath, []byte("DefaultTitle = "), 0644)
	a.reloadConfig()
	if a.Config.Session.DefaultTitle != "My Library" {
		t.Errorf("title = %q after bad edit", a.Config.Session.DefaultTitle)
	}
}
