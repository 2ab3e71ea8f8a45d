package backend

import (
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/controls"
	"github.com/rezon/mediasession/backend/util"
	"github.com/rezon/mediasession/res"
)

type SessionConfig struct {
	// Placeholders shown by a fresh session until the host sends metadata.
	DefaultTitle  string
	DefaultAuthor string
	// Player name shown by desktop media controls.
	Identity            string
	EnableMPRIS         bool
	EnableNotifications bool
	LastLaunchedVersion string
}

type ArtworkConfig struct {
	MaxSizePx          int
	FetchRetries       int
	MemoryCacheSize    int
	CacheTTLSeconds    int
	MaxDiskCacheSizeMB int
	AccentColor        bool
}

type NotificationConfig struct {
	AppIcon         string
	ExpireTimeoutMs int
}

type ControlsConfig struct {
	MaxPendingActions int
}

type Config struct {
	Session      SessionConfig
	Artwork      ArtworkConfig
	Notification NotificationConfig
	Controls     ControlsConfig
}

func DefaultConfig(appVersionTag string) *Config {
	return &Config{
		Session: SessionConfig{
			DefaultTitle:        res.DefaultTitle,
			DefaultAuthor:       res.DefaultAuthor,
			Identity:            res.DisplayName,
			EnableMPRIS:         true,
			EnableNotifications: true,
			LastLaunchedVersion: appVersionTag,
		},
		Artwork: ArtworkConfig{
			MaxSizePx:          artwork.DefaultMaxSizePx,
			FetchRetries:       artwork.DefaultFetchRetries,
			MemoryCacheSize:    16,
			CacheTTLSeconds:    600,
			MaxDiskCacheSizeMB: 20,
			AccentColor:        true,
		},
		Notification: NotificationConfig{
			AppIcon:         "audio-x-generic",
			ExpireTimeoutMs: 0,
		},
		Controls: ControlsConfig{
			MaxPendingActions: controls.DefaultMaxPending,
		},
	}
}

func ReadConfigFile(filepath, appVersionTag string) (*Config, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := DefaultConfig(appVersionTag)
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	c.clamp()
	return c, nil
}

// clamp replaces out-of-range values from hand-edited files with defaults.
func (c *Config) clamp() {
	def := DefaultConfig("")
	if c.Session.DefaultTitle == "" {
		c.Session.DefaultTitle = def.Session.DefaultTitle
	}
	if c.Session.DefaultAuthor == "" {
		c.Session.DefaultAuthor = def.Session.DefaultAuthor
	}
	if c.Session.Identity == "" {
		c.Session.Identity = def.Session.Identity
	}
	if c.Artwork.MaxSizePx <= 0 {
		c.Artwork.MaxSizePx = def.Artwork.MaxSizePx
	}
	if c.Artwork.FetchRetries < 0 {
		c.Artwork.FetchRetries = 0
	}
	if c.Artwork.MemoryCacheSize < 1 {
		c.Artwork.MemoryCacheSize = 1
	}
	if c.Artwork.CacheTTLSeconds <= 0 {
		c.Artwork.CacheTTLSeconds = def.Artwork.CacheTTLSeconds
	}
	if c.Artwork.MaxDiskCacheSizeMB < 0 {
		c.Artwork.MaxDiskCacheSizeMB = 0
	}
	if c.Controls.MaxPendingActions < 0 {
		c.Controls.MaxPendingActions = 0
	}
}

var writeLock sync.Mutex

func (c *Config) WriteConfigFile(filepath string) error {
	if !writeLock.TryLock() {
		return nil // another write in progress
	}
	defer writeLock.Unlock()

	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(filepath, b, 0644)
}
