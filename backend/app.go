package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/20after4/configdir"
	"github.com/fsnotify/fsnotify"
	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/browse"
	"github.com/rezon/mediasession/backend/controls"
	"github.com/rezon/mediasession/backend/ipc"
	"github.com/rezon/mediasession/backend/util"
	"github.com/rezon/mediasession/res"
)

const (
	artworkCacheDir       = "artwork"
	cacheEvictionInterval = 1 * time.Minute
)

var ErrAnotherInstance = errors.New("another instance is running")

type App struct {
	Config       *Config
	Coordinator  *SessionCoordinator
	Router       *controls.Router
	Catalog      *browse.Catalog
	Loader       *artwork.Loader
	ImageCache   *artwork.ImageCache
	DiskStore    *artwork.DiskStore
	MPRISHandler *MPRISHandler
	Notifier     *DesktopNotifier

	// Called when a desktop media control asks the daemon to quit.
	OnExit func()

	appName       string
	appVersionTag string
	configDir     string
	cacheDir      string
	configPath    string

	isFirstLaunch bool // set by config file reader
	bgrndCtx      context.Context
	cancel        context.CancelFunc
	ipcServer     *http.Server

	cfgLock        sync.Mutex
	lastWrittenCfg Config
}

func (a *App) VersionTag() string {
	return a.appVersionTag
}

// StartupApp starts the daemon: surfaces, session coordinator and the IPC
// server. configPath may be empty to use the default location.
func StartupApp(appName, displayAppName, appVersionTag, configPath string) (*App, error) {
	confDir := configdir.LocalConfig(appName)
	cacheDir := configdir.LocalCache(appName)
	if configPath != "" {
		confDir = filepath.Dir(configPath)
	} else {
		configPath = filepath.Join(confDir, res.ConfigFile)
	}
	// ensure config and cache dirs exist
	configdir.MakePath(confDir)
	configdir.MakePath(cacheDir)

	if _, err := ipc.Connect(); err == nil {
		return nil, ErrAnotherInstance
	}

	log.Printf("Starting %s...", appName)
	log.Printf("Using config file: %s", configPath)
	log.Printf("Using cache dir: %s", cacheDir)

	a := &App{
		appName:       appName,
		appVersionTag: appVersionTag,
		configDir:     confDir,
		cacheDir:      cacheDir,
		configPath:    configPath,
	}
	a.bgrndCtx, a.cancel = context.WithCancel(context.Background())
	a.readConfig()
	if a.isFirstLaunch || a.Config.Session.LastLaunchedVersion != appVersionTag {
		a.Config.Session.LastLaunchedVersion = appVersionTag
		a.SaveConfigFile()
	}

	a.Router = controls.NewRouter(a.bgrndCtx, a.Config.Controls.MaxPendingActions)
	a.Catalog = browse.NewCatalog()
	a.setupArtwork()

	// desktop surfaces; each is optional
	var notifier NotificationSurface
	if a.Config.Session.EnableNotifications {
		if err := a.setupNotifier(displayAppName); err != nil {
			log.Printf("Desktop notifications unavailable: %v", err)
		} else {
			notifier = a.Notifier
		}
	}
	var session MediaSessionSurface
	if a.Config.Session.EnableMPRIS {
		a.setupMPRIS(a.Config.Session.Identity)
		session = a.MPRISHandler
	}

	a.Coordinator = NewSessionCoordinator(a.bgrndCtx, a.Loader, notifier, session)
	a.Coordinator.SetDefaults(a.Config.Session.DefaultTitle, a.Config.Session.DefaultAuthor)
	a.startConfigWatcher()

	listener, err := ipc.Listen()
	if err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("failed to open IPC socket: %w", err)
	}
	a.ipcServer = ipc.NewServer(a.bgrndCtx, a.Coordinator, a.Router, a.Catalog)
	go func() {
		if err := a.ipcServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("IPC server stopped: %v", err)
		}
	}()

	return a, nil
}

func (a *App) IsFirstLaunch() bool {
	return a.isFirstLaunch
}

func (a *App) readConfig() {
	cfgPath := a.configPath
	var cfgExists bool
	if _, err := os.Stat(cfgPath); err == nil {
		cfgExists = true
	}
	a.isFirstLaunch = !cfgExists
	cfg, err := ReadConfigFile(cfgPath, a.appVersionTag)
	if err != nil {
		if cfgExists {
			log.Printf("Error reading app config file: %v", err)
		}
		cfg = DefaultConfig(a.appVersionTag)
		if cfgExists {
			backupCfgName := fmt.Sprintf("%s.bak", filepath.Base(cfgPath))
			log.Printf("Config file may be malformed: copying to %s", backupCfgName)
			_ = util.CopyFile(cfgPath, filepath.Join(a.configDir, backupCfgName))
		}
	}
	a.Config = cfg
}

func (a *App) setupArtwork() {
	cfg := a.Config.Artwork
	disk, err := artwork.NewDiskStore(filepath.Join(a.cacheDir, artworkCacheDir), int64(cfg.MaxDiskCacheSizeMB)*1_048_576)
	if err != nil {
		log.Printf("Artwork will not be shared with desktop surfaces: %v", err)
	}
	a.DiskStore = disk

	a.ImageCache = &artwork.ImageCache{
		MinSize:    min(2, cfg.MemoryCacheSize),
		MaxSize:    cfg.MemoryCacheSize,
		DefaultTTL: time.Duration(cfg.CacheTTLSeconds) * time.Second,
	}
	if disk != nil {
		a.ImageCache.OnEvictTaskRan = disk.Prune
	}
	a.ImageCache.Init(a.bgrndCtx, cacheEvictionInterval)

	a.Loader = artwork.NewLoader(artwork.Options{
		MaxSizePx:    cfg.MaxSizePx,
		FetchRetries: cfg.FetchRetries,
		AccentColor:  cfg.AccentColor,
		Cache:        a.ImageCache,
	})
}

func (a *App) setupNotifier(appName string) error {
	n, err := NewDesktopNotifier(appName, a.Router)
	if err != nil {
		return err
	}
	n.AppIcon = a.Config.Notification.AppIcon
	n.ExpireTimeoutMs = int32(a.Config.Notification.ExpireTimeoutMs)
	if a.DiskStore != nil {
		n.ArtPathLookup = a.DiskStore.Path
	}
	a.Notifier = n
	return nil
}

func (a *App) setupMPRIS(mprisAppName string) {
	a.MPRISHandler = NewMPRISHandler(mprisAppName, a.Router)
	a.MPRISHandler.URIScheme = a.appName
	if a.DiskStore != nil {
		a.MPRISHandler.ArtURLLookup = a.DiskStore.URL
	}
	a.MPRISHandler.OnQuit = func() error {
		if a.OnExit == nil {
			return errors.New("no quit handler registered")
		}
		go func() {
			time.Sleep(10 * time.Millisecond)
			a.OnExit()
		}()
		return nil
	}
	a.MPRISHandler.Start()
}

// startConfigWatcher reloads the session defaults when the config file is
// edited while the daemon runs. Other settings take effect on restart.
func (a *App) startConfigWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("Config live reload unavailable: %v", err)
		return
	}
	// watch the dir: editors replace the file on save
	if err := w.Add(a.configDir); err != nil {
		log.Printf("Config live reload unavailable: %v", err)
		w.Close()
		return
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-a.bgrndCtx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == filepath.Clean(a.configPath) &&
					ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					a.reloadConfig()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("config watcher error: %v", err)
			}
		}
	}()
}

func (a *App) reloadConfig() {
	cfg, err := ReadConfigFile(a.configPath, a.appVersionTag)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Ignoring config change: %v", err)
		}
		return
	}
	a.cfgLock.Lock()
	changed := cfg.Session.DefaultTitle != a.Config.Session.DefaultTitle ||
		cfg.Session.DefaultAuthor != a.Config.Session.DefaultAuthor
	a.Config.Session.DefaultTitle = cfg.Session.DefaultTitle
	a.Config.Session.DefaultAuthor = cfg.Session.DefaultAuthor
	a.lastWrittenCfg.Session.DefaultTitle = cfg.Session.DefaultTitle
	a.lastWrittenCfg.Session.DefaultAuthor = cfg.Session.DefaultAuthor
	a.cfgLock.Unlock()
	if changed {
		log.Printf("Reloaded session defaults from %s", a.configPath)
		a.Coordinator.SetDefaults(cfg.Session.DefaultTitle, cfg.Session.DefaultAuthor)
	}
}

func (a *App) Shutdown() {
	if a.Coordinator != nil {
		a.Coordinator.Stop()
	}
	if a.MPRISHandler != nil {
		a.MPRISHandler.Shutdown()
	}
	if a.Notifier != nil {
		a.Notifier.Close()
	}
	a.cancel()
	if a.ipcServer != nil {
		a.ipcServer.Close()
		ipc.DestroyConn()
	}
	if a.DiskStore != nil {
		a.DiskStore.Prune()
	}
	a.cfgLock.Lock()
	dirty := !reflect.DeepEqual(&a.lastWrittenCfg, a.Config)
	a.cfgLock.Unlock()
	if dirty {
		a.SaveConfigFile()
	}
}

func (a *App) SaveConfigFile() {
	a.cfgLock.Lock()
	defer a.cfgLock.Unlock()
	if err := a.Config.WriteConfigFile(a.configPath); err != nil {
		log.Printf("failed to write config file: %v", err)
	}
	a.lastWrittenCfg = *a.Config
}
