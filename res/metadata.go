package res

const (
	AppName       = "mediasession"
	DisplayName   = "Rezon Audiobooks"
	AppVersion    = "0.4.0"
	AppVersionTag = "v" + AppVersion
	ConfigFile    = "config.toml"
	GithubURL     = "https://github.com/rezon/mediasession"

	// shown until the host pushes real metadata
	DefaultTitle  = "Rezon Audiobooks"
	DefaultAuthor = "Now Playing"
)
