package config

const (
	defaultConfigPath          = "~/.config/ignite/config.toml"
	defaultDataDir             = "~/.local/share/ignite"
	defaultBundlePath          = "~/.local/share/ignite/bundle.apk"
	defaultLogDir              = "~/.local/share/ignite/logs"
	defaultNativeDirName       = "native_libs"
	defaultRuntimeDirName      = "python"
	defaultRuntimeArchive      = "libpython.zip.so"
	defaultEngineCommand       = "yt-dlp"
	defaultEngineTimeout       = 60
	defaultMaxRetries          = 3
	defaultActionBudget        = 2
	defaultSettleDelayMS       = 500
	defaultBootstrapTimeout    = 300
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultDependencyLibrary   = "libc++_shared.so"
	defaultCompressedSuffixZip = ".zip"
	defaultCompressedSuffixSO  = ".zip.so"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			Bundle:  defaultBundlePath,
			LogDir:  defaultLogDir,
		},
		Native: Native{
			DirName:             defaultNativeDirName,
			RequiredFragments:   []string{"python", "ffmpeg", "aria2c"},
			DependencyLibraries: []string{defaultDependencyLibrary},
			CompressedSuffixes:  []string{defaultCompressedSuffixSO, defaultCompressedSuffixZip},
		},
		Runtime: Runtime{
			DirName:          defaultRuntimeDirName,
			NameFragments:    []string{"python"},
			AllowedFragments: []string{".so", ".zip", ".py"},
			RequiredPatterns: []string{"libpython*", "*python*.zip*"},
			LibraryArchive:   defaultRuntimeArchive,
		},
		Engine: Engine{
			Command:        defaultEngineCommand,
			TimeoutSeconds: defaultEngineTimeout,
		},
		Bootstrap: Bootstrap{
			MaxRetries:     defaultMaxRetries,
			ActionBudget:   defaultActionBudget,
			SettleDelayMS:  defaultSettleDelayMS,
			TimeoutSeconds: defaultBootstrapTimeout,
			Journal:        true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
