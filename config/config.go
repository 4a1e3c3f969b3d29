package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"probekit/logger"

	"github.com/spf13/viper"
)

// DefaultPaths collects the filesystem defaults derived from the user config
// directory.
type DefaultPaths struct {
	ConfigDir    string
	LogPathApp   string
	LogPathProxy string
	OutputDir    string
	LogLevel     string
}

type Configuration struct {
	Capture struct {
		// OutputDir is where traffic.jsonl lands unless a profile or the
		// --output-dir flag says otherwise.
		OutputDir     string `mapstructure:"output_dir"`
		UpstreamProxy string `mapstructure:"upstream_proxy"`
	} `mapstructure:"capture"`
	Logging struct {
		Level     string `mapstructure:"level"`
		AppPath   string `mapstructure:"app_path"`
		ProxyPath string `mapstructure:"proxy_path"`
	} `mapstructure:"logging"`
}

var AppConfig Configuration

func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

func GetDefaultConfigPaths() DefaultPaths {
	var paths DefaultPaths
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not get user config dir: %v. Using current directory.\n", err)
		userConfigDir = "."
	}

	paths.ConfigDir = filepath.Join(userConfigDir, "probekit")
	logDir := filepath.Join(paths.ConfigDir, "logs")

	paths.LogPathApp = filepath.Join(logDir, "app.log")
	paths.LogPathProxy = filepath.Join(logDir, "proxy.log")
	paths.OutputDir = "tmp/traffic"
	paths.LogLevel = "INFO"
	return paths
}

// Init loads configuration in the usual precedence order: defaults, then an
// optional YAML config file, then PROBEKIT_* environment variables, then
// explicit flag values. It finishes by re-initializing the global loggers
// with the final paths and level.
func Init(cfgFile, flagLogLevel string) error {
	v := viper.New()

	defaults := GetDefaultConfigPaths()
	v.SetDefault("capture.output_dir", defaults.OutputDir)
	v.SetDefault("capture.upstream_proxy", "")
	v.SetDefault("logging.level", defaults.LogLevel)
	v.SetDefault("logging.app_path", defaults.LogPathApp)
	v.SetDefault("logging.proxy_path", defaults.LogPathProxy)

	if cfgFile != "" {
		expandedCfgFile, err := expandTilde(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in config file path '%s': %v. Trying original path.\n", cfgFile, err)
			expandedCfgFile = cfgFile
		}
		v.SetConfigFile(expandedCfgFile)
		v.SetConfigType("yaml")
	} else {
		v.AddConfigPath(defaults.ConfigDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PROBEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	configUsedMsg := "Using default/environment configuration."
	readErr := v.ReadInConfig()
	if readErr == nil {
		configUsedMsg = fmt.Sprintf("Using config file: %s", v.ConfigFileUsed())
	} else {
		if _, ok := readErr.(viper.ConfigFileNotFoundError); ok {
			if cfgFile != "" {
				fmt.Fprintf(os.Stderr, "Warning: Config file specified by flag (%s) not found: %v\n", cfgFile, readErr)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", v.ConfigFileUsed(), readErr)
		}
	}

	if err := v.Unmarshal(&AppConfig); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if flagLogLevel != "" {
		AppConfig.Logging.Level = strings.ToUpper(flagLogLevel)
	}

	var err error
	AppConfig.Capture.OutputDir, err = expandTilde(AppConfig.Capture.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not expand tilde in capture.output_dir '%s': %v.\n", AppConfig.Capture.OutputDir, err)
	}

	if err := logger.InitGlobalLoggers(AppConfig.Logging.AppPath, AppConfig.Logging.ProxyPath, AppConfig.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize global loggers with final config: %w", err)
	}

	logger.Info(configUsedMsg)
	return nil
}
