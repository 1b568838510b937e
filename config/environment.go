package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"

	// DefaultPath is the config file looked up when none is given.
	DefaultPath = "config.yml"
)

var environmentAliases = map[string]string{
	"dev":  environmentDevelopment,
	"prod": environmentProduction,
	"stag": environmentStaging,
}

// AppEnvironment reads APP_ENV, normalizing aliases; development when unset.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// ResolvePath picks the config file to load. An explicit path wins. For the
// default path, config.<env>.yml next to it is preferred when present, and a
// missing default file yields "" so the built-in defaults apply.
func ResolvePath(path string) string {
	if path != "" && path != DefaultPath {
		return path
	}
	ext := filepath.Ext(DefaultPath)
	envPath := strings.TrimSuffix(DefaultPath, ext) + "." + AppEnvironment() + ext
	if fileExists(envPath) {
		return envPath
	}
	if fileExists(DefaultPath) {
		return DefaultPath
	}
	return ""
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
