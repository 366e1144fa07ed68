package config

import (
	"os"

	"github.com/OpenPeeDeeP/xdg"
)

// DefaultConfigFile is the configuration document filename the CLI
// looks for when `--file`/`-f` is not given.
const DefaultConfigFile = "ikki.kdl"

// AppConfig is the runtime configuration of the process itself, as
// opposed to the parsed document.
type AppConfig struct {
	Debug       bool
	Version     string
	Commit      string
	BuildDate   string
	Name        string
	BuildSource string
	ConfigDir   string
	ProjectDir  string
	ConfigFile  string
}

// NewAppConfig builds the runtime config, creating the XDG config
// directory used for the development log.
func NewAppConfig(name, version, commit, date, buildSource string, debug bool, configFile, projectDir string) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	return &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debug || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		ConfigDir:   configDir,
		ProjectDir:  projectDir,
		ConfigFile:  configFile,
	}, nil
}

// findOrCreateConfigDir resolves the XDG config home for the process
// and ensures it exists.
func findOrCreateConfigDir(projectName string) (string, error) {
	configDirs := xdg.New("ikki-dev", projectName)
	dir := configDirs.ConfigHome()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
