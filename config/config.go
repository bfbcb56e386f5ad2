package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

const (
	configDir  = "autopair"
	configFile = "autopair.conf"
)

// Config describes the configuration for the app.
type Config struct {
	path string
	file *file.File

	Values Values

	mu sync.Mutex
}

// NewConfig returns a new configuration.
func NewConfig() *Config {
	return &Config{}
}

// Load loads the configuration from the configuration file and the command-line flags.
func (c *Config) Load(k *koanf.Koanf, cliCtx *cli.Context) error {
	if err := c.createConfigDir(); err != nil {
		return err
	}

	cfgfile, err := c.FilePath(configFile)
	if err != nil {
		return err
	}

	c.file = file.Provider(cfgfile)
	if err := k.Load(c.file, hjson.Parser()); err != nil {
		return err
	}

	if cliCtx != nil {
		if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
			return err
		}
	}

	return k.UnmarshalWithConf("", &c.Values, koanf.UnmarshalConf{Tag: "koanf"})
}

// ValidateValues validates the configuration values.
func (c *Config) ValidateValues() error {
	return c.Values.validateValues()
}

// Watch watches the configuration file for changes. On every change, the file is
// reloaded and validated, and onChange is called with the new values or an error.
// Values set via command-line flags are not reloaded.
func (c *Config) Watch(onChange func(Values, error)) error {
	if c.file == nil {
		return fmt.Errorf("the configuration is not loaded")
	}

	return c.file.Watch(func(_ any, err error) {
		if err != nil {
			onChange(Values{}, err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		k := koanf.New(".")
		if err := k.Load(c.file, hjson.Parser()); err != nil {
			onChange(Values{}, err)
			return
		}

		var values Values
		if err := k.UnmarshalWithConf("", &values, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			onChange(Values{}, err)
			return
		}

		if err := values.validateValues(); err != nil {
			onChange(Values{}, err)
			return
		}

		onChange(values, nil)
	})
}

// Unwatch stops watching the configuration file.
func (c *Config) Unwatch() error {
	if c.file == nil {
		return nil
	}

	return c.file.Unwatch()
}

// createConfigDir checks for and/or creates a configuration directory.
func (c *Config) createConfigDir() error {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	type configDirPath struct {
		path, fullpath        string
		hidden, prefixHomeDir bool
	}

	configPaths := []*configDirPath{
		{path: os.Getenv("XDG_CONFIG_HOME")},
		{path: ".config", prefixHomeDir: true},
		{path: ".", hidden: true, prefixHomeDir: true},
	}

	for _, dir := range configPaths {
		name := configDir

		if dir.path == "" {
			continue
		}

		if dir.hidden {
			name = "." + name
		}

		if dir.prefixHomeDir {
			dir.path = filepath.Join(homedir, dir.path)
		}

		dir.fullpath = filepath.Join(dir.path, name)
		if _, err := os.Stat(filepath.Clean(dir.fullpath)); err == nil {
			c.path = dir.fullpath
			break
		}
	}

	if c.path != "" {
		return nil
	}

	var pathErrors []string

	for _, dir := range configPaths {
		if dir.fullpath == "" {
			continue
		}

		if err := os.MkdirAll(dir.fullpath, os.ModePerm); err == nil {
			c.path = dir.fullpath
			return nil
		}

		pathErrors = append(pathErrors, dir.fullpath)
	}

	return fmt.Errorf("the configuration directories could not be created at %s%s", "\n", strings.Join(pathErrors, "\n"))
}

// FilePath returns the absolute path for the given configuration file.
func (c *Config) FilePath(configFile string) (string, error) {
	confPath := filepath.Join(c.path, configFile)

	if _, err := os.Stat(confPath); err != nil {
		fd, err := os.Create(confPath)
		if err != nil {
			return "", fmt.Errorf("cannot create "+configFile+" file at %s", confPath)
		}

		fd.Close()
	}

	return confPath, nil
}

// GenerateAndSave generates and updates the configuration.
// Any existing values are kept.
func (c *Config) GenerateAndSave(currentCfg *koanf.Koanf) error {
	data, err := hjson.Parser().Marshal(currentCfg.All())
	if err != nil {
		return err
	}

	conf, err := c.FilePath(configFile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(conf, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Write(data); err != nil {
		return err
	}

	return f.Sync()
}
