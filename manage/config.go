// manage package

package manage

import (
	"os"

	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"

	"github.com/jonoton/vigil/control"
	"github.com/jonoton/vigil/runtime"
)

// Config Constants
var (
	ConfigFilename = "vigil.yaml"
)

type taskEntry struct {
	Name       string `yaml:"name"`
	ConfigPath string `yaml:"config"`
}

// Config contains the parameters for Manage
type Config struct {
	Data        string      `yaml:"data,omitempty"`
	ControlPath string      `yaml:"control,omitempty"`
	HubCapacity int         `yaml:"hubCapacity,omitempty"`
	Tasks       []taskEntry `yaml:"tasks"`
}

// NewConfig creates a new Config
func NewConfig(configPath string) *Config {
	c := &Config{}
	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("yamlFile.Get err   #%v ", err)
		return nil
	}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		log.Printf("Unmarshal: %v", err)
		return nil
	}
	return c
}

// dataRoot is where stage records live, the config directory by default
func (c *Config) dataRoot() string {
	if c.Data == "" {
		return runtime.GetRuntimeDirectory(runtime.ConfigDirectory)
	}
	return runtime.Resolve(runtime.ConfigDirectory, c.Data)
}

func (c *Config) controlPath() string {
	if c.ControlPath == "" {
		return runtime.Resolve(runtime.ConfigDirectory, control.ConfigFilename)
	}
	return runtime.Resolve(runtime.ConfigDirectory, c.ControlPath)
}

func (c *Config) hubCapacity() int {
	if c.HubCapacity <= 0 {
		return 16
	}
	return c.HubCapacity
}

func (c *Config) entry(name string) (taskEntry, bool) {
	for _, cur := range c.Tasks {
		if cur.Name == name {
			return cur, true
		}
	}
	return taskEntry{}, false
}
