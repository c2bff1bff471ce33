package task

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/overlay"
	"github.com/jonoton/vigil/report"
	"github.com/jonoton/vigil/stage"
	"github.com/jonoton/vigil/videosource"
)

// Config contains the parameters for one Task
type Config struct {
	Selection      bundle.Selection        `yaml:"selection"`
	Filename       string                  `yaml:"filename,omitempty"`
	RTSP           *videosource.RTSPConfig `yaml:"rtsp,omitempty"`
	Threaded       bool                    `yaml:"threaded,omitempty"`
	Loop           bool                    `yaml:"loop,omitempty"`
	Start          string                  `yaml:"start,omitempty"`
	Timelapse      float64                 `yaml:"timelapse,omitempty"`
	ResetOnStartup *bool                   `yaml:"resetOnStartup,omitempty"`
	StatsSeconds   int                     `yaml:"statsSeconds,omitempty"`
	Background     stage.Record            `yaml:"background,omitempty"`
	Report         *report.Config          `yaml:"report,omitempty"`
	Overlay        *overlay.Config         `yaml:"overlay,omitempty"`
}

// NewConfig creates a new Config
func NewConfig(configPath string) *Config {
	c := &Config{}
	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		log.Errorf("task config %s not loaded: %v", configPath, err)
		return nil
	}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		log.Errorf("Unmarshal %s: %v", configPath, err)
		return nil
	}
	return c
}

// NewSource builds the video source named by c
func (c *Config) NewSource(name string, opener videosource.Opener) (videosource.VideoSource, error) {
	start, err := videosource.ParseStart(c.Start)
	if err != nil {
		return nil, err
	}
	timelapse := c.Timelapse
	if timelapse <= 0 {
		timelapse = 1
	}
	timekeeper := videosource.NewTimekeeper(start, timelapse)
	switch {
	case c.RTSP != nil:
		if err := c.RTSP.Validate(); err != nil {
			return nil, err
		}
		return videosource.NewRTSPSource(name, *c.RTSP, opener, timekeeper), nil
	case c.Filename != "" && c.Threaded:
		s := videosource.NewThreadedFileSource(name, c.Filename, opener, timekeeper)
		s.Loop = c.Loop
		return s, nil
	case c.Filename != "":
		return videosource.NewFileSource(name, c.Filename, opener, timekeeper), nil
	}
	return nil, fmt.Errorf("task %s has no filename or rtsp source", name)
}

func (c *Config) resetOnStartup() bool {
	if c.ResetOnStartup == nil {
		return true
	}
	return *c.ResetOnStartup
}
