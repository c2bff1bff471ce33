package control

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v2"
)

// Config Constants
var (
	ConfigFilename = "control.yaml"
)

// UserPassword contains the username and bcrypt password hash
type UserPassword struct {
	User         string `yaml:"user"`
	PasswordHash string `yaml:"passwordHash"`
}

// Config contains the parameters for the control server
type Config struct {
	Host             string         `yaml:"host,omitempty"`
	Port             int            `yaml:"port,omitempty"`
	LimitPerSecond   int            `yaml:"limitPerSecond,omitempty"`
	RequestTimeoutMs int            `yaml:"requestTimeoutMs,omitempty"`
	Users            []UserPassword `yaml:"users,omitempty"`
	SignInExpireDays int            `yaml:"signInExpireDays,omitempty"`
}

// NewConfig creates a new Config, nil when missing or invalid
func NewConfig(configPath string) *Config {
	c := &Config{}
	yamlFile, err := os.ReadFile(configPath)
	if err != nil {
		log.Infof("control config not loaded: %v", err)
		return nil
	}
	err = yaml.Unmarshal(yamlFile, c)
	if err != nil {
		log.Errorf("Unmarshal: %v", err)
		return nil
	}
	return c
}

func (c *Config) address() string {
	host := "127.0.0.1"
	port := 8080
	if c != nil && c.Host != "" {
		host = c.Host
	}
	if c != nil && c.Port > 0 {
		port = c.Port
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func (c *Config) limitPerSecond() int {
	if c != nil && c.LimitPerSecond > 0 {
		return c.LimitPerSecond
	}
	return 100
}

func (c *Config) requestTimeout() time.Duration {
	if c != nil && c.RequestTimeoutMs > 0 {
		return time.Duration(c.RequestTimeoutMs) * time.Millisecond
	}
	return 5 * time.Second
}

func (c *Config) signInExpire() time.Duration {
	days := 7
	if c != nil && c.SignInExpireDays > 0 {
		days = c.SignInExpireDays
	}
	return time.Hour * 24 * time.Duration(days)
}

func (c *Config) loginNeeded() bool {
	return c != nil && len(c.Users) > 0
}

// HashPassword returns the bcrypt hash to store in PasswordHash
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (c *Config) validUser(user string, password string) bool {
	if c == nil || user == "" || password == "" {
		return false
	}
	for _, cur := range c.Users {
		if cur.User != user {
			continue
		}
		return bcrypt.CompareHashAndPassword([]byte(cur.PasswordHash), []byte(password)) == nil
	}
	return false
}
