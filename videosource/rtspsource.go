package videosource

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultReconnectBackoff is the wait between RTSP reconnect attempts
const DefaultReconnectBackoff = 10 * time.Second

// RTSPConfig describes an RTSP camera
type RTSPConfig struct {
	IP       string `yaml:"ip,omitempty" json:"ip"`
	Port     int    `yaml:"port,omitempty" json:"port"`
	Username string `yaml:"username,omitempty" json:"username"`
	Password string `yaml:"password,omitempty" json:"-"`
	Route    string `yaml:"route,omitempty" json:"route"`
}

// Validate checks the camera address
func (c RTSPConfig) Validate() error {
	if net.ParseIP(c.IP) == nil {
		return fmt.Errorf("invalid rtsp ip %q", c.IP)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid rtsp port %d", c.Port)
	}
	return nil
}

// URL builds the stream url
func (c RTSPConfig) URL() string {
	port := c.Port
	if port == 0 {
		port = 554
	}
	u := url.URL{
		Scheme: "rtsp",
		Host:   net.JoinHostPort(c.IP, strconv.Itoa(port)),
		Path:   "/" + strings.TrimPrefix(c.Route, "/"),
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}

// RTSPSource is a live camera source that reconnects on read failure
type RTSPSource struct {
	BaseVideo
	config     RTSPConfig
	Backoff    time.Duration
	Reconnects int
	guard      sync.Mutex
	done       chan bool
	doneOnce   sync.Once
}

// NewRTSPSource creates a new RTSPSource
func NewRTSPSource(name string, config RTSPConfig, opener Opener, timekeeper *Timekeeper) *RTSPSource {
	r := &RTSPSource{
		BaseVideo: *NewBaseVideo(name, config.URL(), opener, timekeeper),
		config:    config,
		Backoff:   DefaultReconnectBackoff,
		done:      make(chan bool),
	}
	return r
}

// Initialize implements interface.
// An unreachable camera is not an error, Read keeps reconnecting.
func (r *RTSPSource) Initialize() error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		log.Warnln("Could not open rtsp stream", r.name, r.config.IP, err)
		return nil
	}
	log.Infoln("Opened rtsp stream", r.name, r.config.IP, r.size, "fps", r.fps)
	return nil
}

// Read implements interface, it blocks until a frame arrives or Cleanup is called
func (r *RTSPSource) Read() (Frame, error) {
	for {
		r.guard.Lock()
		frame, ok := r.decode()
		r.guard.Unlock()
		if ok {
			frame.Index, frame.EpochMs, frame.Datetime = r.timekeeper.LiveTiming()
			return frame, nil
		}
		log.Warnln("Lost rtsp stream", r.name, r.config.IP)
		if !r.reconnect() {
			return doneFrame(), nil
		}
	}
}

func (r *RTSPSource) reconnect() bool {
	for {
		r.guard.Lock()
		r.release()
		r.guard.Unlock()
		select {
		case <-time.After(r.Backoff):
		case <-r.done:
			return false
		}
		r.Reconnects++
		r.guard.Lock()
		err := r.open()
		r.guard.Unlock()
		if err != nil {
			log.Warnln("Reconnect failed", r.name, r.config.IP, "attempt", r.Reconnects, err)
			continue
		}
		select {
		case <-r.done:
			r.guard.Lock()
			r.release()
			r.guard.Unlock()
			return false
		default:
		}
		log.Infoln("Reconnected rtsp stream", r.name, r.config.IP)
		return true
	}
}

// CurrentFrame implements interface
func (r *RTSPSource) CurrentFrame() int64 {
	return r.timekeeper.LiveIndex()
}

// SetCurrentFrame implements interface, live streams cannot seek
func (r *RTSPSource) SetCurrentFrame(index int64) error {
	log.Warnln("Ignoring seek on rtsp stream", r.name, "to", index)
	return nil
}

// Cleanup implements interface
func (r *RTSPSource) Cleanup() {
	r.doneOnce.Do(func() {
		close(r.done)
	})
	r.guard.Lock()
	defer r.guard.Unlock()
	r.release()
}
