package control

import (
	"errors"
	"io"
	stdlog "log"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jonoton/vigil/bundle"
	"github.com/jonoton/vigil/memory"
	pubsubmutex "github.com/jonoton/vigil/pubsubMutex"
	"github.com/jonoton/vigil/stage"
)

// Server is the http control surface of the running tasks
type Server struct {
	config       *Config
	fiber        *fiber.App
	hub          *pubsubmutex.PubSubMutex
	tasks        map[string]*Queue
	guard        sync.RWMutex
	loginKey     string
	loginLogger  *stdlog.Logger
	accessLogger *stdlog.Logger
}

// NewServer creates a new Server, logDir empty disables the access logs
func NewServer(config *Config, hub *pubsubmutex.PubSubMutex, logDir string) *Server {
	s := &Server{
		config:       config,
		fiber:        fiber.New(fiber.Config{DisableStartupMessage: true}),
		hub:          hub,
		tasks:        make(map[string]*Queue),
		loginKey:     uuid.New().String(),
		loginLogger:  stdlog.New(io.Discard, "", 0),
		accessLogger: stdlog.New(io.Discard, "", 0),
	}
	if logDir != "" {
		s.loginLogger.SetOutput(rotating(filepath.Join(logDir, "logins")))
		s.accessLogger.SetOutput(rotating(filepath.Join(logDir, "access")))
	}
	s.setup()
	return s
}

func rotating(filename string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    1,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   false,
	}
}

// AddTask exposes the delta queue of a task
func (s *Server) AddTask(name string, q *Queue) {
	s.guard.Lock()
	defer s.guard.Unlock()
	s.tasks[name] = q
}

// TaskNames returns the exposed task names, sorted
func (s *Server) TaskNames() []string {
	s.guard.RLock()
	defer s.guard.RUnlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) queue(name string) (*Queue, bool) {
	s.guard.RLock()
	defer s.guard.RUnlock()
	q, found := s.tasks[name]
	return q, found
}

// App returns the fiber app
func (s *Server) App() *fiber.App {
	return s.fiber
}

func (s *Server) setup() {
	s.fiber.Use(limiter.New(limiter.Config{
		Expiration: 1 * time.Second,
		Max:        s.config.limitPerSecond(),
	}))
	s.fiber.Use(compress.New(compress.Config{Level: compress.LevelDefault}))

	s.fiber.Get("/heartbeat", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	if s.config.loginNeeded() {
		s.fiber.Post("/login", s.loginHandler)
		s.fiber.Use("/ws", tokenFromQuery)
		s.fiber.Use(s.loginMiddleware())
	}

	s.fiber.Get("/memory", func(c *fiber.Ctx) error {
		mem := memory.NewMemory()
		return c.JSON(fiber.Map{
			"heapAllocatedMB": int(memory.BytesToMegaBytes(mem.HeapAllocatedBytes)),
			"heapTotalMB":     int(memory.BytesToMegaBytes(mem.HeapTotalBytes)),
			"ramAppMB":        int(memory.BytesToMegaBytes(mem.RAMAppBytes)),
			"ramSystemMB":     int(memory.BytesToMegaBytes(mem.RAMSystemBytes)),
			"goroutines":      mem.Goroutines,
		})
	})

	s.fiber.Get("/tasks", func(c *fiber.Ctx) error {
		return c.JSON(s.TaskNames())
	})
	s.fiber.Get("/tasks/:task/stages", s.submit(func(c *fiber.Ctx) (*Delta, error) {
		return &Delta{Kind: List}, nil
	}))
	s.fiber.Get("/tasks/:task/stages/:stage", s.submit(func(c *fiber.Ctx) (*Delta, error) {
		return &Delta{Kind: Describe, Stage: c.Params("stage")}, nil
	}))
	s.fiber.Post("/tasks/:task/stages/:stage", s.submit(stageDelta))
	s.fiber.Post("/tasks/:task/stages/:stage/save", s.submit(func(c *fiber.Ctx) (*Delta, error) {
		return &Delta{Kind: Save, Stage: c.Params("stage")}, nil
	}))
	s.fiber.Post("/tasks/:task/seek/:frame", s.submit(func(c *fiber.Ctx) (*Delta, error) {
		frame, err := strconv.ParseInt(c.Params("frame"), 10, 64)
		if err != nil || frame < 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "frame must be a non negative integer")
		}
		return &Delta{Kind: Seek, Frame: frame}, nil
	}))
	s.fiber.Get("/tasks/:task/preview", s.preview)

	s.fiber.Use("/ws/timing/:task", upgradeOnly)
	s.fiber.Get("/ws/timing/:task", s.timingSocket())
}

// stageRequest is the body of a stage change, implementation set means override
type stageRequest struct {
	Implementation *stage.Identity `json:"implementation"`
	Parameters     stage.Params    `json:"parameters"`
}

func stageDelta(c *fiber.Ctx) (*Delta, error) {
	req := stageRequest{}
	if err := c.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	d := &Delta{Kind: Reconfigure, Stage: c.Params("stage"), Params: req.Parameters}
	if req.Implementation != nil {
		d.Kind = Override
		d.Identity = *req.Implementation
	}
	return d, nil
}

func (s *Server) ask(c *fiber.Ctx, d *Delta) (interface{}, error) {
	q, found := s.queue(c.Params("task"))
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound, "unknown task "+c.Params("task"))
	}
	v, err := q.Submit(d, s.config.requestTimeout())
	if err != nil {
		log.Debugln("Control", d.Kind, d.Stage, "failed:", err)
	}
	return v, err
}

func (s *Server) submit(build func(c *fiber.Ctx) (*Delta, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := build(c)
		if err != nil {
			return respondError(c, err)
		}
		v, err := s.ask(c, d)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"result": v})
	}
}

func (s *Server) preview(c *fiber.Ctx) error {
	width, _ := strconv.Atoi(c.Query("width"))
	v, err := s.ask(c, &Delta{Kind: Preview, Width: width})
	if err != nil {
		return respondError(c, err)
	}
	data, ok := v.([]byte)
	if !ok || len(data) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// StatusOf maps runner errors onto http status codes
func StatusOf(err error) int {
	var fe *fiber.Error
	var override *bundle.OverrideMismatchError
	var conf *bundle.ConfigurationError
	var stageErr *bundle.StageRuntimeError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, ErrQueueFull):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &override):
		return fiber.StatusConflict
	case errors.Is(err, stage.ErrUnknownStage):
		return fiber.StatusNotFound
	case errors.As(err, &conf):
		return fiber.StatusBadRequest
	case errors.Is(err, bundle.ErrNotSetup), errors.As(err, &stageErr):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(StatusOf(err)).JSON(fiber.Map{"error": err.Error()})
}

// Listen serves until Shutdown
func (s *Server) Listen() error {
	address := s.config.address()
	log.Infoln("Control listening on", address)
	return s.fiber.Listen(address)
}

// Shutdown stops the server
func (s *Server) Shutdown() error {
	return s.fiber.ShutdownWithTimeout(5 * time.Second)
}
