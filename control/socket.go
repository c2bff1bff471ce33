package control

import (
	"encoding/json"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	websocket "github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"

	pubsubmutex "github.com/jonoton/vigil/pubsubMutex"
)

// Timing is the per frame stage timing streamed to websocket clients
type Timing struct {
	Task       string             `json:"task"`
	FrameIndex int64              `json:"frame_index"`
	EpochMs    int64              `json:"epoch_ms"`
	Skipped    bool               `json:"skipped"`
	StagesMs   map[string]float64 `json:"stages_ms"`
	TotalMs    float64            `json:"total_ms"`
}

// NewTiming converts stage durations into a Timing
func NewTiming(task string, frameIndex int64, epochMs int64, skipped bool, durations map[string]time.Duration) Timing {
	t := Timing{
		Task:       task,
		FrameIndex: frameIndex,
		EpochMs:    epochMs,
		Skipped:    skipped,
		StagesMs:   make(map[string]float64, len(durations)),
	}
	for name, d := range durations {
		ms := float64(d.Microseconds()) / 1000
		t.StagesMs[name] = ms
		t.TotalMs += ms
	}
	return t
}

// TimingTopic is the pubsub topic carrying Timing for task
func TimingTopic(task string) string {
	return "timing/" + task
}

// runSocket reads until the peer goes away, closing socketClosed, while send writes.
// cleanup runs once send returns.
func runSocket(c *websocket.Conn, socketClosed chan bool, receive func(int, []byte), send func(*websocket.Conn), cleanup func()) {
	go func() {
	Loop:
		for {
			if c.Conn == nil {
				break Loop
			}
			msgType, data, err := c.ReadMessage()
			if err != nil {
				break Loop
			}
			if receive != nil {
				receive(msgType, data)
			}
		}
		close(socketClosed)
	}()
	if send != nil {
		send(c)
	}
	if cleanup != nil {
		cleanup()
	}
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("task", c.Params("task"))
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (s *Server) timingSocket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		task, _ := c.Locals("task").(string)
		sub, err := pubsubmutex.Subscribe[Timing](s.hub, TimingTopic(task))
		if err != nil {
			log.Warnln("Timing socket for", task, "not opened:", err)
			return
		}
		log.Debugln("Timing socket opened for", task)
		socketClosed := make(chan bool)
		send := func(c *websocket.Conn) {
		Loop:
			for {
				select {
				case <-socketClosed:
					break Loop
				case cur, ok := <-sub.C():
					if !ok {
						break Loop
					}
					data, err := json.Marshal(cur)
					if err != nil {
						log.Errorln("Timing marshal:", err)
						continue
					}
					if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
						break Loop
					}
				}
			}
		}
		cleanup := func() {
			sub.Close()
			log.Debugln("Timing socket closed for", task)
		}
		runSocket(c, socketClosed, nil, send, cleanup)
	})
}
