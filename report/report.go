package report

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"
)

// Reporter publishes frame and final summaries to an MQTT broker
type Reporter struct {
	task      string
	topic     string
	qos       byte
	skipped   bool
	timeout   time.Duration
	enabled   bool
	client    mqtt.Client
	send      func(topic string, payload []byte) error
	logger    *log.Entry
	archive   string
	published uint64
	dropped   uint64
}

// NewReporter creates a new Reporter, disabled when conf has no broker
func NewReporter(conf *Config, task string, logger *log.Entry) *Reporter {
	r := &Reporter{
		task:    task,
		topic:   "vigil",
		timeout: 5 * time.Second,
		logger:  logger,
	}
	if conf != nil {
		r.archive = conf.Archive
	}
	if conf == nil || conf.Broker == "" {
		return r
	}
	r.enabled = true
	if conf.Topic != "" {
		r.topic = conf.Topic
	}
	if conf.QoS > 0 && conf.QoS <= 2 {
		r.qos = byte(conf.QoS)
	}
	if conf.TimeoutMs > 0 {
		r.timeout = time.Duration(conf.TimeoutMs) * time.Millisecond
	}
	r.skipped = conf.PublishSkipped
	clientID := conf.ClientID
	if clientID == "" {
		clientID = "vigil-" + task
	}
	opts := mqtt.NewClientOptions().AddBroker(conf.Broker)
	opts.SetClientID(clientID)
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		r.logger.Infoln("Report connected to", conf.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		r.logger.Warnln("Report connection lost:", err)
	}
	r.client = mqtt.NewClient(opts)
	r.send = r.publish
	return r
}

// Enabled returns whether summaries are published
func (r *Reporter) Enabled() bool {
	return r.enabled
}

// Connect connects to the broker, nothing to do when disabled
func (r *Reporter) Connect() error {
	if !r.enabled || r.client == nil {
		return nil
	}
	token := r.client.Connect()
	if !token.WaitTimeout(r.timeout) {
		return fmt.Errorf("report connect to broker timed out")
	}
	return token.Error()
}

func (r *Reporter) publish(topic string, payload []byte) error {
	token := r.client.Publish(topic, r.qos, false, payload)
	if r.qos == 0 {
		return nil
	}
	if !token.WaitTimeout(r.timeout) {
		return fmt.Errorf("report publish to %s timed out", topic)
	}
	return token.Error()
}

// Encode returns v as json
func Encode(v interface{}) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	// the client holds the payload after Publish returns
	return append([]byte(nil), buf.B...), nil
}

func (r *Reporter) emit(suffix string, v interface{}) bool {
	if !r.enabled || r.send == nil {
		return false
	}
	payload, err := Encode(v)
	if err != nil {
		r.logger.Errorln("Report encode:", err)
		atomic.AddUint64(&r.dropped, 1)
		return false
	}
	if err := r.send(r.topic+"/"+r.task+"/"+suffix, payload); err != nil {
		r.logger.Warnln("Report dropped:", err)
		atomic.AddUint64(&r.dropped, 1)
		return false
	}
	atomic.AddUint64(&r.published, 1)
	return true
}

// Frame publishes a frame summary, skipped frames only when configured
func (r *Reporter) Frame(s FrameSummary) bool {
	if s.Skipped && !r.skipped {
		return false
	}
	return r.emit("frames", s)
}

// Final publishes the end of stream summary, archiving it when configured
func (r *Reporter) Final(s FinalSummary) bool {
	if r.archive != "" {
		if _, err := Archive(r.archive, s); err != nil {
			r.logger.Warnln("Report archive:", err)
		}
	}
	return r.emit("summary", s)
}

// Counts returns the published and dropped totals
func (r *Reporter) Counts() (published uint64, dropped uint64) {
	return atomic.LoadUint64(&r.published), atomic.LoadUint64(&r.dropped)
}

// Close disconnects from the broker
func (r *Reporter) Close() {
	if r.client != nil && r.client.IsConnected() {
		r.client.Disconnect(250)
	}
}
