package report

// Config contains the parameters for the MQTT reporter, no broker disables it.
// Archive is a directory receiving gzipped final summaries.
type Config struct {
	Broker         string `yaml:"broker,omitempty"`
	ClientID       string `yaml:"clientId,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	Topic          string `yaml:"topic,omitempty"`
	QoS            int    `yaml:"qos,omitempty"`
	PublishSkipped bool   `yaml:"publishSkipped,omitempty"`
	TimeoutMs      int    `yaml:"timeoutMs,omitempty"`
	Archive        string `yaml:"archive,omitempty"`
}
