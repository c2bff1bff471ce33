package stage

import (
	"bytes"

	"gopkg.in/yaml.v2"
)

// Record is the persisted config of one stage
type Record struct {
	Identity Identity `yaml:"implementation"`
	Params   Params   `yaml:"parameters"`
}

// NewRecord captures the current identity and settings of s
func NewRecord(s Stage) Record {
	return Record{
		Identity: s.Identity(),
		Params:   s.Settings(),
	}
}

// Marshal encodes the record as yaml, keys sorted
func (r Record) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}

// UnmarshalRecord decodes a yaml record
func UnmarshalRecord(data []byte) (r Record, err error) {
	err = yaml.Unmarshal(data, &r)
	if r.Params == nil {
		r.Params = make(Params)
	}
	return
}

// Unchanged reports whether both records encode to identical bytes
func Unchanged(a, b Record) bool {
	encA, errA := a.Marshal()
	encB, errB := b.Marshal()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(encA, encB)
}
