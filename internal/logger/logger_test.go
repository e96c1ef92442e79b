package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	Init(Config{Level: "debug", Format: "json"}, buf)
	defer Init(Config{}, nil)

	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("want debug level, got %s", log.GetLevel())
	}
	Component("router").WithField("domain", "EASA").Debug("routed")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expect json line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "router" || line["domain"] != "EASA" || line["msg"] != "routed" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestInitUnknownLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	Init(Config{Level: "loud", Format: "text"}, buf)
	defer Init(Config{}, nil)

	if log.GetLevel() != log.InfoLevel {
		t.Errorf("want info level, got %s", log.GetLevel())
	}
	if _, ok := log.StandardLogger().Formatter.(*log.TextFormatter); !ok {
		t.Errorf("expect text formatter")
	}
}
