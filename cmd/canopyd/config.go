package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/canopyio/canopy"
)

// Config is the daemon configuration read from the JSON config file.
type Config struct {
	WebSocket struct {
		Address      string `json:"address"`
		OutQueueSize int    `json:"out_queue_size"`
	} `json:"websocket"`

	// MetricsAddress, when set, serves prometheus metrics at
	// http://<address>/metrics.
	MetricsAddress string `json:"metrics_address"`

	LogLevel string `json:"log_level"`
	Router   canopy.Config `json:"router"`
}

// LoadConfig reads and parses the daemon configuration file.
func LoadConfig(path string) *Config {
	file, err := os.ReadFile(path)
	if err != nil {
		log.Fatal("Config file missing. ", err)
	}

	var config Config
	if err = json.Unmarshal(file, &config); err != nil {
		log.Fatal("Config parse error: ", err)
	}
	if config.Router.DefaultRealm == "" && len(config.Router.Realms) == 0 {
		config.Router.DefaultRealm = "default"
	}
	return &config
}
