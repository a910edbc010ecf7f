package bus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the broker connection and the channels this device
// listens on. It mirrors the run configuration the classroom server hands
// out per section.
type Config struct {
	Broker      string   `yaml:"broker"`
	AppID       string   `yaml:"appId"`
	RunID       string   `yaml:"runId"`
	ComponentID string   `yaml:"componentId"`
	ResourceID  string   `yaml:"resourceId,omitempty"`
	Subscribes  []string `yaml:"subscribes"`
}

func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bus config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse bus config: %w", err)
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("bus config missing broker")
	}
	if len(cfg.Subscribes) == 0 {
		cfg.Subscribes = []string{
			ChannelNoteChanges,
			ChannelAllNotesWithGroup,
			ChannelAllNotesWithSpecies,
			ChannelGetCurrentRun,
			ChannelGetRoster,
			ChannelActivityAndRoom,
			ChannelChannelList,
			ChannelChannelNames,
			ChannelSpeciesNames,
			ChannelGetExperiments,
			ChannelGetAllExperiments,
		}
	}
	return &cfg, nil
}

// Topic namespaces a channel name under the app/run ids so multiple class
// runs can share one broker.
func (c *Config) Topic(channel string) string {
	return fmt.Sprintf("%s/%s/%s", c.AppID, c.RunID, channel)
}

// ChannelFromTopic inverts Topic; ok is false for topics outside this run.
func (c *Config) ChannelFromTopic(topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", c.AppID, c.RunID)
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", false
	}
	return topic[len(prefix):], true
}
