package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/app/data/termix.db"`
	LogPath      string `envconfig:"LOG_PATH" default:""`

	// HostsFile is an optional YAML inventory imported into the host store
	// at startup. Empty means no bootstrap.
	HostsFile string `envconfig:"HOSTS_FILE" default:""`

	// Tail session settings
	SSHConnectTimeout string `envconfig:"SSH_CONNECT_TIMEOUT" default:"30s"`
	DefaultTailLines  int    `envconfig:"DEFAULT_TAIL_LINES" default:"200"`
	MaxTailLines      int    `envconfig:"MAX_TAIL_LINES" default:"2000"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("TERMIX", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
