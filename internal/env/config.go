package env

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Host     string `env:"EXAR_HOST,default=127.0.0.1"`
	Port     int    `env:"EXAR_PORT,default=38580"`
	Username string `env:"EXAR_USERNAME,default=admin"`
	Password string `env:"EXAR_PASSWORD,default=secret"`

	DialTimeout time.Duration `env:"EXAR_DIAL_TIMEOUT,default=10s"`

	LogLevel  string `env:"EXAR_LOG_LEVEL,default=info"`
	DebugHTTP bool   `env:"EXAR_DEBUG_HTTP"`

	// Trace logs every chunk read from and written to the server
	Trace bool `env:"EXAR_TRACE"`
}

// Addr is the host:port of the Exar server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadConfig reads the config from the environment, after loading
// .env.local if there is one.
func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom reads the config from lookuper only.
func LoadConfigFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}
