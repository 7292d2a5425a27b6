package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	BlobDir        string `env:"BLOB_DIR,required=true"`
	BlobBaseURL    string `env:"BLOB_BASE_URL,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	BufferSize      int           `env:"BUFFER_SIZE,required=true"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`

	SearchBatchSize     int           `env:"SEARCH_BATCH_SIZE,required=true"`
	SearchBufferTimeout time.Duration `env:"SEARCH_BUFFER_TIMEOUT,required=true"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	DebugPort int `env:"DEBUG_PORT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
