package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. The default level is chosen by
// the binary that calls it: the CLI stays quiet (errors only), the relay
// server runs at info. LOG_LEVEL overrides either.
func Init(defaultLevel logrus.Level) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := defaultLevel

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = logrus.DebugLevel
		case "info":
			level = logrus.InfoLevel
		case "warn", "warning":
			level = logrus.WarnLevel
		case "error", "production", "prod":
			level = logrus.ErrorLevel
		}
	}

	logrus.SetLevel(level)
}
