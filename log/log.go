package log

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("STAGEPIPE_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance. It logs at debug level when STAGEPIPE_DEBUG is true.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// New returns a logger with the given level and format ("text" or "json"). Empty values keep the
// GetLogger defaults.
func New(level, format string) (*logrus.Logger, error) {
	l := GetLogger()
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		l.SetLevel(lvl)
	}
	switch format {
	case "", "text":
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return l, nil
}
