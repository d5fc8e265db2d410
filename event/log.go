package event

import (
	"github.com/sirupsen/logrus"
)

// Log is the logger shared by all packages.
var Log = logrus.StandardLogger()

func init() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// SetDebug switches between info and debug verbosity.
func SetDebug(debug bool) {
	if debug {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}
