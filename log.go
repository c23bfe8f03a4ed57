package rangeql

import (
	"os"

	"github.com/sirupsen/logrus"
)

const debugLogKey = "RANGEQL_DEBUG"

func init() {
	if _, ok := os.LookupEnv(debugLogKey); ok {
		logrus.SetLevel(logrus.DebugLevel)
	}
}
