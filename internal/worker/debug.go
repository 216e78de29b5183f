package worker

import (
	"fmt"
	"os"
	"strings"

	"promptmaster/internal/observability"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("PROMPTMASTER_WORKER_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if workerDebugEnabled {
		observability.Logger().Info(fmt.Sprintf(format, args...), "component", "worker")
	}
}
