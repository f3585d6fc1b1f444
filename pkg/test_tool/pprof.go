package testtool

import (
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"school_messaging_service/pkg/config"
	"school_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// PprofAddr loopback only; pprof must not be reachable from outside the host
const PprofAddr = "127.0.0.1:6060"

// StartPprof starts the pprof server when enabled and not in production.
func StartPprof(enabled bool) {
	if !enabled || config.IsProduction() {
		logger.Log.Info("pprof is disabled")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", PprofAddr))
		if err := http.ListenAndServe(PprofAddr, nil); err != nil {
			logger.Log.Errorf("pprof server failed:", err)
		}
	}()
}
