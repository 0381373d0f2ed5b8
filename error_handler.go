package ghostrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type ErrorHandler interface {
	Fatal(from string, err error)
}

// PanicErrorHandler dumps what is known about the stream position and the
// dispatch counters, then panics.
type PanicErrorHandler struct {
	Streamer   *BinlogStreamer
	Dispatcher *Dispatcher
	Routes     *RouteTable

	// Defaults to stdout.
	DumpTo io.Writer
}

func (this *PanicErrorHandler) Fatal(from string, err error) {
	logger := logrus.WithField("tag", "error_handler")

	logger.WithError(err).WithField("errfrom", from).Error("fatal error detected, state dump coming in stdout")

	state := this.State()

	out := this.DumpTo
	if out == nil {
		out = os.Stdout
	}

	stateBytes, jsonErr := json.MarshalIndent(state, "", "  ")
	if jsonErr != nil {
		logger.WithError(jsonErr).Error("failed to dump state, trying dump via logger")
		logger.WithFields(logrus.Fields(state)).Error("state dump")
	} else {
		fmt.Fprintln(out, string(stateBytes))
	}

	panic("fatal error detected, see logs for details")
}

func (this *PanicErrorHandler) State() map[string]interface{} {
	state := make(map[string]interface{})

	if this.Streamer != nil {
		state["LastStreamedBinlogPos"] = this.Streamer.GetLastStreamedBinlogPosition()
	}

	if this.Dispatcher != nil {
		state["DispatchStats"] = this.Dispatcher.Stats()
	}

	if this.Routes != nil {
		if generation, ok := this.Routes.Generation(); ok {
			state["RouteGeneration"] = generation.ID
		}
	}

	return state
}
