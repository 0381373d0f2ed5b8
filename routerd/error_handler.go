package routerd

import (
	"encoding/json"
	"net/http"

	"github.com/Shopify/ghostrouter"
	"github.com/sirupsen/logrus"
)

// CallbackErrorHandler notifies ErrorCallback before handing the error to
// the wrapped ErrorHandler.
type CallbackErrorHandler struct {
	ghostrouter.ErrorHandler
	ErrorCallback ghostrouter.HTTPCallback
	Client        *http.Client
	Logger        *logrus.Entry
}

func (this *CallbackErrorHandler) Fatal(from string, err error) {
	if this.Logger == nil {
		this.Logger = logrus.WithField("tag", "error_handler")
	}

	client := this.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	errorData := make(map[string]string)
	errorData["ErrFrom"] = from
	errorData["ErrMessage"] = err.Error()

	errorDataBytes, jsonErr := json.MarshalIndent(errorData, "", "  ")
	if jsonErr != nil {
		this.Logger.WithError(jsonErr).Error("failed to marshal error data")
	} else {
		callback := this.ErrorCallback
		callback.Payload = string(errorDataBytes)

		if postErr := callback.Post(client); postErr != nil {
			this.Logger.WithError(postErr).Error("failed to notify error")
		}
	}

	this.ErrorHandler.Fatal(from, err)
}
