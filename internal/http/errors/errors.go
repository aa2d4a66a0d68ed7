package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/ramify/internal/observability/logger"
)

// errorResponse es el envelope que ve el cliente: code estable para
// machear programáticamente, message humano, detail opcional. La causa
// interna nunca viaja en el body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError serializa err como envelope. Errores no tipados se
// normalizan a 500; la causa de un 5xx se loguea acá para que ningún
// handler tenga que acordarse de hacerlo.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError && appErr.Err != nil {
		logger.L().Error("request failed",
			logger.Op("http.error"),
			logger.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
