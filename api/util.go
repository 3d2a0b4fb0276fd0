package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FundProjects/fundnova"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/schema"
)

var decoder *schema.Decoder

func init() {
	decoder = schema.NewDecoder()
	decoder.SetAliasTag("json")
	decoder.IgnoreUnknownKeys(true)
}

// parseRequest decodes form/query parameters into args.
func parseRequest(r *http.Request, args any) error {
	if err := r.ParseForm(); err != nil {
		return fundnova.Statusf(400, "Couldn't parse form: %v", err)
	}
	if err := decoder.Decode(args, r.Form); err != nil {
		return fundnova.Statusf(400, "Invalid request parameters: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	return id, err == nil && id > 0
}

func returnData(w http.ResponseWriter, retData any) {
	statusData(w, "success", retData, 200)
}

func statusData(w http.ResponseWriter, status string, retData any, statusCode int) {
	if err, ok := retData.(error); ok {
		retData = err.Error()
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Data   any    `json:"data"`
	}{
		Status: status,
		Data:   retData,
	})
	if err != nil {
		slog.Warn("Couldn't send return data", slog.Any("err", err))
	}
}

func errorData(w http.ResponseWriter, retData any, errCode int) {
	statusData(w, "error", retData, errCode)
}

func statusError(w http.ResponseWriter, err error) {
	errorData(w, err, fundnova.ErrorCode(err))
}
