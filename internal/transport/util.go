package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

func muxVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func readMultipartFile(r *http.Request, field string, maxMemory int64) (io.ReadCloser, string, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	return file, header.Filename, nil
}
