package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// configAPI serves the runtime part of the configuration stored in file.
type configAPI struct {
	file string
}

// ConfigHandler serves /api/config: GET returns the runtime settings as
// JSON, POST replaces them. A POST is validated against the complete
// configuration and only then written back to cfile, where the file watch
// picks it up.
func ConfigHandler(cfile string) http.HandlerFunc {
	api := configAPI{file: cfile}
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Config API request", "method", r.Method, "remote", r.RemoteAddr)
		switch r.Method {
		case http.MethodGet:
			api.get(w)
		case http.MethodPost:
			api.post(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// fail logs err and answers with status and msg.
func fail(w http.ResponseWriter, status int, msg string, err error) {
	slog.Warn("Config API request failed", "status", status, "error", err)
	http.Error(w, msg, status)
}

func (a configAPI) get(w http.ResponseWriter) {
	// the file is the source of truth, it may have been edited by hand
	conf, err := ReadConfig(a.file)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to read configuration", err)
		return
	}
	body, err := json.Marshal(conf.Runtime())
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to serialize configuration", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (a configAPI) post(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var update RuntimeConfig
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	conf, err := ReadConfig(a.file)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to read configuration", err)
		return
	}
	conf.ApplyRuntime(update)
	if err := conf.Validate(); err != nil {
		fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid configuration: %v", err), err)
		return
	}

	data, err := yaml.Marshal(&conf)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to encode configuration", err)
		return
	}
	if err := os.WriteFile(a.file, data, 0o644); err != nil {
		fail(w, http.StatusInternalServerError, "Failed to save configuration", err)
		return
	}

	slog.Info("Runtime configuration updated", "file", a.file)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Configuration updated.")
}
