// Package handlers exposes serve mode: a capture-upload endpoint and a
// WebSocket stream of decoded packets and analysis results.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"

	"pcapscope/internal/engine"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, srv *engine.Server, maxUploadBytes int64) {
	mux.HandleFunc("/ws", HandleWebSocket(srv))
	mux.HandleFunc("/api/analyze", handleAnalyze(srv, maxUploadBytes))
	mux.HandleFunc("/api/analysis", handleLastAnalysis(srv))
}

// handleAnalyze accepts a multipart capture upload, runs the analysis
// pipeline on it, and responds with the result. Decoded packets stream to
// WebSocket clients as a side effect.
func handleAnalyze(srv *engine.Server, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, "File too large", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// The container reader wants a file path; spool the upload to disk.
		tmpFile, err := os.CreateTemp("", "pcapscope-*.pcap")
		if err != nil {
			http.Error(w, "Failed to create temp file", http.StatusInternalServerError)
			return
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := io.Copy(tmpFile, file); err != nil {
			tmpFile.Close()
			http.Error(w, "Failed to save file", http.StatusInternalServerError)
			return
		}
		tmpFile.Close()

		analysis, err := srv.AnalyzeFile(tmpPath, header.Filename)
		if err != nil {
			http.Error(w, "Failed to analyze capture: "+err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, analysis)
	}
}

func handleLastAnalysis(srv *engine.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analysis := srv.LastAnalysis()
		if analysis == nil {
			http.Error(w, "No analysis yet", http.StatusNotFound)
			return
		}
		writeJSON(w, analysis)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
