package gateway

import (
	"encoding/json"
	"net/http"
)

type statusResponse struct {
	OK        bool           `json:"ok"`
	Buffers   []bufferStatus `json:"buffers"`
	Artifacts []artifactInfo `json:"artifacts"`
}

type bufferStatus struct {
	Key       string `json:"key"`
	Fragments int    `json:"fragments"`
}

type artifactInfo struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{OK: true, Buffers: []bufferStatus{}, Artifacts: []artifactInfo{}}
	for _, st := range s.digester.Store().Status() {
		resp.Buffers = append(resp.Buffers, bufferStatus{Key: st.Key, Fragments: st.Count})
	}
	for _, a := range s.digester.Artifacts() {
		resp.Artifacts = append(resp.Artifacts, artifactInfo{Key: a.Key, URL: a.URL})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
