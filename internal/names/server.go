package names

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

type NamesServer struct {
	names Names
}

func NewNamesServer(names Names) *NamesServer {
	return &NamesServer{
		names: names,
	}
}

func (s *NamesServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /names/{name}", s.handleGet)
	mux.HandleFunc("PUT /names/{name}", s.handlePut)
	mux.HandleFunc("DELETE /names/{name}", s.handleDelete)

	return mux
}

func (s *NamesServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

func (s *NamesServer) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := s.names.Get(r.PathValue("name"))
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", strconv.Quote(record.Address))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (s *NamesServer) handlePut(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var record Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if record.Address == "" || record.Size < 0 {
		http.Error(w, "Bad Request: missing address", http.StatusBadRequest)
		return
	}

	if err := s.names.Put(r.PathValue("name"), record); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", strconv.Quote(record.Address))
	w.WriteHeader(http.StatusOK)
}

func (s *NamesServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	expected := r.Header.Get("If-Match")
	if unquoted, err := strconv.Unquote(expected); err == nil {
		expected = unquoted
	}

	err := s.names.Delete(r.PathValue("name"), expected)
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, ErrPreconditionFailed):
		http.Error(w, "Precondition Failed", http.StatusPreconditionFailed)
	case err != nil:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
