package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cuemby/ace/pkg/types"
)

// admissionError reports a basic-validation failure (spec.md §4.8:
// "presence of required fields, parse of numeric types"). It is never
// a cluster/table lookup failure — those surface from the worker.
type admissionError struct {
	msg string
}

func (e *admissionError) Error() string { return e.msg }

func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", &admissionError{msg: fmt.Sprintf("missing required parameter %q", name)}
	}
	return v, nil
}

func optionalParam(r *http.Request, name string) string {
	return r.URL.Query().Get(name)
}

func optionalBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &admissionError{msg: fmt.Sprintf("parameter %q must be a boolean", name)}
	}
	return b, nil
}

func optionalInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &admissionError{msg: fmt.Sprintf("parameter %q must be an integer", name)}
	}
	return n, nil
}

func optionalFloat(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &admissionError{msg: fmt.Sprintf("parameter %q must be a number", name)}
	}
	return f, nil
}

// optionalList parses a comma-separated query parameter into a slice,
// or nil if absent.
func optionalList(r *http.Request, name string) []string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeTaskError maps err to an HTTP status and {error} body: an
// admission error is always 400; a *types.Error carries its own
// HTTPStatus; anything else is 500.
func writeTaskError(w http.ResponseWriter, err error) {
	if _, ok := err.(*admissionError); ok {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ace, ok := err.(*types.Error); ok {
		writeError(w, ace.HTTPStatus(), ace.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
