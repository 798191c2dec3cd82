package request

import "net/http"

// ClientWriter wraps a http.ResponseWriter and remembers the status code that
// was written, defaulting to 200 when the handler never calls WriteHeader.
type ClientWriter struct {
	http.ResponseWriter
	statusCode int
}

// NewClientWriter creates a new ClientWriter.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *ClientWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// StatusCode returns the status code that was written.
func (w *ClientWriter) StatusCode() int {
	return w.statusCode
}
