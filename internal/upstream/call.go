package upstream

import (
	"net/http"
)

// Call carries one HTTP request/response pair through the pipeline as an
// exchange body.
type Call struct {
	writer  *statusRecorder
	request *http.Request
}

// NewCall wraps the response writer and request of an in-flight HTTP
// request.
func NewCall(w http.ResponseWriter, r *http.Request) *Call {
	return &Call{
		writer:  &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK},
		request: r,
	}
}

// Request returns the client request.
func (c *Call) Request() *http.Request {
	return c.request
}

// StatusCode returns the status code written so far, defaulting to 200.
func (c *Call) StatusCode() int {
	return c.writer.statusCode
}

// Wrote reports whether anything has been written to the response yet.
func (c *Call) Wrote() bool {
	return c.writer.wrote
}

// Writer returns the response writer for this call.
func (c *Call) Writer() http.ResponseWriter {
	return c.writer
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.wrote = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}
