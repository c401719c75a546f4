package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// FiberResponseWriter adapts Fiber's context to http.ResponseWriter so
// standard net/http handlers (the Prometheus exposition handler in
// particular) can serve responses through a Fiber route.
type FiberResponseWriter struct {
	ctx    *fiber.Ctx
	status int
	header http.Header
}

// NewFiberResponseWriter creates a new FiberResponseWriter adapter
func NewFiberResponseWriter(ctx *fiber.Ctx) *FiberResponseWriter {
	return &FiberResponseWriter{
		ctx:    ctx,
		status: 200,
		header: make(http.Header),
	}
}

// Header returns the header map that will be sent by WriteHeader
func (w *FiberResponseWriter) Header() http.Header {
	return w.header
}

// Write writes the data to the connection as part of an HTTP reply
func (w *FiberResponseWriter) Write(data []byte) (int, error) {
	for key, values := range w.header {
		for _, value := range values {
			w.ctx.Set(key, value)
		}
	}

	if w.status != 200 {
		w.ctx.Status(w.status)
	}

	return w.ctx.Write(data)
}

// WriteHeader sends an HTTP response header with the provided status code
func (w *FiberResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}
