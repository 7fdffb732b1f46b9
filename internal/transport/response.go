// SPDX-License-Identifier: MIT

package transport

import (
	"encoding/json"
	"net/http"
)

// Response is the minimal reply a Handler produces. Full response modelling
// lives with the HTTP server; handlers here only need status, headers and a
// body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Text builds a plain-text response.
func Text(status int, body string) *Response {
	resp := &Response{Status: status, Header: http.Header{}, Body: []byte(body)}
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// JSON builds a JSON response from v. Marshal failures degrade to a 500.
func JSON(status int, v any) *Response {
	buf, err := json.Marshal(v)
	if err != nil {
		return Text(http.StatusInternalServerError, "encoding error")
	}
	resp := &Response{Status: status, Header: http.Header{}, Body: buf}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

// NotFound builds the canonical 404 reply.
func NotFound() *Response {
	return JSON(http.StatusNotFound, map[string]string{"error": "not found"})
}

func (resp *Response) write(w http.ResponseWriter) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}
