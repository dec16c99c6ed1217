package http

import (
	"strconv"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

const (
	MIMEPlain = "text/plain"
	MIMEHTML  = "text/html"
	MIMEJSON  = "application/json"
)

// Response is built by connectors. Headers and content are copied into response-owned
// buffers, so the passed slices may be reused right after the call.
type Response struct {
	Message
	code     status.Code
	declared bool
	typed    bool
	err      error
}

func NewResponse(cfg *config.Config) *Response {
	resp := &Response{Message: newMessage(cfg)}
	resp.Reset()

	return resp
}

// Code sets the response status code.
func (r *Response) Code(code status.Code) *Response {
	r.code = code
	return r
}

// Status returns the current status code.
func (r *Response) Status() status.Code {
	return r.code
}

// Header adds a header. Content-Length declares the body length and Connection: close
// revokes keep-alive instead of being stored; both are emitted by the serializer.
func (r *Response) Header(key, value string) *Response {
	switch {
	case strcomp.EqualFold(key, "content-length"):
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			r.fail(status.ErrInternalServerError)
			return r
		}

		return r.ContentLength(n)
	case strcomp.EqualFold(key, "connection"):
		if strcomp.EqualFold(value, "close") {
			r.KeepAlive = false
		}

		return r
	case strcomp.EqualFold(key, "content-type"):
		r.typed = true
	}

	if err := r.Headers.Add(key, value); err != nil {
		r.fail(err)
	}

	return r
}

// ContentLength declares the length of the whole body. Without a declared length the
// connection can't be kept alive.
func (r *Response) ContentLength(n int) *Response {
	r.Message.ContentLength = n
	r.declared = true
	return r
}

// Declared returns the declared body length, if any.
func (r *Response) Declared() (int, bool) {
	return r.Message.ContentLength, r.declared
}

// Bytes appends the bytes to the body. The content type is set on the first call only.
func (r *Response) Bytes(contentType string, b []byte) error {
	if !r.typed && len(contentType) > 0 {
		r.Header("Content-Type", contentType)
	}

	_, err := r.Write(b)
	return err
}

// String appends the string to the body.
func (r *Response) String(contentType, body string) error {
	return r.Bytes(contentType, uf.S2B(body))
}

// JSON appends the serialized model to the body.
func (r *Response) JSON(model any) error {
	data, err := json.ConfigCompatibleWithStandardLibrary.Marshal(model)
	if err != nil {
		return err
	}

	return r.Bytes(MIMEJSON, data)
}

// Write implements io.Writer.
func (r *Response) Write(b []byte) (n int, err error) {
	if _, err = r.Body().Append(b); err != nil {
		r.fail(err)
		return 0, err
	}

	return len(b), nil
}

// Close revokes keep-alive for the connection.
func (r *Response) Close() *Response {
	r.KeepAlive = false
	return r
}

// Err returns the first error occurred while building the response.
func (r *Response) Err() error {
	return r.err
}

// Discard drops headers and body built so far, keeping the status code.
func (r *Response) Discard() {
	keepAlive := r.KeepAlive
	r.Message.reset()
	r.KeepAlive = keepAlive
	r.declared = false
	r.typed = false
	r.err = nil
}

func (r *Response) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Reset brings the response into its initial state. A fresh response doesn't object to
// keeping the connection alive.
func (r *Response) Reset() {
	r.Message.reset()
	r.KeepAlive = true
	r.code = status.OK
	r.declared = false
	r.typed = false
	r.err = nil
}
