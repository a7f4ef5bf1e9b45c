package storage

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// s3Reply is a canned response of the fake S3 server.
type s3Reply struct {
	status int
	code   string // S3 error code written as an XML error body
}

// newFakeS3 serves canned replies keyed by "METHOD /bucket[/key]". Unknown
// routes answer 501 so a test notices an unexpected request.
func newFakeS3(t *testing.T, routes map[string]s3Reply) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply, ok := routes[r.Method+" "+strings.TrimSuffix(r.URL.Path, "/")]
		if !ok {
			reply = s3Reply{status: http.StatusNotImplemented, code: "NotImplemented"}
		}
		if reply.code == "" || r.Method == http.MethodHead {
			w.WriteHeader(reply.status)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(reply.status)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<Error><Code>`+reply.code+`</Code><Message>`+reply.code+`</Message>`+
			`<Resource>`+r.URL.Path+`</Resource><RequestId>4442587FB7D0A2F9</RequestId></Error>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}
