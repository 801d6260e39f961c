package testutils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Delivery is one request received by a Collector.
type Delivery struct {
	Header  http.Header
	Payload map[string]interface{}
}

// Collector is an httptest server that accepts event payloads the way the
// ingestion endpoint does. Status decides the response code per request;
// it defaults to 200.
type Collector struct {
	Server *httptest.Server
	Status func(n int) int

	mu         sync.Mutex
	deliveries []Delivery
	attempts   int
}

func NewCollector() *Collector {
	c := &Collector{}
	c.Server = httptest.NewServer(http.HandlerFunc(c.serve))
	return c
}

func (c *Collector) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.attempts++
	n := c.attempts
	c.mu.Unlock()

	status := http.StatusOK
	if c.Status != nil {
		status = c.Status(n)
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer zr.Close()
		body = zr
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.deliveries = append(c.deliveries, Delivery{Header: r.Header.Clone(), Payload: payload})
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// DSN returns a DSN pointing at the collector for the given project.
func (c *Collector) DSN(project string) string {
	return c.Server.URL + "/" + project
}

func (c *Collector) Deliveries() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

func (c *Collector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Collector) Close() {
	c.Server.Close()
}
