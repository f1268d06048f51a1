// Command smoke drives a running exam API through a full session lifecycle:
// create, add subjects, publish, run, wait for room allocation, then pull
// every read endpoint and an export. It exits non-zero on the first failure,
// so it doubles as a deploy gate.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type client struct {
	base string
	http *http.Client
}

func main() {
	var (
		base    string
		prefix  string
		timeout time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	c := &client{base: strings.TrimRight(base, "/") + prefix, http: &http.Client{Timeout: timeout}}
	start := time.Now()

	sessionID := c.createSession()
	log.Printf("session created: %s", sessionID)

	for _, subject := range []map[string]string{
		{"courseCode": "CS101", "courseName": "Programming Fundamentals"},
		{"courseCode": "MA201", "courseName": "Discrete Mathematics"},
		{"courseCode": "PH105", "courseName": "Applied Physics"},
	} {
		c.do(http.MethodPost, "/sessions/"+sessionID+"/subjects", subject, http.StatusCreated)
	}
	log.Printf("subjects added")

	c.do(http.MethodPost, "/sessions/"+sessionID+"/publish", nil, http.StatusOK)
	c.do(http.MethodPost, "/sessions/"+sessionID+"/run", nil, http.StatusOK)
	log.Printf("run committed")

	c.waitForAllocation(sessionID)

	for _, path := range []string{
		"/sessions/" + sessionID,
		"/sessions/" + sessionID + "/subjects",
		"/sessions/" + sessionID + "/eligibility",
		"/sessions/" + sessionID + "/tickets",
		"/sessions/" + sessionID + "/room-requests",
		"/sessions/" + sessionID + "/runs",
	} {
		c.do(http.MethodGet, path, nil, http.StatusOK)
	}
	log.Printf("read endpoints ok")

	c.checkExport(sessionID)
	c.checkArchive(sessionID)

	c.do(http.MethodDelete, "/sessions/"+sessionID, nil, http.StatusNoContent)
	log.Printf("smoke passed in %s", time.Since(start).Round(time.Millisecond))
}

func (c *client) createSession() string {
	today := time.Now()
	body := map[string]string{
		"title":     "Smoke Check " + today.Format("2006-01-02 15:04:05"),
		"startDate": today.Format("2006-01-02"),
		"endDate":   today.AddDate(0, 0, 7).Format("2006-01-02"),
	}
	data := c.do(http.MethodPost, "/sessions", body, http.StatusCreated)
	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &session); err != nil || session.ID == "" {
		fail("create session returned no id: %s", data)
	}
	return session.ID
}

func (c *client) waitForAllocation(sessionID string) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		data := c.do(http.MethodGet, "/sessions/"+sessionID+"/room-requests", nil, http.StatusOK)
		var requests []struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &requests); err != nil {
			fail("decode room requests: %v", err)
		}
		pending := 0
		for _, r := range requests {
			if r.Status == "PENDING" || r.Status == "NEW" {
				pending++
			}
		}
		if len(requests) > 0 && pending == 0 {
			log.Printf("allocation resolved: %d requests", len(requests))
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	fail("allocation did not resolve within 30s")
}

func (c *client) checkExport(sessionID string) {
	resp, err := c.http.Get(c.base + "/sessions/" + sessionID + "/export?collection=tickets&format=pdf")
	if err != nil {
		fail("export request: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(body, []byte("%PDF")) {
		fail("export returned %d, %d bytes", resp.StatusCode, len(body))
	}
	log.Printf("export ok: %d bytes of pdf", len(body))
}

func (c *client) checkArchive(sessionID string) {
	data := c.do(http.MethodPost, "/sessions/"+sessionID+"/archives", map[string]string{"collection": "bundle", "format": "json"}, http.StatusAccepted)
	var entry struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &entry); err != nil || entry.ID == "" {
		fail("archive request returned no id: %s", data)
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		data := c.do(http.MethodGet, "/archives/"+entry.ID, nil, http.StatusOK)
		var status struct {
			Status        string `json:"status"`
			DownloadToken string `json:"downloadToken"`
			Error         string `json:"error"`
		}
		if err := json.Unmarshal(data, &status); err != nil {
			fail("decode archive entry: %v", err)
		}
		switch status.Status {
		case "READY":
			resp, err := c.http.Get(c.base + "/archives/download?token=" + status.DownloadToken)
			if err != nil {
				fail("archive download: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK || len(body) == 0 {
				fail("archive download returned %d, %d bytes", resp.StatusCode, len(body))
			}
			log.Printf("archive ok: %d bytes", len(body))
			return
		case "FAILED":
			fail("archive render failed: %s", status.Error)
		}
		time.Sleep(500 * time.Millisecond)
	}
	fail("archive did not become READY within 30s")
}

// do sends a request, asserts the status and returns the envelope's data.
func (c *client) do(method, path string, body interface{}, wantStatus int) json.RawMessage {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			fail("marshal %s %s: %v", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		fail("build %s %s: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		fail("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != wantStatus {
		fail("%s %s: got %d want %d: %s", method, path, resp.StatusCode, wantStatus, raw)
	}
	if wantStatus == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		fail("%s %s: decode envelope: %v", method, path, err)
	}
	if env.Error != nil {
		fail("%s %s: api error %s: %s", method, path, env.Error.Code, env.Error.Message)
	}
	return env.Data
}

func fail(format string, args ...interface{}) {
	log.Printf("FAIL: "+format, args...)
	os.Exit(1)
}
