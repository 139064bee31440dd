package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/config"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/torre"
)

type fixedBios struct{ bio torre.Bio }

func (f fixedBios) GetBio(_ context.Context, username string) (torre.Bio, error) {
	bio := f.bio
	bio.Username = username
	return bio, nil
}

type fixedOpportunities struct{ opp torre.Opportunity }

func (f fixedOpportunities) GetOpportunity(_ context.Context, externalID string) (torre.Opportunity, error) {
	opp := f.opp
	opp.ExternalID = externalID
	return opp, nil
}

// newTestApp assembles the app in full in-memory mode with stubbed upstream
// lookups and fast interview turn deadlines.
func newTestApp(t *testing.T) (*App, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Dialog = config.DialogConfig{
		ReadyTimeoutBase:   config.Duration(time.Second),
		ReadyTimeoutMax:    config.Duration(2 * time.Second),
		AnswerTimeout:      config.Duration(time.Second),
		SilenceRetries:     1,
		ContinuationWindow: config.Duration(30 * time.Millisecond),
	}

	a, err := New(context.Background(), cfg, Providers{},
		WithBios(fixedBios{bio: torre.Bio{
			FullName: "Jane Doe",
			Skills:   []string{"Go", "PostgreSQL"},
		}}),
		WithOpportunities(fixedOpportunities{opp: torre.Opportunity{
			Objective: "Backend engineer",
			Strengths: []string{"Go", "Kubernetes"},
		}}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ts := httptest.NewServer(a.Handler())
	t.Cleanup(ts.Close)
	return a, ts
}

func TestScreeningFlowEndToEnd(t *testing.T) {
	a, ts := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Apply.
	resp, err := http.Post(ts.URL+"/api/applications", "application/json",
		bytes.NewBufferString(`{"username":"jdoe","job_offer_id":"job-1"}`))
	if err != nil {
		t.Fatalf("POST /api/applications: %v", err)
	}
	var created struct {
		ApplicationID string `json:"application_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	// No call yet, so the analysis is pending.
	if status := getStatus(t, ts, "/api/applications/"+created.ApplicationID+"/analysis"); status != http.StatusAccepted {
		t.Fatalf("analysis before call: status = %d, want 202", status)
	}

	// Give the in-process JobOfferApplied handlers a beat to prepare the
	// interview script before the candidate connects.
	time.Sleep(150 * time.Millisecond)

	// Interview over the websocket.
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws/call?application_id=" + created.ApplicationID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	send := func(text string) {
		t.Helper()
		msg, _ := json.Marshal(map[string]string{"type": "text", "text": text})
		if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
			t.Fatalf("write %q: %v", text, err)
		}
	}

	answers := 0
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var frame struct {
			Type    string `json:"type"`
			Event   string `json:"event"`
			Text    string `json:"text"`
			Speaker string `json:"speaker"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("bad frame %s: %v", data, err)
		}
		if frame.Type == "control" && frame.Event == "call_ended" {
			break
		}
		if frame.Type != "text" || frame.Speaker != "emma" {
			continue
		}

		switch {
		case strings.Contains(frame.Text, "Ready when you are"):
			send("hi")
		case strings.Contains(frame.Text, "?"), strings.Contains(frame.Text, "background"):
			answers++
			send(fmt.Sprintf("Answer %d: I have shipped Go and PostgreSQL services in production.", answers))
		}
	}
	if answers == 0 {
		t.Fatal("the interviewer never asked a question")
	}

	// The analysis lands asynchronously after CallFinished.
	deadline := time.Now().Add(5 * time.Second)
	var body string
	for {
		status, b := getBody(t, ts, "/api/applications/"+created.ApplicationID+"/analysis")
		if status == http.StatusOK {
			body = b
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("analysis never completed: last status %d body %s", status, b)
		}
		time.Sleep(25 * time.Millisecond)
	}

	var result struct {
		FitScore int      `json:"fit_score"`
		Skills   []string `json:"skills"`
		Failed   bool     `json:"failed"`
	}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if result.Failed {
		t.Errorf("analysis reported failed: %s", body)
	}
	if result.FitScore < 0 || result.FitScore > 100 {
		t.Errorf("fit_score = %d, want 0..100", result.FitScore)
	}
	found := false
	for _, s := range result.Skills {
		if s == "Go" {
			found = true
		}
	}
	if !found {
		t.Errorf("skills = %v, want to include the strength the candidate mentioned", result.Skills)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.ListenAddr = "127.0.0.1:0"

	a, err := New(context.Background(), cfg, Providers{},
		WithBios(fixedBios{}), WithOpportunities(fixedOpportunities{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
	defer cancelShutdown()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func getStatus(t *testing.T, ts *httptest.Server, path string) int {
	t.Helper()
	status, _ := getBody(t, ts, path)
	return status
}

func getBody(t *testing.T, ts *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.String()
}
