package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// TargetFilter selects the single page target to attach to out of every
// open browser target. Grounded on cdp.Client.Connect's matchesTabURL loop,
// narrowed from "attach to every matching tab" to "resolve exactly one page"
// since a Watcher owns one page session.
type TargetFilter func(t *target.Info) bool

// ByURLSubstring builds a TargetFilter that matches page targets whose URL
// contains substr. An empty substr matches the first page target found.
func ByURLSubstring(substr string) TargetFilter {
	return func(t *target.Info) bool {
		return t.Type == "page" && (substr == "" || strings.Contains(t.URL, substr))
	}
}

// ByTargetID builds a TargetFilter that matches a single known target ID,
// for callers that already resolved the target out of band (e.g. the CLI's
// --target-id flag).
func ByTargetID(id string) TargetFilter {
	return func(t *target.Info) bool {
		return string(t.TargetID) == id
	}
}

// Attachment is a resolved, attached page session ready to hand to
// netwatch.Watcher.Watch.
type Attachment struct {
	AllocCtx    context.Context
	AllocCancel context.CancelFunc
	TargetCtx   context.Context
	TargetID    target.ID
	URL         string
}

// Close releases the allocator context backing this attachment.
func (a *Attachment) Close() {
	if a.AllocCancel != nil {
		a.AllocCancel()
	}
}

// Attach connects to the browser's CDP endpoint at address:port, resolves
// the single page target matching filter, and returns a target-scoped
// context selected via chromedp.WithTargetID, matching
// cdp.Client.attachToTab's allocator/target-context split.
func Attach(ctx context.Context, address string, port int, filter TargetFilter) (*Attachment, error) {
	cdpURL := fmt.Sprintf("ws://%s:%d", address, port)

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	probeCtx, probeCancel := chromedp.NewContext(allocCtx)
	defer probeCancel()
	if err := chromedp.Run(probeCtx); err != nil {
		allocCancel()
		return nil, fmt.Errorf("browser: connect to %s: %w", cdpURL, err)
	}

	targets, err := chromedp.Targets(probeCtx)
	if err != nil {
		allocCancel()
		return nil, fmt.Errorf("browser: enumerate targets: %w", err)
	}

	var chosen *target.Info
	for _, t := range targets {
		if filter(t) {
			chosen = t
			break
		}
	}
	if chosen == nil {
		allocCancel()
		return nil, fmt.Errorf("browser: no page target matched the configured filter (saw %d targets)", len(targets))
	}

	targetCtx, _ := chromedp.NewContext(allocCtx, chromedp.WithTargetID(chosen.TargetID))

	slog.Info("attached to browser target", "target_id", chosen.TargetID, "url", chosen.URL)

	return &Attachment{
		AllocCtx:    allocCtx,
		AllocCancel: allocCancel,
		TargetCtx:   targetCtx,
		TargetID:    chosen.TargetID,
		URL:         chosen.URL,
	}, nil
}

// ListTargets fetches open targets via the HTTP /json/list endpoint,
// without pulling in chromedp's allocator machinery. Grounded on
// cdpcontrol.rawCDP.listTargets, the same role this plays in the existing
// hand-rolled client.
func ListTargets(ctx context.Context, address string, port int) ([]*target.Info, error) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpBase := fmt.Sprintf("http://%s:%d", address, port)
	req, err := http.NewRequestWithContext(listCtx, http.MethodGet, httpBase+"/json/list", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browser: /json/list: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}

	out := make([]*target.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, &target.Info{
			TargetID: target.ID(e.ID),
			Type:     e.Type,
			Title:    e.Title,
			URL:      e.URL,
		})
	}
	return out, nil
}

// WebSocketDebuggerURL resolves the browser-level webSocketDebuggerUrl via
// the /json/version endpoint, the same lookup rawCDP.browserWSURL performs
// before dialing, for callers of the low-level attach path in ws_attach.go.
func WebSocketDebuggerURL(ctx context.Context, address string, port int) (string, error) {
	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpBase := fmt.Sprintf("http://%s:%d", address, port)
	req, err := http.NewRequestWithContext(versionCtx, http.MethodGet, httpBase+"/json/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browser: /json/version: HTTP %d", resp.StatusCode)
	}

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("browser: /json/version returned no webSocketDebuggerUrl")
	}
	return version.WebSocketDebuggerURL, nil
}
