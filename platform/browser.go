package platform

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"socialgate/internal"
)

const tiktokHome = "https://www.tiktok.com/"

// BrowserClient is the browser-backed PlatformClient for TikTok. All
// authentication and extraction happens inside one long-lived automation
// context; the session artifact is the cookie state exported from it.
type BrowserClient struct {
	browserName   string
	headless      bool
	antiDetection bool

	mu         sync.Mutex
	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
}

// BrowserClientConfig configures the browser-backed client.
type BrowserClientConfig struct {
	Browser       string
	Headless      bool
	AntiDetection bool
}

// NewBrowserClient creates the client without starting the browser; the
// first Authenticate launches it.
func NewBrowserClient(cfg BrowserClientConfig) *BrowserClient {
	if cfg.Browser == "" {
		cfg.Browser = "chromium"
	}
	return &BrowserClient{
		browserName:   cfg.Browser,
		headless:      cfg.Headless,
		antiDetection: cfg.AntiDetection,
	}
}

// ensureBrowser launches playwright and the browser process once.
// Caller must hold c.mu.
func (c *BrowserClient) ensureBrowser() error {
	if c.browser != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(c.headless),
	}
	if c.antiDetection {
		launchOpts.Args = stealthArgs
	}

	browserType := pw.Chromium
	switch c.browserName {
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	}

	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	c.pw = pw
	c.browser = browser
	return nil
}

// Authenticate opens a fresh automation context, seeds it with the ms_token
// credential cookie (plus any cookies from a prior artifact), and verifies the
// platform accepts it. The exported cookie state is the session artifact.
func (c *BrowserClient) Authenticate(ctx context.Context, cred internal.Credential, prior *internal.SessionArtifact) (*internal.SessionArtifact, error) {
	if cred.Token == "" {
		return nil, internal.NewConfigurationError(internal.PlatformTikTok, "MS_TOKEN not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureBrowser(); err != nil {
		return nil, err
	}

	// A stale context from a failed or expired session is discarded whole.
	if c.browserCtx != nil {
		_ = c.browserCtx.Close()
		c.browserCtx = nil
		c.page = nil
	}

	ua := randomBrowserUserAgent()
	vp := randomViewport()
	if !c.antiDetection {
		ua = browserUserAgents[0]
		vp = viewport{Width: 1920, Height: 1080}
	}
	if prior != nil && prior.UserAgent != "" {
		ua = prior.UserAgent
	}

	browserCtx, err := c.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  playwright.String(ua),
		Viewport:   &playwright.Size{Width: vp.Width, Height: vp.Height},
		Locale:     playwright.String("en-US"),
		TimezoneId: playwright.String("America/New_York"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	cookies := []playwright.OptionalCookie{{
		Name:   "msToken",
		Value:  cred.Token,
		Domain: playwright.String(".tiktok.com"),
		Path:   playwright.String("/"),
	}}
	if prior != nil {
		for name, value := range prior.Cookies {
			if name == "msToken" {
				continue
			}
			cookies = append(cookies, playwright.OptionalCookie{
				Name:   name,
				Value:  value,
				Domain: playwright.String(".tiktok.com"),
				Path:   playwright.String("/"),
			})
		}
	}
	if err := browserCtx.AddCookies(cookies); err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to seed session cookies: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(30000)

	if _, err := page.Goto(tiktokHome, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("navigation failed during login check: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to read login check page: %w", err)
	}
	if marker := challengePageMarker(page.URL(), content); marker != "" {
		browserCtx.Close()
		return nil, internal.NewChallengeRequiredError(internal.PlatformTikTok,
			fmt.Sprintf("platform issued a verification challenge (%s)", marker))
	}

	exported, err := browserCtx.Cookies()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to export session cookies: %w", err)
	}

	artifact := &internal.SessionArtifact{
		Platform:  internal.PlatformTikTok,
		Cookies:   make(map[string]string, len(exported)),
		UserAgent: ua,
		CreatedAt: time.Now(),
	}
	for _, ck := range exported {
		artifact.Cookies[ck.Name] = ck.Value
	}

	c.browserCtx = browserCtx
	c.page = page
	return artifact, nil
}

// Call navigates to the target page and extracts either the embedded page
// state or, for list endpoints, the response of an in-page API fetch made
// with the session's cookies.
func (c *BrowserClient) Call(ctx context.Context, artifact *internal.SessionArtifact, spec internal.CallSpec) (*internal.RawResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page == nil {
		return nil, internal.NewGatewayError(internal.PlatformTikTok, internal.ErrSessionInvalidated, "no live browser session")
	}

	page := c.page
	if spec.TargetURL != "" {
		if _, err := page.Goto(spec.TargetURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return nil, fmt.Errorf("navigation failed: %w", err)
		}
	}

	if spec.Path != "" {
		// In-page fetch inherits the context's cookies and fingerprint,
		// which the platform's API endpoints require.
		apiURL := spec.Path
		if len(spec.Query) > 0 {
			apiURL += "?" + spec.Query.Encode()
		}
		raw, err := page.Evaluate(`async (url) => {
			const res = await fetch(url, { credentials: "include" });
			return await res.text();
		}`, apiURL)
		if err != nil {
			return nil, fmt.Errorf("in-page fetch failed: %w", err)
		}
		body, _ := raw.(string)
		return &internal.RawResult{StatusCode: 200, Body: []byte(body), FinalURL: page.URL()}, nil
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}

	if spec.ExtractKey != "" {
		state, err := extractEmbeddedState(content, spec.ExtractKey)
		if err != nil {
			return nil, err
		}
		return &internal.RawResult{StatusCode: 200, Body: state, FinalURL: page.URL()}, nil
	}

	return &internal.RawResult{StatusCode: 200, Body: []byte(content), FinalURL: page.URL()}, nil
}

// DetectInvalidation reports whether the page was bounced to a login or
// verification wall, as opposed to a missing-content page.
func (c *BrowserClient) DetectInvalidation(res *internal.RawResult, err error) bool {
	if DetectsInvalidation(res, err) {
		return true
	}
	if err != nil {
		return strings.Contains(strings.ToLower(err.Error()), "/login")
	}
	if res == nil {
		return false
	}
	if strings.Contains(res.FinalURL, "/login") {
		return true
	}
	return strings.Contains(strings.ToLower(string(res.Body)), `"statuscode":8`)
}

// Close shuts the automation context and browser down.
func (c *BrowserClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil {
		_ = c.browserCtx.Close()
		c.browserCtx = nil
		c.page = nil
	}
	if c.browser != nil {
		_ = c.browser.Close()
		c.browser = nil
	}
	if c.pw != nil {
		if err := c.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		c.pw = nil
	}
	return nil
}

// challengePageMarker returns the marker that identifies a verification wall,
// or "" when the page looks normal.
func challengePageMarker(url, content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(url, "/verify"):
		return "verify redirect"
	case strings.Contains(lower, "captcha-verify"):
		return "captcha"
	case strings.Contains(lower, "verify to continue"):
		return "verification prompt"
	default:
		return ""
	}
}

// extractEmbeddedState pulls one scope out of the JSON state blob the web app
// embeds in its pages.
func extractEmbeddedState(content, key string) ([]byte, error) {
	const stateTag = `<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">`

	start := strings.Index(content, stateTag)
	if start == -1 {
		return nil, fmt.Errorf("page state blob not found")
	}
	start += len(stateTag)
	end := strings.Index(content[start:], "</script>")
	if end == -1 {
		return nil, fmt.Errorf("page state blob is truncated")
	}
	blob := content[start : start+end]

	scope, err := extractScope([]byte(blob), key)
	if err != nil {
		return nil, fmt.Errorf("page state missing %q: %w", key, err)
	}
	return scope, nil
}
