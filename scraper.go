package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var tiktokURL, _ = url.Parse("https://www.tiktok.com")

// Scraper is the TikTok fetching client. User profiles are pure HTTP (SSR
// parsing); search and hashtag endpoints need a headless browser for URL
// signing. With WithBrowserFetch the signed request is also issued inside
// the browser, so TLS fingerprint and cookies match the signer.
type Scraper struct {
	client    *http.Client
	proxy     string
	userAgent string
	isLogged  bool
	baseURL   string // defaults to "https://www.tiktok.com"
	log       zerolog.Logger

	// Browser for URL signing (and optionally fetching).
	browser         *rod.Browser
	page            *rod.Page
	browserMu       sync.Mutex
	signingReady    atomic.Bool
	useBrowserFetch bool

	// signFunc signs a raw URL via browser JS. Replaceable for testing.
	signFunc func(rawURL string) (string, error)

	// Per-operation rate limiting.
	// Search: ~30/min → 2s min. Profile: ~60/min → 1s min.
	searchLimiter  *rate.Limiter
	profileLimiter *rate.Limiter

	// Session token.
	msToken string
}

// defaultTransport returns an http.Transport optimized for scraping:
// connection pooling, keep-alive, and TLS handshake caching.
func defaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// New creates a Scraper with sensible defaults. The browser is not launched
// until InitBrowser or Login is called. Diagnostics are discarded unless
// WithLogger is set.
func New() *Scraper {
	jar, _ := cookiejar.New(nil)
	s := &Scraper{
		client: &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: defaultTransport(),
		},
		baseURL:        "https://www.tiktok.com",
		userAgent:      defaultUserAgent,
		searchLimiter:  newLimiter(2 * time.Second),
		profileLimiter: newLimiter(time.Second),
		log:            zerolog.Nop(),
	}
	s.signFunc = s.signURL
	return s
}

// newLimiter converts a minimum delay between requests into a rate limiter.
// Zero or negative means unthrottled.
func newLimiter(minDelay time.Duration) *rate.Limiter {
	if minDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(minDelay), 1)
}

// WithSearchDelay sets the minimum delay between search/hashtag API requests.
func (s *Scraper) WithSearchDelay(d time.Duration) *Scraper {
	s.searchLimiter = newLimiter(d)
	return s
}

// WithProfileDelay sets the minimum delay between user profile requests.
func (s *Scraper) WithProfileDelay(d time.Duration) *Scraper {
	s.profileLimiter = newLimiter(d)
	return s
}

// WithLogger sets the diagnostic logger for this scraper instance.
func (s *Scraper) WithLogger(log zerolog.Logger) *Scraper {
	s.log = log
	return s
}

// WithBrowserFetch makes search/hashtag requests execute inside the signing
// browser instead of the Go HTTP client.
func (s *Scraper) WithBrowserFetch(enabled bool) *Scraper {
	s.useBrowserFetch = enabled
	return s
}

// SetProxy configures an HTTP/HTTPS or SOCKS5 proxy for the HTTP client.
// Connection pooling and keep-alive settings are preserved.
func (s *Scraper) SetProxy(proxyAddr string) error {
	if proxyAddr == "" {
		s.client.Transport = defaultTransport()
		s.proxy = ""
		return nil
	}

	u, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	base := defaultTransport()

	switch u.Scheme {
	case "http", "https":
		base.Proxy = http.ProxyURL(u)
		s.client.Transport = base
	case "socks5":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		dc, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("socks5: context dialer not supported")
		}
		base.DialContext = dc.DialContext
		s.client.Transport = base
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}

	s.proxy = proxyAddr
	return nil
}

// doRequest builds and executes an HTTP request with standard TikTok headers.
// No built-in rate limiting — callers use waitForSearch or waitForProfile.
func (s *Scraper) doRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.tiktok.com/")
	req.Header.Set("Origin", "https://www.tiktok.com")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	s.log.Debug().Str("method", method).Str("url", urlStr).Int("status", resp.StatusCode).Msg("request done")

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	}

	return resp, nil
}

// waitForSearch enforces rate limiting for search/hashtag API calls.
func (s *Scraper) waitForSearch(ctx context.Context) error {
	return s.searchLimiter.Wait(ctx)
}

// waitForProfile enforces rate limiting for user profile lookups.
func (s *Scraper) waitForProfile(ctx context.Context) error {
	return s.profileLimiter.Wait(ctx)
}

// fetchSigned signs rawURL and returns the response body. Depending on
// configuration the fetch goes through the browser or the HTTP client.
func (s *Scraper) fetchSigned(ctx context.Context, rawURL string) ([]byte, error) {
	if s.useBrowserFetch {
		if err := s.waitForSearch(ctx); err != nil {
			return nil, err
		}
		s.browserMu.Lock()
		body, err := s.browserFetch(rawURL)
		s.browserMu.Unlock()
		return body, err
	}

	// Sign URL via browser JS (~50ms). Mutex protects single-threaded browser page.
	s.browserMu.Lock()
	signedURL, err := s.signFunc(rawURL)
	s.browserMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}

	// Rate limit before the HTTP call, not the signing.
	if err := s.waitForSearch(ctx); err != nil {
		return nil, err
	}

	resp, err := s.doRequest(ctx, "GET", signedURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// GetCookies returns the current session cookies for tiktok.com.
func (s *Scraper) GetCookies() []*http.Cookie {
	return s.client.Jar.Cookies(tiktokURL)
}

// SetCookies sets session cookies and extracts the msToken.
func (s *Scraper) SetCookies(cookies []*http.Cookie) {
	s.client.Jar.SetCookies(tiktokURL, cookies)
	for _, c := range cookies {
		if c.Name == "msToken" {
			s.msToken = c.Value
		}
	}
}

// SaveCookies writes session cookies to a JSON file.
func (s *Scraper) SaveCookies(path string) error {
	data, err := json.Marshal(s.GetCookies())
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCookies reads cookies from a JSON file and sets them on the client.
func (s *Scraper) LoadCookies(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cookies file: %w", err)
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("unmarshal cookies: %w", err)
	}
	s.SetCookies(cookies)
	s.isLogged = true
	return nil
}

// IsLoggedIn reports whether the scraper has an active session.
func (s *Scraper) IsLoggedIn() bool {
	return s.isLogged
}

// Close releases all resources including the headless browser if running.
func (s *Scraper) Close() error {
	return s.closeBrowser()
}
