package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/retry"

	"github.com/PuerkitoBio/goquery"
)

type FetchOptions struct {
	URL        string
	LocalFiles []string
	Timeout    time.Duration
	Retry      retry.Policy
	// Persist writes a successful download over the first local file.
	Persist bool
}

type Fetcher struct {
	opts       FetchOptions
	httpClient *http.Client
	gate       Gate
	logger     *logger.Logger
	now        func() time.Time
}

func NewFetcher(opts FetchOptions, gate Gate, logger *logger.Logger) *Fetcher {
	if gate == nil {
		gate = NoopGate{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
		gate:       gate,
		logger:     logger,
		now:        time.Now,
	}
}

// errHTMLGate marks the vendor's rate-limit page. It is permanent so the
// retry loop gives up on it immediately.
var errHTMLGate = errors.New("source returned an HTML page instead of a catalog")

type statusError struct {
	code int
}

func (e *statusError) Error() string   { return fmt.Sprintf("download failed: HTTP %d", e.code) }
func (e *statusError) Transient() bool { return e.code == http.StatusTooManyRequests || e.code >= 500 }

// Fetch downloads the catalog, falling back to local files. It fails with
// ErrSourceUnavailable only when nothing usable was found.
func (f *Fetcher) Fetch(ctx context.Context) (*File, error) {
	if f.opts.URL != "" {
		file, err := f.download(ctx)
		if err == nil {
			return file, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		f.logger.Warn("Download unavailable, falling back to local files: %v", err)
	} else {
		f.logger.Info("No source URL configured, using local files")
	}

	if file := f.local(); file != nil {
		return file, nil
	}
	return nil, fmt.Errorf("%w: no download and none of %v usable", ErrSourceUnavailable, f.opts.LocalFiles)
}

func (f *Fetcher) download(ctx context.Context) (*File, error) {
	if wait, err := f.gate.Wait(ctx, f.opts.URL); err != nil {
		f.logger.Warn("Download gate unavailable, ignoring it: %v", err)
	} else if wait > 0 {
		return nil, fmt.Errorf("vendor download interval not elapsed, %s left", wait.Round(time.Second))
	}

	policy := f.opts.Retry
	body, err := retry.DoValue(ctx, policy, "download", func(ctx context.Context) ([]byte, error) {
		f.logger.Info("Downloading catalog from %s", f.opts.URL)
		return f.get(ctx)
	})
	if err != nil {
		if errors.Is(err, errHTMLGate) {
			if markErr := f.gate.Mark(ctx, f.opts.URL, "html"); markErr != nil {
				f.logger.Warn("Failed to set download gate: %v", markErr)
			}
		}
		return nil, err
	}

	if err := f.gate.Mark(ctx, f.opts.URL, "downloaded"); err != nil {
		f.logger.Warn("Failed to set download gate: %v", err)
	}

	name := "download"
	if f.opts.Persist && len(f.opts.LocalFiles) > 0 {
		name = f.opts.LocalFiles[0]
		if err := f.persist(name, body); err != nil {
			f.logger.Warn("Failed to save downloaded catalog to %s: %v", name, err)
		} else {
			f.logger.Info("Saved downloaded catalog to %s", name)
		}
	}
	return &File{Name: name, Origin: OriginDownload, Body: body}, nil
}

func (f *Fetcher) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "catalogsync/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if LooksLikeHTML(body) {
		f.logger.Warn("Source answered with an HTML page (%q), vendor rate limit likely", pageTitle(body))
		return nil, errHTMLGate
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("download returned an empty body")
	}
	return body, nil
}

// persist replaces path with body, keeping the previous copy as a
// timestamped backup.
func (f *Fetcher) persist(path string, body []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s.%s.bak", path, f.now().Format("20060102_150405"))
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *Fetcher) local() *File {
	for _, name := range f.opts.LocalFiles {
		body, err := os.ReadFile(name)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.logger.Warn("Cannot read %s: %v", name, err)
			}
			continue
		}
		if LooksLikeHTML(body) {
			f.logger.Warn("Skipping %s: contains HTML, not a catalog", name)
			continue
		}
		if len(bytes.TrimSpace(body)) == 0 {
			f.logger.Warn("Skipping %s: empty", name)
			continue
		}
		f.logger.Info("Using local file %s", name)
		return &File{Name: name, Origin: OriginLocal, Body: body}
	}
	return nil
}

// LooksLikeHTML sniffs the start of a body for an HTML document.
func LooksLikeHTML(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.ToLower(strings.TrimSpace(string(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))))
	if strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") {
		return true
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return strings.Contains(s, "<html") || strings.Contains(s, "<body")
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
