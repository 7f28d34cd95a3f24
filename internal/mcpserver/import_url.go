package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxImportSize = 50 << 20 // 50 MB
	maxRedirects  = 5
	fetchTimeout  = 30 * time.Second
)

var (
	errBlockedAddr = errors.New("blocked address")

	extByMIME = map[string]string{
		"application/json":             ".json",
		"text/json":                    ".json",
		"text/markdown":                ".md",
		"text/x-markdown":              ".md",
		"application/zip":              ".zip",
		"application/x-zip-compressed": ".zip",
	}

	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// remote is a downloaded or decoded import payload.
type remote struct {
	data []byte
	// ext is derived from the declared media type and may be empty.
	ext string
}

func (s *Server) importFromURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := s.resolve(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := req.GetString("filename", "")
	if name == "" {
		name = nameFromURL(rawURL, payload.ext)
	}

	res, err := s.svc.Import(ctx, sanitizeFilename(name), payload.data)
	if err != nil {
		return errorResult(err, ""), nil
	}
	return jsonResult(res)
}

// resolve loads the payload behind rawURL: a data URI is decoded in place,
// an http(s) URL is downloaded.
func (s *Server) resolve(ctx context.Context, rawURL string) (remote, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return remote{}, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "data":
		return decodeDataURI(rawURL)
	case "http", "https":
		return s.download(ctx, u)
	default:
		return remote{}, fmt.Errorf("unsupported scheme %q (use http, https or data)", u.Scheme)
	}
}

// decodeDataURI parses data:[<mediatype>][;base64],<data>.
func decodeDataURI(uri string) (remote, error) {
	meta, body, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return remote{}, errors.New("invalid data URI: missing comma separator")
	}

	var data []byte
	if base, isB64 := strings.CutSuffix(meta, ";base64"); isB64 {
		meta = base
		var err error
		if data, err = base64.StdEncoding.DecodeString(body); err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(body); err != nil {
				return remote{}, fmt.Errorf("invalid base64 data: %w", err)
			}
		}
	} else {
		text, err := url.PathUnescape(body)
		if err != nil {
			return remote{}, fmt.Errorf("invalid data URI: %w", err)
		}
		data = []byte(text)
	}

	if len(data) > maxImportSize {
		return remote{}, fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxImportSize)
	}
	return remote{data: data, ext: extForMediaType(meta)}, nil
}

// download fetches u. Connections to loopback, private, link-local and
// unspecified addresses are refused at dial time, which also covers
// redirects and DNS answers.
func (s *Server) download(ctx context.Context, u *url.URL) (remote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return remote{}, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/markdown, application/zip, */*;q=0.5")

	resp, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, errBlockedAddr) {
			return remote{}, fmt.Errorf("blocked host %s: %w", u.Hostname(), errBlockedAddr)
		}
		return remote{}, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return remote{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return remote{}, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImportSize {
		return remote{}, fmt.Errorf("file too large: exceeds %d bytes", maxImportSize)
	}
	return remote{data: data, ext: extForMediaType(resp.Header.Get("Content-Type"))}, nil
}

// newFetchClient returns the HTTP client used by import_from_url.
func newFetchClient() *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: refuseInternal}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.Proxy = nil

	return &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
			}
			return nil
		},
	}
}

// refuseInternal is a net.Dialer Control hook.
func refuseInternal(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if internalAddr(addr) {
		return fmt.Errorf("%w: %s", errBlockedAddr, addr)
	}
	return nil
}

func internalAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsInterfaceLocalMulticast()
}

func extForMediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.Split(v, ";")[0]))
	}
	return extByMIME[mt]
}

// nameFromURL takes the last path segment when it carries an extension and
// falls back to a random name with ext.
func nameFromURL(rawURL, ext string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "data" {
		if base := path.Base(u.Path); strings.Contains(base, ".") && base != "." {
			return base
		}
	}
	return uuid.NewString() + ext
}

// sanitizeFilename strips directories and replaces unsafe characters.
func sanitizeFilename(name string) string {
	name = unsafeNameRe.ReplaceAllString(path.Base(strings.ReplaceAll(name, `\`, "/")), "_")
	if name == "" || name == "." || name == ".." {
		return uuid.NewString()
	}
	return name
}
