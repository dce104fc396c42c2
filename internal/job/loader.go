package job

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
	"time"

	"coopsched/internal/sched"
)

// ErrIntegrity is returned when a loaded body does not match its integrity string.
var ErrIntegrity = errors.New("job: integrity check failed")

// maxScriptSize caps how much of a response body a loader reads.
const maxScriptSize = 16 << 20

// Script is what LoadScript resolves with.
type Script struct {
	URL         string
	ContentType string
	Body        []byte
	Size        int64
}

// LoadOptions configure a single LoadScript call.
type LoadOptions struct {
	Priority  string        // "high", "normal", "low" or "idle"; empty means normal
	Integrity string        // "sha256-<b64>", "sha384-<b64>" or "sha512-<b64>"; empty skips the check
	Timeout   time.Duration // per-request timeout; zero means the client's own
}

// LoadScript enqueues a fetch of url. The returned future resolves with a
// *Script, or rejects on transport errors, non-2xx status or integrity mismatch.
func LoadScript(s *sched.Scheduler, client *http.Client, url string, opts LoadOptions) *sched.Future {
	if client == nil {
		client = http.DefaultClient
	}
	prio, err := sched.ParsePriority(opts.Priority)
	if err != nil {
		return sched.Rejected(err)
	}
	return s.Enqueue(fetchWork(client, url), prio, sched.Options{
		Label:     url,
		Integrity: opts.Integrity,
		Timeout:   opts.Timeout,
	})
}

func fetchWork(client *http.Client, url string) sched.Work {
	return func(ctx context.Context) (any, error) {
		opts := sched.OptionsFromContext(ctx)
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("job: build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("job: fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("job: fetch %s: unexpected status %s", url, resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize))
		if err != nil {
			return nil, fmt.Errorf("job: read %s: %w", url, err)
		}
		if err := VerifyIntegrity(body, opts.Integrity); err != nil {
			return nil, fmt.Errorf("%s: %w", url, err)
		}

		return &Script{
			URL:         url,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
			Size:        int64(len(body)),
		}, nil
	}
}

// VerifyIntegrity checks body against a subresource-integrity string. Several
// space-separated hashes may be given; the body passes if any of them match.
func VerifyIntegrity(body []byte, integrity string) error {
	fields := strings.Fields(integrity)
	if len(fields) == 0 {
		return nil
	}
	for _, f := range fields {
		alg, want, ok := strings.Cut(f, "-")
		if !ok {
			return fmt.Errorf("%w: malformed %q", ErrIntegrity, f)
		}
		// strip "?opt" suffixes, which carry no meaning for the check
		want, _, _ = strings.Cut(want, "?")

		var h hash.Hash
		switch alg {
		case "sha256":
			h = sha256.New()
		case "sha384":
			h = sha512.New384()
		case "sha512":
			h = sha512.New()
		default:
			return fmt.Errorf("%w: unsupported algorithm %q", ErrIntegrity, alg)
		}
		h.Write(body)
		got := base64.StdEncoding.EncodeToString(h.Sum(nil))
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
			return nil
		}
	}
	return ErrIntegrity
}
