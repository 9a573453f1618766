// Package r2s3 mirrors closed runtime files (snapshots, rotated audit logs)
// to an S3-compatible bucket such as Cloudflare R2.
package r2s3

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	sigV4Algorithm = "AWS4-HMAC-SHA256"
	sigV4Service   = "s3"
)

type Config struct {
	Endpoint        string
	Bucket          string
	Region          string // "auto" for R2
	AccessKeyID     string
	SecretAccessKey string
}

type Client struct {
	endpoint   string
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

func New(cfg Config) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)
	if cfg.Region = strings.TrimSpace(cfg.Region); cfg.Region == "" {
		cfg.Region = "auto"
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("endpoint, bucket and credentials are required")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint: %s", endpoint)
	}
	return &Client{
		endpoint:   strings.TrimRight(u.String(), "/"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		now:        time.Now,
	}, nil
}

// PutFile uploads localPath under key with a single signed PUT.
func (c *Client) PutFile(ctx context.Context, key, localPath string) error {
	key = normalizeObjectKey(key)
	if key == "" {
		return fmt.Errorf("empty object key")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+"/"+c.cfg.Bucket+"/"+escapePath(key), f)
	if err != nil {
		return err
	}
	req.ContentLength = st.Size()
	req.Header.Set("Content-Type", contentType(key))
	c.sign(req, hex.EncodeToString(h.Sum(nil)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	return fmt.Errorf("put %s: status=%d body=%s", key, resp.StatusCode, strings.TrimSpace(string(body)))
}

// sign adds SigV4 headers. Only host and the two x-amz headers are signed.
func (c *Client) sign(req *http.Request, payloadHash string) {
	now := c.now().UTC()
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")
	host := req.URL.Host

	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)

	const signedHeaders = "host;x-amz-content-sha256;x-amz-date"
	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URL.EscapedPath(),
		"",
		"host:" + host + "\nx-amz-content-sha256:" + payloadHash + "\nx-amz-date:" + amzDate + "\n",
		signedHeaders,
		payloadHash,
	}, "\n")
	scope := dateStamp + "/" + c.cfg.Region + "/" + sigV4Service + "/aws4_request"
	sum := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{sigV4Algorithm, amzDate, scope, hex.EncodeToString(sum[:])}, "\n")

	key := hmacSHA256([]byte("AWS4"+c.cfg.SecretAccessKey), []byte(dateStamp))
	for _, part := range []string{c.cfg.Region, sigV4Service, "aws4_request"} {
		key = hmacSHA256(key, []byte(part))
	}
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))
	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		sigV4Algorithm, c.cfg.AccessKeyID, scope, signedHeaders, signature))
}

func contentType(key string) string {
	if strings.HasSuffix(key, ".zst") {
		return "application/zstd"
	}
	return "application/octet-stream"
}

func normalizeObjectKey(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(strings.ReplaceAll(key, "\\", "/")), "/")
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "." || clean == "" {
		return ""
	}
	return clean
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}
