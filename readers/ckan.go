//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of sragetl.
//
// sragetl is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// sragetl is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with sragetl. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// DefaultCKANURL is the open data portal that publishes the SRAG datasets.
const DefaultCKANURL = "https://opendatasus.saude.gov.br/"

// DefaultSRAGDatasets are the yearly hospitalization datasets.
var DefaultSRAGDatasets = []string{"bd-srag-2020", "bd-srag-2021"}

// CKANError provides structured error information for CKAN operations.
type CKANError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *CKANError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ckan %s %s (status %d): %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ckan %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *CKANError) Unwrap() error {
	return e.Err
}

// CKANResource is one file attached to a dataset.
type CKANResource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Format string `json:"format"`
	URL    string `json:"url"`
}

// CKANPackage is the subset of package_show the downloader needs.
type CKANPackage struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Resources []CKANResource `json:"resources"`
}

type ckanResponse struct {
	Success bool        `json:"success"`
	Result  CKANPackage `json:"result"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"__type"`
	} `json:"error"`
}

// CKANOptions configures the CKAN client.
type CKANOptions struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgent     string
	Client        *http.Client
	Logger        *slog.Logger
}

// CKANOption is a functional option.
type CKANOption func(*CKANOptions)

func WithCKANURL(u string) CKANOption {
	return func(o *CKANOptions) { o.BaseURL = u }
}

func WithCKANRetries(attempts int, delay time.Duration) CKANOption {
	return func(o *CKANOptions) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

func WithCKANClient(client *http.Client) CKANOption {
	return func(o *CKANOptions) { o.Client = client }
}

func WithCKANLogger(logger *slog.Logger) CKANOption {
	return func(o *CKANOptions) { o.Logger = logger }
}

// CKANClient discovers dataset resources through the CKAN action API and
// downloads them.
type CKANClient struct {
	opts   CKANOptions
	client *http.Client
}

// NewCKANClient creates a client with retries and a request timeout.
func NewCKANClient(options ...CKANOption) *CKANClient {
	opts := CKANOptions{
		BaseURL:       DefaultCKANURL,
		Timeout:       30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		UserAgent:     "sragetl/1.0",
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &CKANClient{opts: opts, client: client}
}

// PackageShow calls the package_show action for a dataset id or name.
func (c *CKANClient) PackageShow(ctx context.Context, id string) (*CKANPackage, error) {
	endpoint := strings.TrimSuffix(c.opts.BaseURL, "/") + "/api/3/action/package_show?id=" + url.QueryEscape(id)

	var pkg *CKANPackage
	err := c.withRetry(ctx, endpoint, func() error {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var body ckanResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return &CKANError{Op: "decode", URL: endpoint, Err: err}
		}
		if !body.Success {
			msg := "request failed"
			if body.Error != nil {
				msg = body.Error.Message
			}
			return &CKANError{Op: "package_show", URL: endpoint, Err: fmt.Errorf("%s", msg)}
		}
		pkg = &body.Result
		return nil
	})
	return pkg, err
}

// CSVResources lists the URLs of a dataset's CSV resources in order.
func (c *CKANClient) CSVResources(ctx context.Context, dataset string) ([]string, error) {
	pkg, err := c.PackageShow(ctx, dataset)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, r := range pkg.Resources {
		if strings.EqualFold(r.Format, "CSV") {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

// DownloadTarget is the local file a resource URL is saved to: its base
// name plus .gz.
func DownloadTarget(dir, resourceURL string) string {
	name := resourceURL
	if u, err := url.Parse(resourceURL); err == nil && u.Path != "" {
		name = u.Path
	}
	return filepath.Join(dir, path.Base(name)+".gz")
}

// Download fetches a resource into dest, gzip-compressing it unless the
// server already sent gzip. It reports whether a download happened; with
// skipExisting an existing dest is kept.
func (c *CKANClient) Download(ctx context.Context, resourceURL, dest string, skipExisting bool) (bool, error) {
	if skipExisting {
		if info, err := os.Stat(dest); err == nil && !info.IsDir() {
			c.opts.Logger.Info("skipping existing download", "file", dest)
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, &CKANError{Op: "create_directory", URL: resourceURL, Err: err}
	}

	err := c.withRetry(ctx, resourceURL, func() error {
		resp, err := c.get(ctx, resourceURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return c.save(resp.Body, resourceURL, dest)
	})
	if err != nil {
		return false, err
	}
	c.opts.Logger.Info("downloaded resource", "url", resourceURL, "file", dest)
	return true, nil
}

// save writes body to a temporary file next to dest and renames it into
// place once complete.
func (c *CKANClient) save(body io.Reader, resourceURL, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return &CKANError{Op: "create_file", URL: resourceURL, Err: err}
	}
	defer os.Remove(tmp.Name())

	src, closers, err := maybeGzip(io.NopCloser(body))
	if err != nil {
		tmp.Close()
		return &CKANError{Op: "download", URL: resourceURL, Err: err}
	}
	// Always store compressed; maybeGzip unwrapped any server-side gzip.
	gz := gzip.NewWriter(tmp)
	_, copyErr := io.Copy(gz, src)
	for _, cl := range closers {
		cl.Close()
	}
	if copyErr != nil {
		tmp.Close()
		return &CKANError{Op: "download", URL: resourceURL, Err: copyErr}
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return &CKANError{Op: "compress", URL: resourceURL, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &CKANError{Op: "close_file", URL: resourceURL, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &CKANError{Op: "rename", URL: resourceURL, Err: err}
	}
	return nil
}

// FetchDatasets downloads the first CSV resource of every dataset into dir
// and returns the local file names in dataset order.
func (c *CKANClient) FetchDatasets(ctx context.Context, datasets []string, dir string, skipExisting bool) ([]string, error) {
	files := make([]string, 0, len(datasets))
	for _, dataset := range datasets {
		urls, err := c.CSVResources(ctx, dataset)
		if err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			return nil, &CKANError{Op: "resources", URL: dataset, Err: fmt.Errorf("dataset has no CSV resource")}
		}
		dest := DownloadTarget(dir, urls[0])
		if _, err := c.Download(ctx, urls[0], dest, skipExisting); err != nil {
			return nil, err
		}
		files = append(files, dest)
	}
	return files, nil
}

func (c *CKANClient) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &CKANError{Op: "create_request", URL: target, Err: err}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CKANError{Op: "request", URL: target, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &CKANError{
			Op:         "status_check",
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
	return resp, nil
}

// withRetry retries fn with exponential backoff on transport errors, 429
// and 5xx responses.
func (c *CKANClient) withRetry(ctx context.Context, target string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			c.opts.Logger.Warn("retrying request", "url", target, "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var ckanErr *CKANError
		if errors.As(err, &ckanErr) {
			switch {
			case ckanErr.StatusCode == http.StatusTooManyRequests, ckanErr.StatusCode >= 500:
				continue
			case ckanErr.Op == "request" || ckanErr.Op == "download":
				continue
			}
		}
		break
	}
	return lastErr
}
