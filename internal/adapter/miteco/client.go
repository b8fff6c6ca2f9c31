// Package miteco retrieves the reservoir database archive published by the
// ministry and extracts the Access database it contains.
package miteco

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// zipName is the temporary archive name inside the work directory.
	zipName = "temp_embalses.zip"
	// DatabaseName is the standard name given to the extracted database,
	// regardless of how the entry is named inside the archive.
	DatabaseName = "BD-Embalses.mdb"
)

// ErrNoDatabaseInArchive reports a ZIP that contains no .mdb entry.
var ErrNoDatabaseInArchive = errors.New("no .mdb file inside the MITECO archive")

// Client downloads the zipped reservoir database.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a downloader for the given archive URL.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch downloads the archive into workDir, extracts the first .mdb entry
// (case-insensitive, any depth) under [DatabaseName], deletes the archive,
// and returns the path to the extracted database.
func (c *Client) Fetch(ctx context.Context, workDir string) (string, error) {
	zipPath := filepath.Join(workDir, zipName)
	if err := c.download(ctx, zipPath); err != nil {
		return "", err
	}

	mdbPath := filepath.Join(workDir, DatabaseName)
	entry, err := extractDatabase(zipPath, mdbPath)
	if err != nil {
		os.Remove(zipPath)
		return "", err
	}

	// The archive is only needed to reach the database inside it.
	if err := os.Remove(zipPath); err != nil {
		c.logger.Warn("could not remove downloaded archive", "path", zipPath, "error", err)
	}

	c.logger.Info("database extracted", "entry", entry, "path", mdbPath)
	return mdbPath, nil
}

func (c *Client) download(ctx context.Context, dest string) error {
	c.logger.Info("downloading reservoir archive", "url", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download archive: unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("save archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close archive file: %w", err)
	}

	c.logger.Info("archive downloaded", "bytes", n)
	return nil
}

// extractDatabase copies the first .mdb entry of the archive to dest and
// returns the entry name. Entries may sit in subdirectories; only the
// extension matters.
func extractDatabase(zipPath, dest string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".mdb") {
			continue
		}

		src, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}

		out, err := os.Create(dest)
		if err != nil {
			src.Close()
			return "", fmt.Errorf("create database file: %w", err)
		}

		_, err = io.Copy(out, src)
		src.Close()
		if err != nil {
			out.Close()
			os.Remove(dest)
			return "", fmt.Errorf("extract %s: %w", f.Name, err)
		}
		if err := out.Close(); err != nil {
			os.Remove(dest)
			return "", fmt.Errorf("close database file: %w", err)
		}
		return f.Name, nil
	}

	return "", ErrNoDatabaseInArchive
}
