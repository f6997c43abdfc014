// Package download implements chunked media retrieval with atomic
// promotion of completed files, plus cleanup of interrupted transfers.
package download

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pget-dev/pget/model"
)

const (
	// ChunkSize is the read granularity for media transfers.
	ChunkSize = 32 * 1024

	// TempSuffix marks in-progress downloads; stall cleanup removes
	// files carrying it.
	TempSuffix = ".downloading"

	// progressEvery is the chunk cadence for progress reports.
	progressEvery = 32
)

// Status is the outcome of a single download attempt.
type Status int

const (
	// StatusCompleted means the file was fully transferred and renamed
	// into place.
	StatusCompleted Status = iota
	// StatusSkipped means the final file already existed; no network
	// call was made.
	StatusSkipped
	// StatusFailed means the transfer did not produce a final file. At
	// most a temp artifact remains.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes the outcome of one download attempt.
type Result struct {
	Status Status
	Name   string
	Path   string
	Bytes  int64
}

// Engine performs chunked HTTP downloads into a destination directory.
type Engine struct {
	Client  *http.Client
	Out     io.Writer
	Verbose bool
	Tell    bool
}

// NewEngine creates an Engine writing status output to stdout. The client
// bounds dialing, TLS and response headers but not the transfer itself, so
// long downloads are not cut off.
func NewEngine() *Engine {
	return &Engine{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		Out: os.Stdout,
	}
}

// Download retrieves the item's media into dir. The final file appears only
// after the full declared length has been written to a temp file and the
// temp file renamed; every other outcome leaves at most a temp artifact.
func (e *Engine) Download(item *model.Item, dir string) (Result, error) {
	name := item.Filename()
	finalPath := filepath.Join(dir, name)
	result := Result{Status: StatusFailed, Name: name, Path: finalPath}

	if _, err := os.Stat(finalPath); err == nil {
		if e.Verbose {
			fmt.Fprintf(e.Out, "%s already downloaded\n", name)
		}
		result.Status = StatusSkipped
		return result, nil
	}

	if e.Verbose {
		fmt.Fprintf(e.Out, "Starting download of %s\n", item.Title)
	}

	resp, err := e.Client.Get(item.MediaURL)
	if err != nil {
		return result, fmt.Errorf("failed to get %s: %w", item.MediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("status %d is currently unsupported", resp.StatusCode)
	}

	length := resp.ContentLength
	if length < 0 {
		return result, fmt.Errorf("response for %s has no Content-Length", item.MediaURL)
	}

	tmpPath := finalPath + TempSuffix
	written, err := e.copyChunks(resp.Body, tmpPath, length)
	result.Bytes = written
	if err != nil {
		return result, err
	}

	if written != length {
		return result, fmt.Errorf("size mismatch: wrote %d of %d bytes", written, length)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return result, fmt.Errorf("failed to promote %s: %w", tmpPath, err)
	}

	if e.Tell {
		fmt.Fprintf(e.Out, "%s downloaded\n", name)
	}
	result.Status = StatusCompleted
	return result, nil
}

// copyChunks streams the body into the temp file in fixed-size chunks,
// reporting progress at the configured cadence. The temp file is left in
// place on every error path.
func (e *Engine) copyChunks(body io.Reader, tmpPath string, length int64) (int64, error) {
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	var written int64
	count := 0
	var stamp time.Time

	for {
		if e.Verbose && count == 0 {
			stamp = time.Now()
		}
		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", tmpPath, err)
			}
			written += int64(n)
			count++
		}
		if e.Verbose && count == progressEvery {
			e.reportProgress(written, length, time.Since(stamp))
			count = 0
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("failed to read response: %w", readErr)
		}
	}
}

// reportProgress prints the percentage transferred and an estimate of the
// remaining time from the average duration of the last progress window.
func (e *Engine) reportProgress(written, length int64, window time.Duration) {
	perChunk := window.Seconds() / float64(progressEvery)
	perc := float64(written) / float64(length) * 100.0
	remChunks := float64(length-written) / float64(ChunkSize)
	remMinutes := perChunk * remChunks / 60.0
	fmt.Fprintf(e.Out, "downloaded %.2f%%\trem time %.1f min\n", perc, remMinutes)
}
