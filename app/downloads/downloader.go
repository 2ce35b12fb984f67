package downloads

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// videoExtensions are the container formats a finished download may
// end up in, checked in preference order when the exact output path
// has to be located by globbing.
var videoExtensions = []string{".mp4", ".webm", ".mkv", ".flv", ".m4v", ".avi", ".mov"}

// auxiliaryExtensions are sidecar files yt-dlp may leave next to the
// video.
var auxiliaryExtensions = []string{".json", ".description", ".jpg", ".png", ".webp", ".part", ".ytdl"}

// YtdlpDownloader shells out to yt-dlp for the actual download.
type YtdlpDownloader struct{}

var _ Downloader = (*YtdlpDownloader)(nil)

func NewYtdlpDownloader() *YtdlpDownloader {
	return &YtdlpDownloader{}
}

func (d *YtdlpDownloader) Download(ctx context.Context, url, format, outputTemplate string) (*DownloadResult, error) {
	dl := ytdlp.New().
		Output(outputTemplate).
		RestrictFilenames().
		NoWarnings()
	if format != "" {
		dl = dl.Format(format)
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}

	path := extractedFilename(result)
	if path == "" {
		path = locateByTemplate(outputTemplate)
	}
	if path == "" {
		return nil, fmt.Errorf("download of %s finished but no output file found", url)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat downloaded file %s: %w", path, err)
	}

	return &DownloadResult{FilePath: path, FileSize: stat.Size()}, nil
}

// extractedFilename reads the output path from yt-dlp's own metadata.
func extractedFilename(result *ytdlp.Result) string {
	infos, err := result.GetExtractedInfo()
	if err != nil {
		slog.Debug("Failed to parse extracted info", "error", err)
		return ""
	}
	for _, info := range infos {
		if info.Filename != nil && *info.Filename != "" {
			if _, err := os.Stat(*info.Filename); err == nil {
				return *info.Filename
			}
		}
	}
	return ""
}

// locateByTemplate falls back to globbing for the output file when the
// metadata did not name it. The extension placeholder at the end of
// the template is replaced by a wildcard.
func locateByTemplate(outputTemplate string) string {
	base := strings.TrimSuffix(outputTemplate, ".%(ext)s")
	matches, err := filepath.Glob(base + ".*")
	if err != nil || len(matches) == 0 {
		return ""
	}

	// Prefer proper video containers over whatever sidecars matched.
	for _, ext := range videoExtensions {
		for _, m := range matches {
			if strings.EqualFold(filepath.Ext(m), ext) {
				return m
			}
		}
	}

	for _, m := range matches {
		if !isAuxiliary(m) {
			return m
		}
	}
	return ""
}

func isAuxiliary(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, aux := range auxiliaryExtensions {
		if ext == aux {
			return true
		}
	}
	return false
}
