package downloads

import "context"

// DownloadResult describes a finished download on disk.
type DownloadResult struct {
	FilePath string
	FileSize int64
}

// Downloader fetches a video into the local filesystem. The output
// template is a yt-dlp path template; the extension placeholder is
// resolved by the tool.
type Downloader interface {
	Download(ctx context.Context, url, format, outputTemplate string) (*DownloadResult, error)
}

// Notifier announces finished downloads. Implementations must not
// block.
type Notifier interface {
	NotifyDownloadCompleted(broadcastTitle, quality, filePath string, fileSize int64)
}
