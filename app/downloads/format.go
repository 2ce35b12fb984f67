package downloads

import (
	"fmt"
	"strings"

	"github.com/krailo/streamwatch/app/database"
)

// lowQualityFormat grabs a small preview copy quickly. Format 18 is
// the classic 360p mp4 that nearly every video still offers.
const lowQualityFormat = "18/best[height<=480]/best[height<=720]/worst/best"

// highQualityLadder lists the resolutions tried for the archival copy,
// best first.
var highQualityLadder = []int{2160, 1440, 1080, 720}

// FormatSelector builds a yt-dlp format string for the job's quality
// tier. maxHeight caps the archival resolution; zero means no cap.
func FormatSelector(quality string, maxHeight int) string {
	if quality == database.QualityLow {
		return lowQualityFormat
	}
	return highQualityFormat(maxHeight)
}

func highQualityFormat(maxHeight int) string {
	var parts []string
	for _, height := range highQualityLadder {
		if maxHeight > 0 && height > maxHeight {
			continue
		}
		parts = append(parts,
			fmt.Sprintf("bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]", height))
	}
	parts = append(parts, "best[ext=mp4]", "best")
	return strings.Join(parts, "/")
}
