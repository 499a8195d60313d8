// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultOutputDir     = "downloads"
	DefaultFormat        = "mp3"
	DefaultQuality       = "320"
	DefaultWorkers       = 3
	DefaultSearchLimit   = 5
	DefaultBrowseLimit   = 20
	DefaultCacheCapacity = 1000
	DefaultCacheFile     = "youtube_cache.json"
	DefaultYTDLPBinary   = "yt-dlp"
	DefaultHTTPTimeout   = 30 * time.Second
	ImageHTTPTimeout     = 30 * time.Second
	DefaultRetryCount    = 3
	DefaultRetryBase     = 1 * time.Second
	DefaultSearchRate    = 500 * time.Millisecond
)

// Matching
const (
	// DurationTolerance is the fraction of a track's duration a candidate may
	// deviate before the closeness score starts to penalize it.
	DurationTolerance = 0.10
	CatalogBatchSize  = 500
)

// Audio formats accepted for the output file. Only formats the tagging
// layer can write metadata into are allowed.
const (
	FormatMP3  = "mp3"
	FormatFLAC = "flac"
)

// File Extensions
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtJPG  = ".jpg"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Characters to sanitize from filesystem paths
const InvalidPathChars = "<>:\"/\\|?*"
