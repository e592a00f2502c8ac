package results

import "errors"

// ErrNoDownloader is returned when results must be offered for download but no
// Downloader was configured.
var ErrNoDownloader = errors.New("no downloader configured")
