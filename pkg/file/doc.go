// Package file stores results payloads that are offered to the user instead of
// being uploaded.
//
// Storage has two implementations: LocalStorage writes below a base directory
// and S3Storage puts objects into a bucket of AWS S3 or any S3-compatible
// service. Downloader adapts either one to the download capability used by the
// results router:
//
//	storage, err := file.NewLocalStorage("./downloads", "")
//	if err != nil {
//		return err
//	}
//	d := file.NewDownloader(storage)
//	location, err := d.Download(ctx, "exp1_SESSION_2024-01-01_12h00.00.000.csv", "text/csv", data)
//
// Paths are always confined to the storage root; anything escaping it fails
// with ErrInvalidPath.
package file
