// Package results names a results payload and routes it either to the server or
// to a local download.
//
// Keys follow {experiment name}_SESSION_{YYYY-MM-DD_HHhMM.SS.mmm}.csv in local
// time. Uploads happen only for a RUNNING experiment outside of pilot runs;
// everything else is offered through a Downloader with MIME type text/csv.
package results
