// Package config loads the settings of a headless run from environment
// variables prefixed with PAVLOVIA_, optionally seeded from .env files.
//
//	PAVLOVIA_CONFIG_URL=https://run.pavlovia.org/u/exp1/config.json
//	PAVLOVIA_PAGE_URL=https://run.pavlovia.org/u/exp1/?__pilotToken=abc
//	PAVLOVIA_DOWNLOAD_DIR=./downloads
//	PAVLOVIA_S3_BUCKET=results
//	PAVLOVIA_LOG_LEVEL=debug
//
// Variables already present in the process environment win over .env files.
package config
