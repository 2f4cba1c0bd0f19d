package objectclient

import (
	"fmt"
	"path"
	"strings"
)

// ObjectURL is the virtual-hosted style URL of an object.
func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// ScanArchiveKey is where the uploaded lease of a scan is archived.
func ScanArchiveKey(userID, scanID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "lease.pdf"
	}
	return path.Join("users", userID, "scans", scanID, name)
}
