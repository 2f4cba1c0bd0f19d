package objectclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanArchiveKey(t *testing.T) {
	assert.Equal(t, "users/u1/scans/s1/lease.pdf", ScanArchiveKey("u1", "s1", "lease.pdf"))
	assert.Equal(t, "users/u1/scans/s1/passwd", ScanArchiveKey("u1", "s1", "../../etc/passwd"))
	assert.Equal(t, "users/u1/scans/s1/my lease.pdf", ScanArchiveKey("u1", "s1", `C:\docs\my lease.pdf`))
	assert.Equal(t, "users/u1/scans/s1/lease.pdf", ScanArchiveKey("u1", "s1", ""))
}

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.us-east-2.amazonaws.com/k/x.pdf", ObjectURL("b", "us-east-2", "k/x.pdf"))
}
