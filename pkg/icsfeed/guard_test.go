package icsfeed

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckFeedURLScheme(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https allowed", "https://93.184.216.34/cal.ics", false},
		{"http allowed", "http://93.184.216.34/cal.ics", false},
		{"ftp rejected", "ftp://93.184.216.34/cal.ics", true},
		{"file rejected", "file:///etc/passwd", true},
		{"gopher rejected", "gopher://93.184.216.34/", true},
		{"no host", "https:///cal.ics", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFeedURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckFeedURLBlocksInternalAddresses(t *testing.T) {
	// IP-literal hosts resolve without DNS, so the full matrix is testable
	// offline.
	blocked := []string{
		"http://127.0.0.1/cal.ics",
		"http://127.8.8.8/cal.ics",
		"http://10.0.0.5/cal.ics",
		"http://172.16.0.1/cal.ics",
		"http://192.168.1.10/cal.ics",
		"http://169.254.169.254/latest/meta-data/", // cloud metadata endpoint
		"http://0.0.0.0/cal.ics",
		"http://224.0.0.1/cal.ics",
		"http://100.64.0.1/cal.ics", // carrier-grade NAT
		"http://100.127.255.255/cal.ics",
		"http://[::1]/cal.ics",
		"http://[fe80::1]/cal.ics",
		"http://[fd00::1]/cal.ics",
	}

	for _, url := range blocked {
		assert.Error(t, CheckFeedURL(url), "expected %s to be blocked", url)
	}
}

func TestCheckFeedURLAllowsPublicAddresses(t *testing.T) {
	allowed := []string{
		"https://93.184.216.34/cal.ics",
		"https://8.8.8.8/cal.ics",
		"http://100.128.0.1/cal.ics", // just outside the CGNAT /10
		"https://[2001:4860:4860::8888]/cal.ics",
	}

	for _, url := range allowed {
		assert.NoError(t, CheckFeedURL(url), "expected %s to be allowed", url)
	}
}

func TestCheckIPBoundaries(t *testing.T) {
	assert.Error(t, checkIP(net.ParseIP("100.64.0.0")))
	assert.Error(t, checkIP(net.ParseIP("100.127.255.255")))
	assert.NoError(t, checkIP(net.ParseIP("100.63.255.255")))
	assert.NoError(t, checkIP(net.ParseIP("100.128.0.0")))
}
