package security

import (
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "public https URL", url: "https://news.example.com/feed.xml", wantErr: false},
		{name: "public http URL", url: "http://news.example.com/feed.xml", wantErr: false},
		{name: "empty URL", url: "", wantErr: true},
		{name: "ftp scheme", url: "ftp://example.com/file", wantErr: true},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
		{name: "localhost", url: "http://localhost/feed", wantErr: true},
		{name: "loopback IP", url: "http://127.0.0.1/feed", wantErr: true},
		{name: "private IP", url: "http://192.168.1.10/feed", wantErr: true},
		{name: "metadata IP", url: "http://169.254.169.254/latest/meta-data", wantErr: true},
		{name: "IPv6 loopback", url: "http://[::1]/feed", wantErr: true},
		{name: "missing host", url: "https:///feed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(5*time.Second, 2*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}
