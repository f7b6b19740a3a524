package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/evanofslack/ovh-reconcile/internal/reconcile"
)

// MockHttpClient implements the Httper interface for testing
type MockHttpClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *MockHttpClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}

const templateYAML = `
templateName: debian12-raid
baseTemplateName: debian12_64
defaultLanguage: en
customHostname: sv1.example.com
postInstallationScriptLink: https://example.com/post.sh
postInstallationScriptReturn: loh1Xee7eo
sshKeyName: deploy
useDistributionKernel: true
partitionScheme: default
partitionSchemePriority: 1
isHardwareRaid: true
raidMode: raid10
partition:
  - filesystem: ext4
    mountpoint: /boot
    size: 512
    step: 1
    type: primary
  - filesystem: ext4
    mountpoint: /
    raid: 1
    size: 20480
    step: 2
    type: lv
`

func expectedSpec() reconcile.TemplateSpec {
	return reconcile.TemplateSpec{
		Name:                         "debian12-raid",
		BaseTemplateName:             "debian12_64",
		DefaultLanguage:              "en",
		CustomHostname:               "sv1.example.com",
		PostInstallationScriptLink:   "https://example.com/post.sh",
		PostInstallationScriptReturn: "loh1Xee7eo",
		SSHKeyName:                   "deploy",
		UseDistributionKernel:        true,
		PartitionScheme:              "default",
		PartitionSchemePriority:      1,
		IsHardwareRaid:               true,
		RaidMode:                     "raid10",
		Partitions: []reconcile.Partition{
			{Filesystem: "ext4", Mountpoint: "/boot", Size: 512, Step: 1, Type: "primary"},
			{Filesystem: "ext4", Mountpoint: "/", Raid: "1", Size: 20480, Step: 2, Type: "lv"},
		},
	}
}

func TestTemplateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yml")
	if err := os.WriteFile(path, []byte(templateYAML), 0o600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	spec, err := New().Template(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(spec, expectedSpec()) {
		t.Errorf("Expected %+v, got %+v", expectedSpec(), spec)
	}
}

func TestTemplateFromURL(t *testing.T) {
	tests := []struct {
		name           string
		mockBody       string
		mockStatusCode int
		mockError      error
		expectError    bool
	}{
		{
			name:           "successful fetch",
			mockBody:       templateYAML,
			mockStatusCode: http.StatusOK,
		},
		{
			name:           "not found",
			mockStatusCode: http.StatusNotFound,
			expectError:    true,
		},
		{
			name:        "request error",
			mockError:   errors.New("connection refused"),
			expectError: true,
		},
		{
			name:           "malformed yaml",
			mockBody:       "partition: [",
			mockStatusCode: http.StatusOK,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotURL string
			c := NewWithHttper(&MockHttpClient{
				DoFunc: func(req *http.Request) (*http.Response, error) {
					gotURL = req.URL.String()
					if tt.mockError != nil {
						return nil, tt.mockError
					}
					return &http.Response{
						StatusCode: tt.mockStatusCode,
						Body:       io.NopCloser(bytes.NewBufferString(tt.mockBody)),
					}, nil
				},
			})

			spec, err := c.Template(context.Background(), "https://templates.example.com/debian12-raid.yml")
			if gotURL != "https://templates.example.com/debian12-raid.yml" {
				t.Errorf("unexpected url %q", gotURL)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(spec, expectedSpec()) {
				t.Errorf("Expected %+v, got %+v", expectedSpec(), spec)
			}
		})
	}
}

func TestTemplateMissingFile(t *testing.T) {
	_, err := New().Template(context.Background(), filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil {
		t.Fatal("Expected error for a missing file")
	}
}
