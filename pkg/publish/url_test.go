package publish_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagehost/pagehost/pkg/publish"
)

func TestURLBuilder_PageURL(t *testing.T) {
	const key = "aBcDeFgHiJkLmNoPqRsTuV-report"

	tests := []struct {
		name    string
		builder publish.URLBuilder
		key     string
		token   string
		want    string
	}{
		{
			name:    "virtual hosted default region",
			builder: publish.URLBuilder{Bucket: "alice-pagehost"},
			key:     key,
			want:    "https://alice-pagehost.s3.us-east-1.amazonaws.com/" + key,
		},
		{
			name:    "virtual hosted with region",
			builder: publish.URLBuilder{Bucket: "alice-pagehost", Region: "eu-west-1"},
			key:     key,
			want:    "https://alice-pagehost.s3.eu-west-1.amazonaws.com/" + key,
		},
		{
			name:    "path style",
			builder: publish.URLBuilder{Bucket: "alice-pagehost", Region: "eu-west-1", PathStyle: true},
			key:     key,
			want:    "https://s3.eu-west-1.amazonaws.com/alice-pagehost/" + key,
		},
		{
			name:    "custom endpoint is always path style",
			builder: publish.URLBuilder{Bucket: "pages", Endpoint: "http://localhost:9000/"},
			key:     key,
			want:    "http://localhost:9000/pages/" + key,
		},
		{
			name:    "base url overrides everything",
			builder: publish.URLBuilder{Bucket: "pages", Endpoint: "http://localhost:9000", BaseURL: "https://pages.example.com/"},
			key:     key,
			want:    "https://pages.example.com/" + key,
		},
		{
			name:    "token appended",
			builder: publish.URLBuilder{BaseURL: "https://pages.example.com"},
			key:     key,
			token:   "tok_1234567890",
			want:    "https://pages.example.com/" + key + "?token=tok_1234567890",
		},
		{
			name:    "prefix segments escaped",
			builder: publish.URLBuilder{BaseURL: "https://pages.example.com"},
			key:     "teams/Q3 review/" + key,
			want:    "https://pages.example.com/teams/Q3%20review/" + key,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.builder.PageURL(tt.key, tt.token))
		})
	}
}
