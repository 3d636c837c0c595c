package platform

import (
	"errors"
	"testing"

	"socialgate/internal"
)

func TestBrowserClientDetectInvalidation(t *testing.T) {
	c := &BrowserClient{}

	tests := []struct {
		name string
		res  *internal.RawResult
		err  error
		want bool
	}{
		{"bounced to login page", &internal.RawResult{StatusCode: 200, FinalURL: "https://www.tiktok.com/login?redirect_url=x"}, nil, true},
		{"embedded statuscode 8", &internal.RawResult{StatusCode: 200, Body: []byte(`{"statusCode":8,"itemInfo":null}`)}, nil, true},
		{"login_required body", &internal.RawResult{StatusCode: 200, Body: []byte(`{"message":"login_required"}`)}, nil, true},
		{"navigation error to login", nil, errors.New(`page navigated to "https://www.tiktok.com/login"`), true},
		{"missing video page", &internal.RawResult{StatusCode: 200, FinalURL: "https://www.tiktok.com/@a/video/1", Body: []byte(`{"statusCode":10204}`)}, nil, false},
		{"nil outcome", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.DetectInvalidation(tt.res, tt.err); got != tt.want {
				t.Errorf("DetectInvalidation() = %v, want %v", got, tt.want)
			}
		})
	}
}
