package status

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(NodeNotFound, `no node with id "n1"`),
			want: `NodeNotFound: no node with id "n1"`,
		},
		{
			name: "with cause",
			err:  Wrap(DownloadFailed, errors.New("connection refused"), "fetching model"),
			want: "DownloadFailed: fetching model: connection refused",
		},
		{
			name: "formatted",
			err:  Newf(InvalidArguments, "scale %v out of range", -1.0),
			want: "InvalidArguments: scale -1 out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", New(FileNotFound, "no such file"))
	deep := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Wrap(CacheError, fs.ErrPermission, "clearing")))

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"direct", New(NotSupported, "no AR"), NotSupported},
		{"wrapped once", wrapped, FileNotFound},
		{"wrapped deep", deep, CacheError},
		{"plain error", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("place: %w", New(NodeNotFound, "gone"))
	if !Is(err, NodeNotFound) {
		t.Error("Is(err, NodeNotFound) = false, want true")
	}
	if Is(err, DownloadFailed) {
		t.Error("Is(err, DownloadFailed) = true, want false")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(FileNotFound, cause, "stat")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is through *Error failed to reach the cause")
	}
}

func TestConvert(t *testing.T) {
	if Convert(nil) != nil {
		t.Error("Convert(nil) != nil")
	}
	se := New(InvalidURL, "bad scheme")
	if got := Convert(fmt.Errorf("parse: %w", se)); got.Code != InvalidURL {
		t.Errorf("Convert kept code %q, want %q", got.Code, InvalidURL)
	}
	if got := Convert(errors.New("boom")); got.Code != Unknown {
		t.Errorf("Convert(plain) code = %q, want Unknown", got.Code)
	}
}
