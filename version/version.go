// Package version reports build information at GET /version.
package version

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/dalemusser/customform/httputil"
	"github.com/go-chi/chi/v5"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dalemusser/customform/version.Version=1.2.0 \
//	                   -X github.com/dalemusser/customform/version.Commit=abc123"
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Info is the JSON body of GET /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build info. Commit and build time fall back to the VCS
// stamp the go command embeds when ldflags did not set them.
func Get() Info {
	once.Do(func() {
		info = Info{
			Version:   Version,
			Commit:    Commit,
			BuildTime: BuildTime,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
		if info.Commit == "" {
			info.Commit = "unknown"
		}
	})
	return info
}

// String is the short form used in startup logs, e.g. "1.2.0 (abc123)".
func String() string {
	i := Get()
	if len(i.Commit) > 12 {
		return i.Version + " (" + i.Commit[:12] + ")"
	}
	return i.Version + " (" + i.Commit + ")"
}

// Mount registers GET /version on r.
func Mount(r chi.Router) {
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Get())
	})
}
