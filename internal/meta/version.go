package meta

import (
	"fmt"
	"runtime"
	"strings"
)

// Info describes the build of an exar binary.
//
// It is filled in at build time by the Go linker, see the vars below.
//
type Info struct {
	Version   string
	Build     string
	Branch    string
	BuildTime string
	Platform  string
	GoVersion string
	GoTag     string
}

// These will be filled in using the linker -X flag, e.g.
//
//   go build -ldflags "-X github.com/luma/exar/internal/meta.Version=1.0.0"
//
var (
	// Version as an arbitrary string
	Version string

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	// GoTag is the Go build tags. See https://golang.org/pkg/go/build/#hdr-Build_Constraints
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   Version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		GoTag:     GoTag,
		Platform:  platform,
	}
}

// String renders the info one field per line, leaving out the fields the
// linker did not set.
func (i Info) String() string {
	var b strings.Builder

	version := i.Version
	if version == "" {
		version = "dev"
	}

	fmt.Fprintf(&b, "exar %s\n", version)

	for _, field := range []struct{ name, value string }{
		{"build", i.Build},
		{"branch", i.Branch},
		{"built", i.BuildTime},
		{"tags", i.GoTag},
		{"platform", i.Platform},
		{"go", i.GoVersion},
	} {
		if field.value != "" {
			fmt.Fprintf(&b, "  %-10s%s\n", field.name+":", field.value)
		}
	}

	return b.String()
}
