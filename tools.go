//go:build tools
// +build tools

// Package tools pins the versions of the binaries used to lint and test
// exar. `go run github.com/onsi/ginkgo/ginkgo -r` runs every suite.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/onsi/ginkgo/ginkgo"
)
