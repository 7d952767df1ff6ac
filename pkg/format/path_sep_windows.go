//go:build windows

package format

const separators = `\/`
