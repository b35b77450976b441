//go:build !unix

package archive

import (
	"errors"
	"os"
)

var errNoMmap = errors.New("memory mapping not supported")

func mappedDigest(f *os.File, size int64) (string, error) {
	return "", errNoMmap
}
