//go:build !linux && !darwin

package transcribe

import "errors"

func diskFree(dir string) (int64, error) {
	return 0, errors.New("free space check not supported on this platform")
}
