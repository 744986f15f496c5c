//go:build !linux && !darwin

package tpmutil

import "os"

// poll is a no-op where reads on the TPM handle already block.
func poll(*os.File) error {
	return nil
}
