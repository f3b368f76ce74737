// pkg/extract/options.go
package extract

import (
	"fmt"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// Options configures an extraction or verification run.
type Options struct {
	// Archive path, its first volume, or the base path of a split set
	ArchivePath string

	// Directory that receives the restored files. Created if missing.
	// Ignored when VerifyOnly is set.
	OutputDir string

	// Password for encrypted archives. Required when the stream header
	// says the archive is encrypted, ignored otherwise.
	Password []byte

	// VerifyOnly decodes and checks every chunk without writing any
	// output files.
	VerifyOnly bool
}

// Validate checks the options.
func (o *Options) Validate() error {
	if o.ArchivePath == "" {
		return fmt.Errorf("%w: archive path is required", szstream.ErrInvalidParameter)
	}
	if !o.VerifyOnly && o.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", szstream.ErrInvalidParameter)
	}
	return nil
}
