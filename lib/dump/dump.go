// Package dump writes the three shutdown dumps the jobmanager original
// produces via pickle.dump: the final aggregate, the leftover
// (unprocessed) arguments, and the reported failures. Here they are
// encoded with lib/codec instead of pickle, and filenames default to
// the same YYYY_MM_DD_hh_mm_ss-stamped auto-naming scheme.
package dump

import (
	"fmt"
	"os"
	"time"

	"tcpjobq/lib/codec"
	"tcpjobq/lib/core"
)

// Policy selects whether and where a Dump writes.
type Policy struct {
	// Enabled, if false, makes the Write* functions no-ops. Mirrors passing None for
	// one of the original's fname_for_*_dump parameters.
	Enabled bool
	// Path, if non-empty, is used verbatim instead of an auto-generated
	// name. Mirrors passing an explicit filename instead of 'auto'.
	Path string
}

// Auto is a Policy that writes to an auto-generated, timestamped path.
func Auto() Policy { return Policy{Enabled: true} }

// Disabled is a Policy that never writes.
func Disabled() Policy { return Policy{Enabled: false} }

// Explicit is a Policy that writes to the given path.
func Explicit(path string) Policy { return Policy{Enabled: true, Path: path} }

// now is overridden in tests to make generated filenames deterministic.
var now = time.Now

func autoFilename(suffix string) string {
	t := now()
	stamp := fmt.Sprintf("%04d_%02d_%02d_%02d_%02d_%02d",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	return fmt.Sprintf("%s_%s.dump", stamp, suffix)
}

// resolve returns the path a Write* function should use for the given Policy and
// auto-naming suffix, or ("", false) if nothing should be written.
func resolve(p Policy, suffix string) (string, bool) {
	if !p.Enabled {
		return "", false
	}
	if p.Path != "" {
		return p.Path, true
	}
	return autoFilename(suffix), true
}

// writeEncoded codec-encodes v and writes it to the path resolved for
// (policy, suffix), if any.
func writeEncoded(policy Policy, suffix string, v any) error {
	path, ok := resolve(policy, suffix)
	if !ok {
		return nil
	}
	encoded, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0o644)
}

// WriteAggregate writes the finalized aggregate payload under Policy
// ap, mirroring the original's fname_for_final_result_dump behavior.
func WriteAggregate(ap Policy, payload []byte) error {
	path, ok := resolve(ap, "final_result")
	if !ok {
		return nil
	}
	return os.WriteFile(path, payload, 0o644)
}

// WriteLeftovers writes the Arguments still outstanding when the
// server shut down, mirroring fname_for_args_dump. It is a no-op if
// args is empty, matching the original's "only dump if args_set is
// non-empty" guard.
func WriteLeftovers(lp Policy, args []core.Argument) error {
	if len(args) == 0 {
		return nil
	}
	return writeEncoded(lp, "args", args)
}

// WriteFailures writes the FailureRecords reported over the lifetime
// of the server, mirroring fname_for_fail_dump. It is a no-op if fails
// is empty, matching the original's "only dump if fail_q is non-empty"
// guard.
func WriteFailures(fp Policy, fails []core.FailureRecord) error {
	if len(fails) == 0 {
		return nil
	}
	return writeEncoded(fp, "fail", fails)
}
