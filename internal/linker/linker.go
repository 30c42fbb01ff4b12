// Package linker builds the argv for the system `cc` linker driver. It
// never execs anything itself: no execution happens here, the caller
// runs it, keeping the separation between building command state and
// running it as a clean boundary any process-spawning caller can own.
package linker

// LTOMode selects the link-time-optimization flag, if any.
type LTOMode int

const (
	LTONone LTOMode = iota
	LTOFull
	LTOThin
)

// Config is everything the linker command needs: the output path, the
// runtime archive to link against, any extra flags, the LTO mode, and
// optional profile-guided-optimization generate/use settings.
type Config struct {
	Output         string
	RuntimeArchive string
	ExtraArgs      []string
	LTO            LTOMode
	PGOGenerate    bool
	PGOUsePath     string
}

// BuildArgv returns the argv for invoking the system cc, in this exact
// order:
//
//	[cc, object, runtime_archive, -o, output, (-flto | -flto=thin)?,
//	 -fprofile-generate?, -fprofile-use=path?, extra_args...]
func BuildArgv(object string, cfg Config) []string {
	argv := []string{"cc", object, cfg.RuntimeArchive, "-o", cfg.Output}

	switch cfg.LTO {
	case LTOFull:
		argv = append(argv, "-flto")
	case LTOThin:
		argv = append(argv, "-flto=thin")
	}

	if cfg.PGOGenerate {
		argv = append(argv, "-fprofile-generate")
	}
	if cfg.PGOUsePath != "" {
		argv = append(argv, "-fprofile-use="+cfg.PGOUsePath)
	}

	argv = append(argv, cfg.ExtraArgs...)
	return argv
}
