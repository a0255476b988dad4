package check

import "fmt"

const maxJobs = 256

// validate checks the merged options before any file is read.
func validate(opts *Options, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("at least one file or directory must be specified")
	}

	if opts.Jobs <= 0 || opts.Jobs > maxJobs {
		return fmt.Errorf("the 'jobs' flag must be between 1 and %d", maxJobs)
	}

	if opts.MaxFileSize < 0 {
		return fmt.Errorf("the 'max-file-size' flag must not be negative")
	}

	for _, arg := range args {
		if arg == "" {
			return fmt.Errorf("empty path given")
		}
	}

	return nil
}
