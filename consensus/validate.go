package consensus

import (
	"fmt"
)

func checkRange(name string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%s must be in [%d, %d], got %d", name, min, max, v)
	}
	return nil
}

func validate(opts *Opts) error {
	if opts.Input == "" {
		return fmt.Errorf("you must specify an input file with --in")
	}
	if opts.Output == "" {
		return fmt.Errorf("you must specify an output file with --out")
	}
	if opts.Input != "-" && opts.Input == opts.Output {
		return fmt.Errorf("input and output must be different files")
	}
	if opts.ScorePercentReq < 0.5 || opts.ScorePercentReq > 1.0 {
		return fmt.Errorf("ratio_threshold must be in [0.5, 1.0], got %v", opts.ScorePercentReq)
	}
	for _, c := range []struct {
		name        string
		v, min, max int
	}{
		{"supporting_reads", opts.ClusterSizeReq, 1, 10},
		{"score_threshold", opts.BaseScoreReq, 1, 10},
		{"high_qual", opts.HighQuality, 20, 40},
		{"moderate_qual", opts.ModerateQuality, 15, 35},
		{"low_qual", opts.LowQuality, 8, 30},
		{"umi_diff_threshold", opts.ProperUmiDiffThreshold, 0, 10},
		{"improper_umi_diff_threshold", opts.ImproperUmiDiffThreshold, 0, 10},
		{"duplex_diff_threshold", opts.DuplexMismatchThreshold, 0, 10},
	} {
		if err := checkRange(c.name, c.v, c.min, c.max); err != nil {
			return err
		}
	}
	if opts.LowQuality > opts.ModerateQuality {
		return fmt.Errorf("low_qual (%d) should be <= moderate_qual (%d)", opts.LowQuality, opts.ModerateQuality)
	}
	if opts.ModerateQuality > opts.HighQuality {
		return fmt.Errorf("moderate_qual (%d) should be <= high_qual (%d)", opts.ModerateQuality, opts.HighQuality)
	}
	if opts.DuplexOnly && opts.DisableDuplex {
		return fmt.Errorf("duplex_only and no_duplex are mutually exclusive")
	}
	if opts.MaxContig < 0 {
		return fmt.Errorf("quit_after_contig must be non-negative")
	}
	if opts.EvictInterval <= 0 {
		return fmt.Errorf("evict interval must be positive")
	}
	if opts.UmiFile != "" && opts.KnownUmis == nil {
		return fmt.Errorf("umi_file %s has not been read", opts.UmiFile)
	}
	return nil
}
