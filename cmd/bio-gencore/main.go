package main

/*
  bio-gencore merges the reads of each sequenced molecule of a
  coordinate-sorted, UMI-tagged BAM file into consensus reads. For more
  information, see github.com/grailbio/gencore/consensus/doc.go
*/

import (
	"flag"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gencore/consensus"
	"github.com/grailbio/gencore/encoding/bamprovider"
)

var (
	defaults = consensus.DefaultOpts

	input       = flag.String("in", defaults.Input, "Input BAM or SAM file, sorted by coordinate. '-' reads BAM from stdin")
	output      = flag.String("out", defaults.Output, "Output file, BAM unless the name ends in .sam. '-' writes BAM to stdout")
	refFile     = flag.String("ref", "", "Reference FASTA file, optionally gzipped. If <ref>.fai exists it is used to load contigs on demand")
	umiPrefix   = flag.String("umi_prefix", "", "The prefix of the UMI in the read name, e.g. 'UMI' for ...:UMI_AAGTCC")
	umiFile     = flag.String("umi_file", "", "Snap UMIs to the known UMIs in this file, one per line")
	metricsFile = flag.String("metrics", "", "Output metrics file, gzipped if the name ends in .gz")
	jsonFile    = flag.String("json", "", "Output JSON report")
	bedFile     = flag.String("bed", "", "BED file of the target regions, optionally gzipped. Adds on-target counts to the reports")

	supportingReads     = flag.Int("supporting_reads", defaults.ClusterSizeReq, "Only output consensus reads supported by at least this many reads (1-10)")
	umiDiffThreshold    = flag.Int("umi_diff_threshold", defaults.ProperUmiDiffThreshold, "UMIs of properly paired reads that differ by at most this many bases are clustered together (0-10)")
	improperUmiDiff     = flag.Int("improper_umi_diff_threshold", defaults.ImproperUmiDiffThreshold, "The same for improperly paired, mate-unmapped and cross-contig reads (0-10)")
	duplexDiffThreshold = flag.Int("duplex_diff_threshold", defaults.DuplexMismatchThreshold, "A duplex is dropped if its strands differ at more than this many bases (0-10)")
	noDuplex            = flag.Bool("no_duplex", false, "Do not merge complementary strands into duplex consensus reads")
	duplexOnly          = flag.Bool("duplex_only", false, "Only output duplex consensus reads")

	ratioThreshold = flag.Float64("ratio_threshold", defaults.ScorePercentReq, "A contested base wins if its score is at least this share of the total score (0.5-1.0)")
	scoreThreshold = flag.Int("score_threshold", defaults.BaseScoreReq, "An uncontested base wins if its score is at least this (1-10)")
	highQual       = flag.Int("high_qual", defaults.HighQuality, "Base quality considered high (20-40)")
	moderateQual   = flag.Int("moderate_qual", defaults.ModerateQuality, "Base quality considered moderate (15-35)")
	lowQual        = flag.Int("low_qual", defaults.LowQuality, "Base quality considered low (8-30)")

	quitAfterContig = flag.Int("quit_after_contig", 0, "Stop at the first record on a contig with ID >= this. 0 processes everything")
	evictInterval   = flag.Int("evict_interval", defaults.EvictInterval, "Number of records between two scans for finished clusters")
	debug           = flag.Bool("debug", false, "Log details of consensus calling")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})

	// Validate parameters.
	if flag.NArg() > 0 {
		a := flag.Args()
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(a[len(a)-flag.NArg():], " "))
	}

	opts := consensus.DefaultOpts
	opts.Input = *input
	opts.Output = *output
	opts.RefFile = *refFile
	opts.UmiPrefix = *umiPrefix
	opts.UmiFile = *umiFile
	opts.MetricsFile = *metricsFile
	opts.JSONFile = *jsonFile
	opts.BedFile = *bedFile
	opts.ClusterSizeReq = *supportingReads
	opts.ProperUmiDiffThreshold = *umiDiffThreshold
	opts.ImproperUmiDiffThreshold = *improperUmiDiff
	opts.DuplexMismatchThreshold = *duplexDiffThreshold
	opts.DisableDuplex = *noDuplex
	opts.DuplexOnly = *duplexOnly
	opts.ScorePercentReq = *ratioThreshold
	opts.BaseScoreReq = *scoreThreshold
	opts.HighQuality = *highQual
	opts.ModerateQuality = *moderateQual
	opts.LowQuality = *lowQual
	opts.MaxContig = *quitAfterContig
	opts.EvictInterval = *evictInterval
	opts.Debug = *debug

	provider := bamprovider.NewProvider(opts.Input)
	ctx := vcontext.Background()
	if err := consensus.SetupAndRun(ctx, provider, &opts); err != nil {
		log.Fatalf(err.Error())
	}
	if err := provider.Close(); err != nil {
		log.Fatalf(err.Error())
	}
	log.Debug.Printf("exiting")
}
