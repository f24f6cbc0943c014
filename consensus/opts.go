package consensus

import "github.com/grailbio/gencore/interval"

// Opts configures the consensus caller.
type Opts struct {
	// Commandline options.
	Input       string
	Output      string
	RefFile     string
	UmiPrefix   string
	UmiFile     string
	MetricsFile string
	JSONFile    string
	BedFile     string

	// ClusterSizeReq is the minimum number of supporting reads for a
	// consensus to be emitted.
	ClusterSizeReq int
	// ProperUmiDiffThreshold is the UMI mismatch tolerance when sub-clustering
	// properly paired reads.
	ProperUmiDiffThreshold int
	// ImproperUmiDiffThreshold is the same for improperly paired, cross-contig
	// and mate-unmapped reads.
	ImproperUmiDiffThreshold int
	// DuplexMismatchThreshold is the maximum number of differing bases between
	// the two strands of a duplex.
	DuplexMismatchThreshold int
	DisableDuplex           bool
	// DuplexOnly drops consensus reads that did not pair into a duplex.
	DuplexOnly bool

	// ScorePercentReq is the share of the total evidence score the winning
	// base must have at a position with more than one competing base.
	ScorePercentReq float64
	// BaseScoreReq is the minimum evidence score of an unopposed base.
	BaseScoreReq    int
	HighQuality     int
	ModerateQuality int
	LowQuality      int

	// Groups larger than SkipLowComplexityClusterThreshold with more than
	// LowComplexityCigarRatio distinct CIGARs per read are checked for low
	// sequence complexity; they are not merged when fewer than
	// LowComplexityNeighborRatio of the adjacent bases of a representative
	// read differ.
	SkipLowComplexityClusterThreshold int
	LowComplexityCigarRatio           float64
	LowComplexityNeighborRatio        float64

	// MaxContig stops processing at the first record whose reference ID is
	// >= MaxContig. Zero means no limit.
	MaxContig int
	// EvictInterval is the number of records between two scans of the
	// cluster index.
	EvictInterval int
	Debug         bool

	// Evidence scores outside the mate overlap, by quality tier.
	ScoreHighQuality     int
	ScoreModerateQuality int
	ScoreLowQuality      int
	ScoreBadQuality      int
	// Evidence scores inside the mate overlap.
	ScoreHighQualityMatch              int
	ScoreLowQualityMatch               int
	ScoreBothHighQualityMismatch       int
	ScoreBothModerateQualityMismatch   int
	ScoreBothLowQualityMismatch        int
	ScoreUnbalancedMismatchHighQuality int
	ScoreUnbalancedMismatchLowQuality  int

	// Data derived from commandline options.
	KnownUmis []byte
	Targets   *interval.BEDUnion
}

// DefaultOpts are the defaults used by the command line.
var DefaultOpts = Opts{
	Input:                    "-",
	Output:                   "-",
	ClusterSizeReq:           1,
	ProperUmiDiffThreshold:   1,
	ImproperUmiDiffThreshold: 0,
	DuplexMismatchThreshold:  2,
	ScorePercentReq:          0.8,
	BaseScoreReq:             6,
	HighQuality:              30,
	ModerateQuality:          20,
	LowQuality:               15,

	SkipLowComplexityClusterThreshold: 1000,
	LowComplexityCigarRatio:           0.1,
	LowComplexityNeighborRatio:        0.5,
	EvictInterval:                     10000,

	ScoreHighQuality:     8,
	ScoreModerateQuality: 6,
	ScoreLowQuality:      4,
	ScoreBadQuality:      2,

	ScoreHighQualityMatch:              12,
	ScoreLowQualityMatch:               10,
	ScoreBothHighQualityMismatch:       3,
	ScoreBothModerateQualityMismatch:   2,
	ScoreBothLowQualityMismatch:        1,
	ScoreUnbalancedMismatchHighQuality: 5,
	ScoreUnbalancedMismatchLowQuality:  0,
}
