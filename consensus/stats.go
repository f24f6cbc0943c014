package consensus

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	gbam "github.com/grailbio/gencore/encoding/bam"
	"github.com/grailbio/gencore/interval"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// histogramBins is the number of bins of the supporting read histogram. The
// last bin counts every molecule with at least histogramBins-1 reads.
const histogramBins = 100

// Stats counts reads and molecules on one side of consensus calling. Gencore
// keeps one Stats for its input and one for its output.
type Stats struct {
	// Reads and Bases count the primary records seen.
	Reads, Bases int64
	// MappedReads and MappedBases count the mapped primary records.
	MappedReads, MappedBases int64
	// MismatchedBases is the sum of the NM tags of the mapped records.
	MismatchedBases     int64
	ReadsWithMismatches int64

	// Clusters is the number of groups resolved. MultiMoleculeClusters
	// counts those that held more than one UMI sub-cluster.
	Clusters, MultiMoleculeClusters int64
	// MoleculesSE and MoleculesPE count the molecules found, single-end and
	// paired.
	MoleculesSE, MoleculesPE int64
	// PairsPE is the number of read pairs behind the paired molecules.
	PairsPE int64
	// SupportingHistogram[n] is the number of molecules supported by n reads.
	SupportingHistogram [histogramBins]int64

	// SSCS and DCS count the single strand and duplex consensus fragments
	// emitted.
	SSCS, DCS int64
	// SecondarySupplementary is the number of secondary or supplementary
	// records dropped.
	SecondarySupplementary int64

	// OnTargetReads and OnTargetBases count the mapped records that overlap
	// the target regions, and their aligned bases within them.
	OnTargetReads, OnTargetBases int64
	targets                      *interval.BEDUnion
}

func (s *Stats) addRead(r *sam.Record) {
	n := int64(r.Seq.Length)
	s.Reads++
	s.Bases += n
	if gbam.IsUnmapped(r) {
		return
	}
	s.MappedReads++
	s.MappedBases += n
	if nm, ok := gbam.IntAux(r, editDistanceTag); ok && nm > 0 {
		s.MismatchedBases += int64(nm)
		s.ReadsWithMismatches++
	}
	if s.targets != nil {
		start := interval.PosType(r.Pos)
		if n := s.targets.OverlapByID(r.Ref.ID(), start, start+interval.PosType(gbam.RefLen(r))); n > 0 {
			s.OnTargetReads++
			s.OnTargetBases += int64(n)
		}
	}
}

// OnTargetRate is the share of the mapped reads that overlap the targets.
func (s *Stats) OnTargetRate() float64 { return ratio(s.OnTargetReads, s.MappedReads) }

func (s *Stats) addMolecule(reads int, pe bool) {
	if pe {
		s.MoleculesPE++
		s.PairsPE += int64(reads)
	} else {
		s.MoleculesSE++
	}
	if reads >= histogramBins {
		reads = histogramBins - 1
	}
	if reads < 0 {
		reads = 0
	}
	s.SupportingHistogram[reads]++
}

func (s *Stats) addCluster(multi bool) {
	s.Clusters++
	if multi {
		s.MultiMoleculeClusters++
	}
}

func (s *Stats) addSSCS() { s.SSCS++ }

func (s *Stats) addDCS() { s.DCS++ }

// Molecules returns the number of molecules found.
func (s *Stats) Molecules() int64 { return s.MoleculesSE + s.MoleculesPE }

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// MappingRate is the share of the reads that were mapped.
func (s *Stats) MappingRate() float64 { return ratio(s.MappedReads, s.Reads) }

// DupRate is the share of the mapped reads that duplicate another read of
// the same molecule.
func (s *Stats) DupRate() float64 {
	if s.MappedReads == 0 {
		return 0
	}
	return 1 - ratio(s.MoleculesSE+2*s.MoleculesPE, s.MappedReads)
}

// LibrarySize estimates the number of distinct paired molecules in the
// library. It returns false when no pair duplicates another.
func (s *Stats) LibrarySize() (int64, bool) {
	n, err := estimateLibrarySize(s.PairsPE, s.MoleculesPE)
	if err != nil {
		if err != errNoDuplicates {
			log.Error.Printf("library size: %v", err)
		}
		return 0, false
	}
	return n, true
}

// MismatchRate is the share of the mapped bases that differ from the
// reference.
func (s *Stats) MismatchRate() float64 { return ratio(s.MismatchedBases, s.MappedBases) }

// Print logs a summary of s under the given title.
func (s *Stats) Print(title string) {
	log.Printf("%s:", title)
	log.Printf("  total reads: %d, total bases: %d", s.Reads, s.Bases)
	log.Printf("  mapped reads: %d (%.4f), mapped bases: %d", s.MappedReads, s.MappingRate(), s.MappedBases)
	log.Printf("  mismatched bases: %d (%.6f), reads with mismatches: %d",
		s.MismatchedBases, s.MismatchRate(), s.ReadsWithMismatches)
	if s.Clusters > 0 {
		log.Printf("  clusters: %d, multi-molecule clusters: %d", s.Clusters, s.MultiMoleculeClusters)
	}
	if s.Molecules() > 0 {
		log.Printf("  molecules: %d (%d SE, %d PE), duplication rate: %.4f",
			s.Molecules(), s.MoleculesSE, s.MoleculesPE, s.DupRate())
		if n, ok := s.LibrarySize(); ok {
			log.Printf("  estimated library size: %d", n)
		}
	}
	if s.SSCS+s.DCS > 0 {
		log.Printf("  single strand consensus: %d, duplex consensus: %d", s.SSCS, s.DCS)
	}
	if s.SecondarySupplementary > 0 {
		log.Printf("  secondary/supplementary dropped: %d", s.SecondarySupplementary)
	}
	if s.targets != nil {
		log.Printf("  on-target reads: %d (%.4f), on-target bases: %d",
			s.OnTargetReads, s.OnTargetRate(), s.OnTargetBases)
	}
}

// jsonStats is the layout of one side of the JSON report.
type jsonStats struct {
	TotalReads               int64   `json:"total_reads"`
	TotalBases               int64   `json:"total_bases"`
	MappedReads              int64   `json:"mapped_reads"`
	MappedBases              int64   `json:"mapped_bases"`
	MismatchedBases          int64   `json:"mismatched_bases"`
	ReadsWithMismatchedBases int64   `json:"reads_with_mismatched_bases"`
	MismatchRate             float64 `json:"mismatch_rate"`
	TotalMappingClusters     int64   `json:"total_mapping_clusters,omitempty"`
	MultipleFragmentClusters int64   `json:"multiple_fragments_clusters,omitempty"`
	TotalFragments           int64   `json:"total_fragments,omitempty"`
	SingleEndFragments       int64   `json:"single_end_fragments,omitempty"`
	PairedEndFragments       int64   `json:"paired_end_fragments,omitempty"`
	DuplicationRate          float64 `json:"duplication_rate,omitempty"`
	SSCS                     int64   `json:"single_strand_consensus,omitempty"`
	DCS                      int64   `json:"duplex_consensus,omitempty"`
	DuplicationLevels        []int64 `json:"duplication_level_histogram,omitempty"`
	OnTargetReads            int64   `json:"on_target_reads,omitempty"`
	OnTargetBases            int64   `json:"on_target_bases,omitempty"`
}

func (s *Stats) jsonStats(withMolecules bool) jsonStats {
	j := jsonStats{
		TotalReads:               s.Reads,
		TotalBases:               s.Bases,
		MappedReads:              s.MappedReads,
		MappedBases:              s.MappedBases,
		MismatchedBases:          s.MismatchedBases,
		ReadsWithMismatchedBases: s.ReadsWithMismatches,
		MismatchRate:             s.MismatchRate(),
		TotalMappingClusters:     s.Clusters,
		MultipleFragmentClusters: s.MultiMoleculeClusters,
		SSCS:                     s.SSCS,
		DCS:                      s.DCS,
		OnTargetReads:            s.OnTargetReads,
		OnTargetBases:            s.OnTargetBases,
	}
	if withMolecules {
		j.TotalFragments = s.Molecules()
		j.SingleEndFragments = s.MoleculesSE
		j.PairedEndFragments = s.MoleculesPE
		j.DuplicationRate = s.DupRate()
		// Trim trailing empty bins.
		last := 0
		for i, n := range s.SupportingHistogram {
			if n > 0 {
				last = i
			}
		}
		j.DuplicationLevels = append([]int64(nil), s.SupportingHistogram[:last+1]...)
	}
	return j
}

// createFile opens path for writing, gzip-compressed when the path ends in
// .gz. The returned function closes both.
func createFile(ctx context.Context, path string) (io.Writer, func() error, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "couldn't create", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f.Writer(ctx), func() error { return f.Close(ctx) }, nil
	}
	gz := gzip.NewWriter(f.Writer(ctx))
	return gz, func() error {
		var e errors.Once
		e.Set(gz.Close())
		e.Set(f.Close(ctx))
		return e.Err()
	}, nil
}

// writeJSON writes the before/after report to path.
func writeJSON(ctx context.Context, path string, pre, post *Stats) (err error) {
	w, closer, err := createFile(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := closer(); err == nil && err2 != nil {
			err = err2
		}
	}()
	report := struct {
		Before jsonStats `json:"before_processing"`
		After  jsonStats `json:"after_processing"`
	}{pre.jsonStats(true), post.jsonStats(false)}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err = enc.Encode(&report); err != nil {
		return errors.E(err, "error writing", path)
	}
	return nil
}

// writeMetrics writes one row per metric, with the input and the output
// values side by side.
func writeMetrics(ctx context.Context, path string, pre, post *Stats) (err error) {
	w, closer, err := createFile(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := closer(); err == nil && err2 != nil {
			err = err2
		}
	}()
	tw := tsv.NewWriter(w)
	tw.WriteString("METRIC\tINPUT\tOUTPUT")
	if err = tw.EndLine(); err != nil {
		return errors.E(err, "error writing", path)
	}
	float := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	librarySize := "."
	if n, ok := pre.LibrarySize(); ok {
		librarySize = itoa(n)
	}
	type row struct {
		name      string
		pre, post string
	}
	rows := []row{
		{"TOTAL_READS", itoa(pre.Reads), itoa(post.Reads)},
		{"TOTAL_BASES", itoa(pre.Bases), itoa(post.Bases)},
		{"MAPPED_READS", itoa(pre.MappedReads), itoa(post.MappedReads)},
		{"MAPPED_BASES", itoa(pre.MappedBases), itoa(post.MappedBases)},
		{"MAPPING_RATE", float(pre.MappingRate()), float(post.MappingRate())},
		{"MISMATCHED_BASES", itoa(pre.MismatchedBases), itoa(post.MismatchedBases)},
		{"READS_WITH_MISMATCHES", itoa(pre.ReadsWithMismatches), itoa(post.ReadsWithMismatches)},
		{"MISMATCH_RATE", float(pre.MismatchRate()), float(post.MismatchRate())},
		{"CLUSTERS", itoa(pre.Clusters), itoa(post.Clusters)},
		{"MULTI_MOLECULE_CLUSTERS", itoa(pre.MultiMoleculeClusters), itoa(post.MultiMoleculeClusters)},
		{"MOLECULES_SE", itoa(pre.MoleculesSE), "."},
		{"MOLECULES_PE", itoa(pre.MoleculesPE), "."},
		{"DUPLICATION_RATE", float(pre.DupRate()), "."},
		{"ESTIMATED_LIBRARY_SIZE", librarySize, "."},
		{"SSCS", ".", itoa(post.SSCS)},
		{"DCS", ".", itoa(post.DCS)},
		{"SECONDARY_OR_SUPPLEMENTARY", itoa(pre.SecondarySupplementary), "."},
	}
	if pre.targets != nil {
		rows = append(rows,
			row{"ON_TARGET_READS", itoa(pre.OnTargetReads), itoa(post.OnTargetReads)},
			row{"ON_TARGET_BASES", itoa(pre.OnTargetBases), itoa(post.OnTargetBases)},
			row{"ON_TARGET_RATE", float(pre.OnTargetRate()), float(post.OnTargetRate())})
	}
	for n, count := range pre.SupportingHistogram {
		if count > 0 {
			rows = append(rows, row{"MOLECULES_WITH_" + strconv.Itoa(n) + "_READS", itoa(count), "."})
		}
	}
	for _, r := range rows {
		tw.WriteString(r.name)
		tw.WriteString(r.pre)
		tw.WriteString(r.post)
		if err = tw.EndLine(); err != nil {
			return errors.E(err, "error writing", path)
		}
	}
	if err = tw.Flush(); err != nil {
		return errors.E(err, "error writing", path)
	}
	return nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
