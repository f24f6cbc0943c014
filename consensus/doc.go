/*Package consensus merges the reads of each DNA molecule of a
  coordinate-sorted, UMI-tagged alignment into consensus reads.

  Clustering Concepts:

  Reads that start and end at the same place are likely copies of the
  same molecule, made by PCR. This package groups them by a cluster key:

    1) a properly paired read is keyed on its contig and on the leftmost
       and rightmost reference positions of its fragment, so that both
       mates of a pair fall into the same group;
    2) any other mapped read (mate unmapped, mate on another contig, or
       zero template length) is keyed on its own position and the
       position of its mate. Only one side of such a pair is in a group;
       the other side lands in a group of its own.

  A group may hold several molecules that happen to align to the same
  place. When reads carry a UMI (the last ':'-separated field of the
  query name, optionally behind a prefix such as "UMI_"), a group is
  split into sub-clusters: each round takes the most frequent remaining
  UMI and collects every remaining fragment whose UMI differs from it by
  at most ProperUmiDiffThreshold (ImproperUmiDiffThreshold for the
  second kind of key) bases.

  Consensus Calling:

  Each sub-cluster is merged into one fragment, independently for the
  left and the right mates. A template is chosen among the mates: the
  read contained in the most others, the shortest on ties. If fewer than
  40% of the reads contain it the side is dropped. The template's bases
  are then voted on position by position. Each read contributes an
  evidence score per base that depends on its quality and, where the two
  mates of a pair overlap, on whether the mates agree:

    outside the overlap:  8 (high quality), 6 (moderate), 4 (low), 2 (bad)
    mates agree:          12 (both high quality), 10 (otherwise)
    mates disagree:       3, 2 or 1 for equal high, moderate or low
                          qualities; 5 for the higher, 0 for the lower
                          quality otherwise.

  Positions without a clear winner fall back to the reference base when
  a read of high quality supports it. A consensus that moves more than
  five bases away from the reference is reverted to the template.

  Duplex Consensus:

  Duplex UMIs have two parts separated by '_'. The two strands of a
  molecule carry swapped parts, e.g. AAT_CCG and CCG_AAT. Sub-clusters
  whose UMIs pair up this way are merged into a duplex consensus; bases
  where the strands disagree are set to N with quality 0. A duplex whose
  strands differ by more than DuplexMismatchThreshold bases is dropped.

  Output:

  Every consensus record carries an FR tag with the number of forward
  strand reads that support it, and duplex consensus records also an RR
  tag with the reverse strand count. Records are written in coordinate
  order: groups are resolved once the input has moved past their last
  possible position, and an output buffer holds back records until no
  record below them can appear anymore.

  Statistics of the input and the output are logged at the end, and
  optionally written as a TSV metrics file and a JSON report. They include
  an estimate of the library size computed from the paired molecules and,
  given a BED file of target regions, the on-target read and base counts.
*/
package consensus
