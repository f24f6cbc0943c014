/*Package interval loads sets of genomic target regions from BED files.
  Overlapping and adjacent intervals are merged, not tracked separately.
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
