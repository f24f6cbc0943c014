package reference

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/gencore/encoding/fasta"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const testFasta = ">chr1 first\nACGTN\nacgt\n>chr2\nGGCC\n"

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

func testRefs(t *testing.T) []*sam.Reference {
	var refs []*sam.Reference
	for _, name := range []string{"chr1", "chr2", "chr3"} {
		ref, err := sam.NewReference(name, "", "", 100, nil, nil)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	h, err := sam.NewHeader(nil, refs)
	require.NoError(t, err)
	return h.Refs()
}

func TestBases(t *testing.T) {
	fa, err := fasta.New(strings.NewReader(testFasta))
	require.NoError(t, err)
	r := New(fa, testRefs(t))

	b, ok := r.Bases(0, 2, 5)
	expect.True(t, ok)
	expect.EQ(t, b, []byte{4, 8, 15, 1, 2})
	b, ok = r.Bases(1, 0, 4)
	expect.True(t, ok)
	expect.EQ(t, b, []byte{4, 4, 2, 2})
	b, ok = r.Bases(0, 0, 9)
	expect.True(t, ok)
	expect.EQ(t, len(b), 9)

	// chr3 is in the header but not in the FASTA.
	_, ok = r.Bases(2, 0, 1)
	expect.False(t, ok)
	// Unknown reference ID.
	_, ok = r.Bases(7, 0, 1)
	expect.False(t, ok)

	// Running past the end disables the contig from then on.
	_, ok = r.Bases(1, 2, 3)
	expect.False(t, ok)
	_, ok = r.Bases(1, 0, 1)
	expect.False(t, ok)
	_, ok = r.Bases(0, 0, 1)
	expect.True(t, ok)
}

func TestLoad(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	plain := filepath.Join(tmpDir, "ref.fa")
	require.NoError(t, ioutil.WriteFile(plain, []byte(testFasta), 0644))

	gz := filepath.Join(tmpDir, "ref.fa.gz")
	f, err := os.Create(gz)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(testFasta))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	indexed := filepath.Join(tmpDir, "indexed.fa")
	require.NoError(t, ioutil.WriteFile(indexed, []byte(testFasta), 0644))
	require.NoError(t, ioutil.WriteFile(indexed+".fai", []byte("chr1\t9\t12\t5\t6\nchr2\t4\t29\t4\t5\n"), 0644))

	for _, path := range []string{plain, gz, indexed} {
		r, err := Load(ctx, path, testRefs(t))
		require.NoError(t, err, path)
		b, ok := r.Bases(0, 4, 5)
		expect.True(t, ok, path)
		expect.EQ(t, b, []byte{15, 1, 2, 4, 8}, path)
		b, ok = r.Bases(1, 1, 2)
		expect.True(t, ok, path)
		expect.EQ(t, b, []byte{4, 2}, path)
		require.NoError(t, r.Close(ctx))
	}

	_, err = Load(ctx, filepath.Join(tmpDir, "missing.fa"), testRefs(t))
	require.Error(t, err)
}
