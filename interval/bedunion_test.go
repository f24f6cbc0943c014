package interval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const testBED = `track name=targets
# comment
chr2	30	40
chr1	10	20	a
chr1	15	25	b
chr1	25	30
chr1	50	50
chr1	60	70
chr9	0	100
`

func testHeader(t *testing.T) *sam.Header {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	expect.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 1000, nil, nil)
	expect.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	expect.NoError(t, err)
	return header
}

func TestNewBEDUnion(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader(testBED), testHeader(t))
	expect.NoError(t, err)
	expect.EQ(t, u.nameMap["chr1"], []PosType{10, 30, 60, 70})
	expect.EQ(t, u.nameMap["chr2"], []PosType{30, 40})
	expect.EQ(t, u.Bases(), 140)
	expect.EQ(t, len(u.idMap), 2)

	expect.False(t, u.ContainsByID(0, 9))
	expect.True(t, u.ContainsByID(0, 10))
	expect.True(t, u.ContainsByID(0, 29))
	expect.False(t, u.ContainsByID(0, 30))
	expect.True(t, u.ContainsByID(1, 35))
	expect.False(t, u.ContainsByID(2, 0))
	expect.False(t, u.ContainsByID(-1, 0))
	expect.True(t, u.ContainsByName("chr9", 50))

	expect.EQ(t, u.OverlapByID(0, 0, 10), 0)
	expect.EQ(t, u.OverlapByID(0, 5, 15), 5)
	expect.EQ(t, u.OverlapByID(0, 20, 65), 15)
	expect.EQ(t, u.OverlapByID(0, 0, 1000), 30)
	expect.EQ(t, u.OverlapByID(0, 70, 80), 0)
	expect.EQ(t, u.OverlapByID(1, 39, 41), 1)
}

func TestNewBEDUnionErrors(t *testing.T) {
	for _, bed := range []string{
		"chr1\t10\n",
		"chr1\tx\t20\n",
		"chr1\t20\t10\n",
		"chr1\t-1\t10\n",
	} {
		_, err := NewBEDUnion(strings.NewReader(bed), nil)
		expect.True(t, errors.Is(errors.Invalid, err))
	}
}

func TestNewBEDUnionFromPath(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "targets.bed.gz")
	f, err := os.Create(path)
	expect.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testBED))
	expect.NoError(t, err)
	expect.NoError(t, gz.Close())
	expect.NoError(t, f.Close())

	u, err := NewBEDUnionFromPath(vcontext.Background(), path, nil)
	expect.NoError(t, err)
	expect.EQ(t, u.Bases(), 140)
	expect.Nil(t, u.idMap)
	expect.EQ(t, u.OverlapByID(0, 0, 100), 0)

	_, err = NewBEDUnionFromPath(vcontext.Background(), filepath.Join(tempDir, "missing.bed"), nil)
	expect.True(t, err != nil)
}
