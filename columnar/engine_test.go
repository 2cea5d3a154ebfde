package columnar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/secondary/errs"
	"github.com/colstore/secondary/format"
)

// threeBlockColumn builds a u32 column spanning three blocks whose values
// are block-local, so min/max pruning can isolate single blocks.
func threeBlockColumn(t *testing.T) string {
	t.Helper()

	return buildFile(t, func(b *Builder) {
		attr, err := b.AddAttr("banded", format.AttrU32)
		require.NoError(t, err)
		for row := uint64(0); row < 3*RowsPerBlock; row++ {
			band := row / RowsPerBlock // 0, 1, 2
			require.NoError(t, b.Add(attr, row, band*1000+row%7))
		}
	})
}

func TestRowidPrefilterPrunesBlocks(t *testing.T) {
	c := openFile(t, threeBlockColumn(t))

	// Only the middle block's band intersects [1000, 1006].
	spec := Between(1000, 1006)
	it, err := c.CreateRowidPrefilter(&Filter{Attr: "banded", Range: &spec}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	require.NotNil(t, it)

	rows := drain(t, it)
	require.Len(t, rows, RowsPerBlock)
	requireAscending(t, rows)
	assert.Equal(t, uint32(RowsPerBlock), rows[0])
	assert.Equal(t, uint32(2*RowsPerBlock-1), rows[len(rows)-1])
}

func TestRowidPrefilterDeclinesWhenDense(t *testing.T) {
	c := openFile(t, threeBlockColumn(t))

	// Every block intersects the full value range: declined, not an error.
	spec := GtE(0)
	it, err := c.CreateRowidPrefilter(&Filter{Attr: "banded", Range: &spec}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	assert.Nil(t, it)
}

func TestRowidPrefilterHint(t *testing.T) {
	c := openFile(t, threeBlockColumn(t))

	spec := GtE(1000)
	it, err := c.CreateRowidPrefilter(&Filter{Attr: "banded", Range: &spec}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	require.NotNil(t, it)

	target := uint32(2*RowsPerBlock + 500)
	require.True(t, it.Hint(target))

	chunk, ok := it.NextBlock()
	require.True(t, ok)
	assert.Equal(t, target, chunk[0])
}

func TestMultiPrefilterConjunction(t *testing.T) {
	path := buildFile(t, func(b *Builder) {
		a1, err := b.AddAttr("first", format.AttrU32)
		require.NoError(t, err)
		a2, err := b.AddAttr("second", format.AttrU32)
		require.NoError(t, err)

		for row := uint64(0); row < 4*RowsPerBlock; row++ {
			// first ascends per block; second descends per block.
			require.NoError(t, b.Add(a1, row, (row/RowsPerBlock)*100))
			require.NoError(t, b.Add(a2, row, (3-row/RowsPerBlock)*100))
		}
	})

	c := openFile(t, path)

	// first >= 200 selects blocks {2,3}; second >= 200 selects {0,1}.
	// Their conjunction selects nothing.
	s1, s2 := GtE(200), GtE(200)
	it, err := c.CreateMultiPrefilter([]*Filter{
		{Attr: "first", Range: &s1},
		{Attr: "second", Range: &s2},
	}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Empty(t, drain(t, it))

	// first >= 200 AND second >= 100 selects exactly block 2.
	s3, s4 := GtE(200), GtE(100)
	it, err = c.CreateMultiPrefilter([]*Filter{
		{Attr: "first", Range: &s3},
		{Attr: "second", Range: &s4},
	}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	require.NotNil(t, it)

	rows := drain(t, it)
	require.Len(t, rows, RowsPerBlock)
	assert.Equal(t, uint32(2*RowsPerBlock), rows[0])
}

func TestAnalyzerMatchesIterator(t *testing.T) {
	values := []uint64{10, 20, 30, 40}
	path := buildFile(t, func(b *Builder) {
		attr, err := b.AddAttr("kind", format.AttrU32)
		require.NoError(t, err)
		for row := uint64(0); row < 5000; row++ {
			require.NoError(t, b.Add(attr, row, values[row%4]))
		}
	})

	c := openFile(t, path)
	filter := &Filter{Attr: "kind", Values: []uint64{20, 40}}

	it, err := c.CreateIterator(filter, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	fromIndex := drain(t, it)

	an, err := c.CreateAnalyzer(filter, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	fromScan := drain(t, an)

	assert.Equal(t, fromIndex, fromScan)
}

func TestAnalyzerExclude(t *testing.T) {
	path := buildFile(t, func(b *Builder) {
		attr, err := b.AddAttr("flag", format.AttrBool)
		require.NoError(t, err)
		for row := uint64(0); row < 100; row++ {
			require.NoError(t, b.Add(attr, row, BoolKey(row%2 == 0)))
		}
	})

	c := openFile(t, path)

	an, err := c.CreateAnalyzer(&Filter{Attr: "flag", Exclude: true, Values: []uint64{1}},
		QueryOptions{Cutoff: -1})
	require.NoError(t, err)

	rows := drain(t, an)
	require.Len(t, rows, 50)
	for _, r := range rows {
		assert.Equal(t, uint32(1), r%2)
	}
}

func TestCutoffCeiling(t *testing.T) {
	c := openFile(t, threeBlockColumn(t))

	for _, cutoff := range []int64{0, 1, 100, 1024, 5000} {
		spec := GtE(1000)
		it, err := c.CreateRowidPrefilter(&Filter{Attr: "banded", Range: &spec},
			QueryOptions{Cutoff: cutoff})
		require.NoError(t, err)
		require.NotNil(t, it)

		rows := drain(t, it)
		assert.LessOrEqual(t, int64(len(rows)), cutoff)
		assert.Equal(t, int64(len(rows)), it.Processed())
	}
}

func TestRowWindowTrimsEdges(t *testing.T) {
	values := []uint64{10, 20}
	path := buildFile(t, func(b *Builder) {
		attr, err := b.AddAttr("kind", format.AttrU32)
		require.NoError(t, err)
		for row := uint64(0); row < 1000; row++ {
			require.NoError(t, b.Add(attr, row, values[row%2]))
		}
	})

	c := openFile(t, path)

	it, err := c.CreateIterator(&Filter{Attr: "kind", Values: []uint64{20}},
		QueryOptions{MinRowID: 101, MaxRowID: 200, Cutoff: -1})
	require.NoError(t, err)
	require.NotNil(t, it)

	rows := drain(t, it)
	require.NotEmpty(t, rows)
	assert.GreaterOrEqual(t, rows[0], uint32(101))
	assert.Less(t, rows[len(rows)-1], uint32(200))
	for _, r := range rows {
		assert.Equal(t, uint32(1), r%2)
	}
}

func TestValueReads(t *testing.T) {
	path := buildFile(t, func(b *Builder) {
		num, err := b.AddAttr("num", format.AttrI64)
		require.NoError(t, err)
		str, err := b.AddAttr("str", format.AttrString)
		require.NoError(t, err)

		for row := uint64(0); row < 300; row++ {
			require.NoError(t, b.Add(num, row, I64Key(-50+int64(row))))
			if row%5 == 0 {
				require.NoError(t, b.AddNull(str, row))
			} else {
				require.NoError(t, b.AddString(str, row, "present"))
			}
		}
	})

	c := openFile(t, path)

	num, ok := c.FindAttr("num")
	require.True(t, ok)
	key, present, err := c.Value(num, 7)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, int64(-43), I64FromKey(key))

	str, ok := c.FindAttr("str")
	require.True(t, ok)

	_, present, err = c.Value(str, 10)
	require.NoError(t, err)
	assert.False(t, present)

	key, present, err = c.Value(str, 11)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, StringKey("present"), key)

	_, _, err = c.Value(num, 300)
	require.Error(t, err)
}

func TestDisableAttribute(t *testing.T) {
	path := buildFile(t, func(b *Builder) {
		_, err := b.AddAttr("keep", format.AttrU32)
		require.NoError(t, err)
		_, err = b.AddAttr("drop", format.AttrU32)
		require.NoError(t, err)

		for row := uint64(0); row < 10; row++ {
			require.NoError(t, b.Add(0, row, row))
			require.NoError(t, b.Add(1, row, row))
		}
	})

	c := openFile(t, path)
	require.True(t, c.AttrEnabled(0))
	require.True(t, c.AttrEnabled(1))

	require.NoError(t, c.DisableAttribute(1))
	assert.False(t, c.AttrEnabled(1))

	_, err := c.CreateIterator(&Filter{Attr: "drop", Values: []uint64{3}}, QueryOptions{Cutoff: -1})
	require.ErrorIs(t, err, errs.ErrAttributeNotFound)

	// The disabled bit persists across reopen; everything else is intact.
	c2 := openFile(t, path)
	assert.True(t, c2.AttrEnabled(0))
	assert.False(t, c2.AttrEnabled(1))

	it, err := c2.CreateIterator(&Filter{Attr: "keep", Values: []uint64{3}}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, drain(t, it))
}

func TestEstimateCount(t *testing.T) {
	c := openFile(t, threeBlockColumn(t))

	spec := Between(1000, 1006)
	est, err := c.EstimateCount(&Filter{Attr: "banded", Range: &spec})
	require.NoError(t, err)

	// The estimate may overcount (widened stop level) but never
	// undercounts the true single matching block.
	assert.GreaterOrEqual(t, est, int64(RowsPerBlock))
	assert.LessOrEqual(t, est, int64(3*RowsPerBlock))
}

func TestCheckStorageCleanFile(t *testing.T) {
	path := threeBlockColumn(t)

	var progress []string
	errors := CheckStorage(path, 3*RowsPerBlock, func(msg string) {
		t.Errorf("unexpected check error: %s", msg)
	}, func(msg string) {
		progress = append(progress, msg)
	})

	assert.Zero(t, errors)
	assert.NotEmpty(t, progress)
}

func TestCheckStorageDetectsCorruption(t *testing.T) {
	path := threeBlockColumn(t)

	// Stomp bytes in the middle of the first block's payload.
	corruptAt(t, path, 64, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})

	errors := CheckStorage(path, 3*RowsPerBlock, nil, nil)
	assert.NotZero(t, errors)
}

func TestOpenRejectsBadVersion(t *testing.T) {
	path := threeBlockColumn(t)

	corruptAt(t, path, 0, wireEngine.AppendUint32(nil, MinReadableVersion-1))

	_, err := Open(path)
	require.ErrorIs(t, err, errs.ErrUnsupportedVersion)
	assert.Contains(t, err.Error(), "supported range is [10, 12]")
}

func TestBlockCacheReuse(t *testing.T) {
	path := threeBlockColumn(t)
	c := openFile(t, path, WithBlockCacheBytes(64<<20))

	attr, ok := c.FindAttr("banded")
	require.True(t, ok)

	_, _, err := c.Value(attr, 5)
	require.NoError(t, err)
	_, _, err = c.Value(attr, 6)
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.caches[attr].Hits())
}

func TestBuilderSequentialRowEnforcement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cols.bin")
	b, err := NewBuilder(path)
	require.NoError(t, err)

	attr, err := b.AddAttr("x", format.AttrU32)
	require.NoError(t, err)
	require.NoError(t, b.Add(attr, 0, 1))
	require.Error(t, b.Add(attr, 2, 1))

	require.NoError(t, b.Finish())
	require.ErrorIs(t, b.Finish(), errs.ErrBuilderAlreadyFinished)
}

func TestBuilderRejectsInvalidSubblockSize(t *testing.T) {
	for _, size := range []int{0, 64, 100, 129} {
		_, err := NewBuilder(filepath.Join(t.TempDir(), "x.bin"), WithSubblockSize(size))
		require.ErrorIs(t, err, errs.ErrInvalidSubblockSize, "size %d", size)
	}

	_, err := NewBuilder(filepath.Join(t.TempDir(), "x.bin"), WithSubblockSize(256))
	require.NoError(t, err)
}

func TestDegenerateBoolFilterDeclines(t *testing.T) {
	path := buildFile(t, func(b *Builder) {
		attr, err := b.AddAttr("flag", format.AttrBool)
		require.NoError(t, err)
		for row := uint64(0); row < 100; row++ {
			require.NoError(t, b.Add(attr, row, BoolKey(row%2 == 0)))
		}
	})

	c := openFile(t, path)

	spec := Between(0, 1)
	it, err := c.CreateIterator(&Filter{Attr: "flag", Range: &spec}, QueryOptions{Cutoff: -1})
	require.NoError(t, err)
	assert.Nil(t, it)
}

func corruptAt(t *testing.T, path string, off int64, data []byte) {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt(data, off)
	require.NoError(t, err)
}
