package reconcile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/wnamtool/pkg/bitmap"
	"github.com/Faultbox/wnamtool/pkg/encoding"
	"github.com/Faultbox/wnamtool/pkg/esm"
	"github.com/Faultbox/wnamtool/pkg/grid"
)

func testOptions() Options {
	return Options{
		KeepAuxiliary: true,
		ImplicitMasters: []esm.Master{
			{Name: "Morrowind.esm", Size: 79837557},
			{Name: "Tribunal.esm", Size: 4565686},
			{Name: "Bloodmoon.esm", Size: 9631798},
		},
		UpgradeMasters: []string{"Tamriel_Data.esm", "OAAB_Data.esm"},
	}
}

func filled(v byte) esm.HeightCell {
	var c esm.HeightCell
	for i := range c {
		c[i] = v
	}
	return c
}

func newSource(t *testing.T, name string, version float32, records ...esm.Record) Source {
	t.Helper()

	var buf bytes.Buffer
	h := &esm.Header{Version: version, Type: esm.FileTypeMaster, NumRecords: uint32(len(records))}
	require.NoError(t, esm.Encode(&buf, h.Record()))
	for _, r := range records {
		require.NoError(t, esm.Encode(&buf, r))
	}
	return Source{Name: name, R: bytes.NewReader(buf.Bytes()), Size: int64(buf.Len())}
}

func land(x, y int32, v byte) esm.Record {
	return esm.NewLand(esm.Coordinate{X: x, Y: y}, filled(v), false)
}

func texturedLand(x, y int32, v byte, slots map[int]uint16) esm.Record {
	var ts esm.TextureSlots
	for i, s := range slots {
		ts[i] = s
	}
	return esm.WithTextures(land(x, y, v), ts)
}

func ltex(id string, index uint32, path string) esm.Record {
	intv := make([]byte, 4)
	binary.LittleEndian.PutUint32(intv, index)
	return esm.NewRecord(esm.TagLTEX,
		esm.Subrecord{Tag: esm.TagNAME, Data: encoding.PutZString(id)},
		esm.Subrecord{Tag: esm.TagINTV, Data: intv},
		esm.Subrecord{Tag: esm.TagDATA, Data: encoding.PutZString(path)},
	)
}

func cellsOf(entries map[esm.Coordinate]byte, order ...esm.Coordinate) *grid.Cells {
	cells := grid.NewCells()
	for _, c := range order {
		cells.Set(c, filled(entries[c]))
	}
	return cells
}

func masterNames(ms []esm.Master) []string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
	}
	return names
}

func TestLoad_LaterSourceShadows(t *testing.T) {
	e := New(testOptions())
	tables, err := e.Load([]Source{
		newSource(t, "Base.esm", esm.VersionBaseline, land(0, 0, 1), land(1, 0, 1)),
		newSource(t, "Patch.esp", esm.VersionBaseline, land(0, 0, 2)),
	})
	require.NoError(t, err)

	require.Equal(t, 2, tables.Lands.Len())
	entry, ok := tables.Lands.Get(esm.Coordinate{X: 0, Y: 0})
	require.True(t, ok)
	assert.Equal(t, "Patch.esp", entry.Origin)

	cell, ok, err := esm.LandHeights(entry.Record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filled(2), cell)

	// Replacement keeps the first insertion position.
	assert.Equal(t, esm.Coordinate{X: 0, Y: 0}, tables.Lands.Oldest().Key)
}

func TestLoad_SanitizesLandWithoutHeights(t *testing.T) {
	intv := make([]byte, 8)
	binary.LittleEndian.PutUint32(intv[0:4], uint32(3))
	binary.LittleEndian.PutUint32(intv[4:8], uint32(0xFFFFFFFF)) // -1
	bare := esm.NewRecord(esm.TagLAND,
		esm.Subrecord{Tag: esm.TagINTV, Data: intv},
		esm.Subrecord{Tag: esm.TagDATA, Data: []byte{0, 0, 0, 0}},
	)

	e := New(testOptions())
	tables, err := e.Load([]Source{newSource(t, "Base.esm", esm.VersionBaseline, bare)})
	require.NoError(t, err)

	entry, ok := tables.Lands.Get(esm.Coordinate{X: 3, Y: -1})
	require.True(t, ok)

	cell, ok, err := esm.LandHeights(entry.Record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cell.IsSeaLevel())

	data, _ := entry.Record.Get(esm.TagDATA)
	assert.Equal(t, uint32(esm.LandHasHeights), binary.LittleEndian.Uint32(data)&esm.LandHasHeights)
	assert.True(t, entry.Record.Has(esm.TagVNML))
	assert.True(t, entry.Record.Has(esm.TagVHGT))
}

func TestLoad_MastersOnly(t *testing.T) {
	opts := testOptions()
	opts.MastersOnly = true
	e := New(opts)

	tables, err := e.Load([]Source{
		newSource(t, "Base.esm", esm.VersionBaseline, land(0, 0, 1)),
		newSource(t, "Patch.esp", esm.VersionBaseline, land(0, 0, 2)),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tables.Sources.Len())
	entry, _ := tables.Lands.Get(esm.Coordinate{})
	assert.Equal(t, "Base.esm", entry.Origin)
}

func TestLoad_MalformedSource(t *testing.T) {
	src := newSource(t, "Broken.esm", esm.VersionBaseline, land(0, 0, 1))
	data := src.R.(*bytes.Reader)
	full := make([]byte, data.Len())
	_, err := data.Read(full)
	require.NoError(t, err)
	data = bytes.NewReader(full[:len(full)-10])

	e := New(testOptions())
	_, err = e.Load([]Source{{Name: "Broken.esm", R: data, Size: data.Size()}})
	require.Error(t, err)
	assert.ErrorIs(t, err, esm.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "Broken.esm")
}

func TestMerge_NoChanges(t *testing.T) {
	e := New(testOptions())
	tables, err := e.Load([]Source{
		newSource(t, "Base.esm", esm.VersionBaseline, land(0, 0, 5)),
	})
	require.NoError(t, err)

	a, b := esm.Coordinate{X: 0, Y: 0}, esm.Coordinate{X: 1, Y: 0}
	cells := cellsOf(map[esm.Coordinate]byte{a: 5, b: esm.SeaLevel}, a, b)

	_, err = e.Merge(tables, cells)
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestMerge_ChangedAndSynthesized(t *testing.T) {
	e := New(testOptions())
	morrowind := newSource(t, "Morrowind.esm", esm.VersionBaseline, land(0, 0, 5))
	tables, err := e.Load([]Source{morrowind})
	require.NoError(t, err)

	changed := esm.Coordinate{X: 0, Y: 0}
	created := esm.Coordinate{X: 0, Y: 1}
	sea := esm.Coordinate{X: 1, Y: 0}
	cells := cellsOf(map[esm.Coordinate]byte{changed: 9, created: 12, sea: esm.SeaLevel}, changed, created, sea)

	plan, err := e.Merge(tables, cells)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Changed)
	assert.Equal(t, 1, plan.Synthesized)
	require.Len(t, plan.Lands, 2)
	assert.Empty(t, plan.Cells)

	c, err := esm.LandCoordinate(plan.Lands[0])
	require.NoError(t, err)
	assert.Equal(t, changed, c)
	heights, _, _ := esm.LandHeights(plan.Lands[0])
	assert.Equal(t, filled(9), heights)

	c, err = esm.LandCoordinate(plan.Lands[1])
	require.NoError(t, err)
	assert.Equal(t, created, c)
	assert.True(t, plan.Lands[1].Has(esm.TagVNML))
	assert.True(t, plan.Lands[1].Has(esm.TagVHGT))

	assert.Equal(t, esm.VersionBaseline, plan.Header.Version)
	assert.Equal(t, esm.FileTypePlugin, plan.Header.Type)
	assert.Equal(t, uint32(2), plan.Header.NumRecords)
	assert.Equal(t, []string{"Morrowind.esm", "Tribunal.esm", "Bloodmoon.esm"}, masterNames(plan.Header.Masters))
	assert.Equal(t, uint64(morrowind.Size), plan.Header.Masters[0].Size)
	assert.Equal(t, uint64(4565686), plan.Header.Masters[1].Size)

	records := plan.Records()
	require.Len(t, records, 3)
	assert.Equal(t, esm.TagTES3, records[0].Tag)
	assert.Equal(t, esm.TagLAND, records[1].Tag)
	assert.Equal(t, esm.TagLAND, records[2].Tag)
}

func TestMerge_ContributingSourcesDeclared(t *testing.T) {
	e := New(testOptions())
	tables, err := e.Load([]Source{
		newSource(t, "Morrowind.esm", esm.VersionBaseline, land(0, 0, 1)),
		newSource(t, "Unused.esm", esm.VersionBaseline),
		newSource(t, "Islands.esp", esm.VersionBaseline, land(5, 5, 1)),
	})
	require.NoError(t, err)

	c := esm.Coordinate{X: 5, Y: 5}
	plan, err := e.Merge(tables, cellsOf(map[esm.Coordinate]byte{c: 40}, c))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"Morrowind.esm", "Tribunal.esm", "Bloodmoon.esm", "Islands.esp"},
		masterNames(plan.Header.Masters))
}

func TestMerge_TextureReindexing(t *testing.T) {
	e := New(testOptions())
	tables, err := e.Load([]Source{
		newSource(t, "A.esm", esm.VersionBaseline,
			ltex("grass", 0, `Tx\Grass.dds`),
			texturedLand(0, 0, 1, map[int]uint16{0: 1, 5: 1}),
		),
		newSource(t, "B.esp", esm.VersionBaseline,
			ltex("rock", 0, `tx\rock.dds`),
			ltex("sand", 3, "tx/grass.dds"),
			texturedLand(1, 0, 1, map[int]uint16{0: 1, 1: 4, 2: 7}),
		),
	})
	require.NoError(t, err)

	a, b := esm.Coordinate{X: 0, Y: 0}, esm.Coordinate{X: 1, Y: 0}
	plan, err := e.Merge(tables, cellsOf(map[esm.Coordinate]byte{a: 3, b: 3}, a, b))
	require.NoError(t, err)

	require.Len(t, plan.Textures, 2)
	first, err := esm.ParseTexture(plan.Textures[0])
	require.NoError(t, err)
	assert.Equal(t, esm.Texture{ID: "grass", Index: 0, Path: `Tx\Grass.dds`}, first)
	second, err := esm.ParseTexture(plan.Textures[1])
	require.NoError(t, err)
	assert.Equal(t, esm.Texture{ID: "rock", Index: 1, Path: `tx\rock.dds`}, second)

	slots, ok, err := esm.LandTextures(plan.Lands[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(1), slots[0])
	assert.Equal(t, uint16(1), slots[5])

	slots, _, err = esm.LandTextures(plan.Lands[1])
	require.NoError(t, err)
	assert.Equal(t, uint16(2), slots[0], "rock gets the second index")
	assert.Equal(t, uint16(1), slots[1], "grass is shared across sources")
	assert.Equal(t, uint16(0), slots[2], "unresolved slot falls back to default")

	assert.Equal(t, uint32(4), plan.Header.NumRecords)
	records := plan.Records()
	assert.Equal(t, esm.TagLTEX, records[1].Tag)
	assert.Equal(t, esm.TagLTEX, records[2].Tag)
	assert.Equal(t, esm.TagLAND, records[3].Tag)
}

func TestMerge_VersionUpgrade(t *testing.T) {
	upgraded := float32(1.4)
	c := esm.Coordinate{X: 2, Y: 2}
	cells := cellsOf(map[esm.Coordinate]byte{c: 20}, c)

	t.Run("upgrade masters present", func(t *testing.T) {
		e := New(testOptions())
		tamriel := newSource(t, "Tamriel_Data.esm", esm.VersionBaseline)
		tables, err := e.Load([]Source{
			tamriel,
			newSource(t, "OAAB_Data.esm", esm.VersionBaseline),
			newSource(t, "Province.esp", upgraded, land(2, 2, 1)),
		})
		require.NoError(t, err)

		plan, err := e.Merge(tables, cells)
		require.NoError(t, err)

		assert.Equal(t, upgraded, plan.Header.Version)
		assert.Equal(t,
			[]string{"Morrowind.esm", "Tribunal.esm", "Bloodmoon.esm", "Tamriel_Data.esm", "OAAB_Data.esm", "Province.esp"},
			masterNames(plan.Header.Masters))
		assert.Equal(t, uint64(tamriel.Size), plan.Header.Masters[3].Size)
	})

	t.Run("upgrade master missing", func(t *testing.T) {
		e := New(testOptions())
		tables, err := e.Load([]Source{
			newSource(t, "Tamriel_Data.esm", esm.VersionBaseline),
			newSource(t, "Province.esp", upgraded, land(2, 2, 1)),
		})
		require.NoError(t, err)

		_, err = e.Merge(tables, cells)
		assert.ErrorIs(t, err, ErrMissingSource)
	})

	t.Run("newer version in unused source", func(t *testing.T) {
		e := New(testOptions())
		tables, err := e.Load([]Source{
			newSource(t, "Morrowind.esm", esm.VersionBaseline, land(2, 2, 1)),
			newSource(t, "Newer.esp", upgraded),
		})
		require.NoError(t, err)

		plan, err := e.Merge(tables, cells)
		require.NoError(t, err)
		assert.Equal(t, esm.VersionBaseline, plan.Header.Version)
	})
}

func TestMerge_PlacementRecords(t *testing.T) {
	opts := testOptions()
	opts.CreatePlacementRecords = true
	e := New(opts)
	tables, err := e.Load([]Source{newSource(t, "Morrowind.esm", esm.VersionBaseline, land(0, 0, 1))})
	require.NoError(t, err)

	existing, created := esm.Coordinate{X: 0, Y: 0}, esm.Coordinate{X: -4, Y: 7}
	plan, err := e.Merge(tables, cellsOf(map[esm.Coordinate]byte{existing: 2, created: 30}, existing, created))
	require.NoError(t, err)

	require.Len(t, plan.Cells, 1)
	assert.Equal(t, esm.NewExteriorCell(created), plan.Cells[0])

	records := plan.Records()
	require.Len(t, records, 4)
	assert.Equal(t, esm.TagCELL, records[3].Tag)
	assert.Equal(t, uint32(3), plan.Header.NumRecords)
}

func TestMerge_WithoutAuxiliary(t *testing.T) {
	opts := testOptions()
	opts.KeepAuxiliary = false
	e := New(opts)
	tables, err := e.Load(nil)
	require.NoError(t, err)

	c := esm.Coordinate{X: 1, Y: 1}
	plan, err := e.Merge(tables, cellsOf(map[esm.Coordinate]byte{c: 50}, c))
	require.NoError(t, err)

	require.Len(t, plan.Lands, 1)
	assert.False(t, plan.Lands[0].Has(esm.TagVNML))
	assert.False(t, plan.Lands[0].Has(esm.TagVHGT))
	assert.True(t, plan.Lands[0].Has(esm.TagWNAM))
}

func TestExtract(t *testing.T) {
	e := New(testOptions())
	tables, err := e.Load([]Source{
		newSource(t, "Base.esm", esm.VersionBaseline, land(-1, 2, 7), land(0, 3, 9)),
	})
	require.NoError(t, err)

	r, origin, err := e.Extract(tables)
	require.NoError(t, err)

	assert.Equal(t, esm.Coordinate{X: -1, Y: 2}, origin)
	assert.Equal(t, 18, r.Width)
	assert.Equal(t, 18, r.Height)
	assert.Equal(t, byte(7), r.At(0, 0))
	assert.Equal(t, byte(9), r.At(17, 17))
	assert.Equal(t, byte(esm.SeaLevel), r.At(9, 0))
}

func TestExtract_NoLand(t *testing.T) {
	e := New(testOptions())
	tables, err := e.Load([]Source{newSource(t, "Empty.esm", esm.VersionBaseline)})
	require.NoError(t, err)

	_, _, err = e.Extract(tables)
	assert.ErrorIs(t, err, ErrNoLandRecords)
}

func TestOpenSources_Missing(t *testing.T) {
	_, _, err := OpenSources([]string{filepath.Join(t.TempDir(), "absent.esm")})
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestExtractAndRepackFiles(t *testing.T) {
	dir := t.TempDir()
	master := filepath.Join(dir, "Morrowind.esm")
	h := &esm.Header{Version: esm.VersionBaseline, Type: esm.FileTypeMaster, NumRecords: 3}
	require.NoError(t, esm.WritePlugin(master, []esm.Record{
		h.Record(),
		land(0, 0, 10),
		land(1, 0, 20),
		land(2, 0, 30),
	}))

	ex, err := ExtractFile([]string{master}, filepath.Join(dir, "maps"), testOptions())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "maps", "0,0.bmp"), ex.Path)
	assert.Equal(t, 27, ex.Width)
	assert.Equal(t, 9, ex.Height)
	assert.Equal(t, 3, ex.Cells)

	out := filepath.Join(dir, "Edit.esp")

	// Untouched heightmap.
	_, err = RepackFile([]string{master}, ex.Path, out, testOptions())
	require.ErrorIs(t, err, ErrNoChanges)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no plugin should be written")

	// Raise one pixel of the middle cell.
	r, err := bitmap.DecodeFile(ex.Path)
	require.NoError(t, err)
	r.Set(13, 4, 99)
	require.NoError(t, bitmap.EncodeFile(ex.Path, r))

	res, err := RepackFile([]string{master}, ex.Path, out, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 0, res.Synthesized)
	assert.Contains(t, res.String(), "Morrowind.esm")

	records, err := esm.ReadFile(out, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	header, err := esm.ParseHeader(records[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.NumRecords)

	info, err := os.Stat(master)
	require.NoError(t, err)
	assert.Equal(t, uint64(info.Size()), header.Masters[0].Size)

	c, err := esm.LandCoordinate(records[1])
	require.NoError(t, err)
	assert.Equal(t, esm.Coordinate{X: 1, Y: 0}, c)
	heights, _, err := esm.LandHeights(records[1])
	require.NoError(t, err)
	assert.Equal(t, byte(99), heights[4*grid.CellSize+4])
}

func TestCloseSources_FailureVoidsResult(t *testing.T) {
	res := &RepackResult{Path: "out.esp"}
	var err error
	closeSources(func() error { return errors.New("disk gone") }, &res, &err)

	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")

	res = &RepackResult{Path: "out.esp"}
	err = nil
	closeSources(func() error { return nil }, &res, &err)
	assert.NotNil(t, res)
	assert.NoError(t, err)
}

func TestRepackFile_BadRasterName(t *testing.T) {
	_, err := RepackFile(nil, filepath.Join(t.TempDir(), "heights.bmp"), "out.esp", testOptions())
	assert.ErrorIs(t, err, grid.ErrInvalidCoordinateName)
}
