package catalog

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
)

const (
	fpA = "00000000000000ff0000000000000f0f"
	fpB = "ffffffffffffffff"
)

func TestReadCSVPrefersVisualColumn(t *testing.T) {
	in := "filename,fingerprint,fingerprint_visual,fingerprint_audio_id\n" +
		"a.mp4,ignored," + fpA + ",track-1\n" +
		"b.mp4,," + fpB + ",nan\n"

	res, err := ReadCSV(strings.NewReader(in), "cat.csv")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Empty(t, res.Quarantined)

	a := res.Records[0]
	assert.Equal(t, "a.mp4", a.Filename)
	assert.Equal(t, fpA, a.Fingerprint.Pack())
	require.NotNil(t, a.AudioID)
	assert.Equal(t, "track-1", *a.AudioID)
	assert.Equal(t, 2, a.Row)
	assert.Equal(t, "cat.csv", a.Source)

	assert.Nil(t, res.Records[1].AudioID)
}

func TestReadCSVLegacyFingerprintColumn(t *testing.T) {
	res, err := ReadCSV(strings.NewReader("Filename, Fingerprint\nx.mov,"+fpB+"\n"), "legacy")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Nil(t, res.Records[0].AudioID)
	assert.Equal(t, 1, res.Records[0].Fingerprint.Len())
}

func TestReadCSVQuarantine(t *testing.T) {
	in := strings.Join([]string{
		"filename,fingerprint_visual,fingerprint_audio_id",
		"ok.mp4," + fpA + ",",
		"short.mp4,abc,",
		"nothex.mp4,zzzzzzzzzzzzzzzz,",
		"ok.mp4," + fpB + ",",
		"," + fpB + ",",
		"",
		"empty.mp4,NaN,None",
	}, "\n")

	res, err := ReadCSV(strings.NewReader(in), "q.csv")
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "ok.mp4", res.Records[0].Filename)
	assert.Equal(t, "empty.mp4", res.Records[1].Filename)
	assert.True(t, res.Records[1].Fingerprint.Empty())
	assert.Nil(t, res.Records[1].AudioID)

	require.Len(t, res.Quarantined, 4)
	assert.True(t, errors.Is(res.Quarantined[0].Err, fingerprint.ErrCorruptFingerprint))
	assert.Equal(t, 3, res.Quarantined[0].Row)
	assert.True(t, errors.Is(res.Quarantined[1], fingerprint.ErrCorruptFingerprint))
	assert.ErrorIs(t, res.Quarantined[2].Err, ErrDuplicate)
	assert.Equal(t, 5, res.Quarantined[2].Row)
	assert.ErrorIs(t, res.Quarantined[3].Err, ErrNoFilename)
	assert.Contains(t, res.Quarantined[2].Error(), "q.csv row 5")
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("name,fingerprint\na,"+fpB+"\n"), "x")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV(strings.NewReader("filename,audio\na,b\n"), "x")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV(strings.NewReader(""), "x")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestAbsent(t *testing.T) {
	for _, s := range []string{"", " ", "nan", "NaN", "None", "null", "NULL"} {
		assert.True(t, Absent(s), s)
	}
	for _, s := range []string{"0", "track", "nano"} {
		assert.False(t, Absent(s), s)
	}
}

func sampleRecords() []Record {
	id := "track-9"
	return []Record{
		{Filename: "a.mp4", Fingerprint: fingerprint.MustUnpack(fpA), AudioID: &id},
		{Filename: "b.mp4", Fingerprint: fingerprint.MustUnpack(fpB)},
		{Filename: "c.mp4", Fingerprint: fingerprint.Fingerprint{}},
	}
}

func assertSameRecords(t *testing.T, want, got []Record) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Filename, got[i].Filename)
		assert.True(t, want[i].Fingerprint.Equal(got[i].Fingerprint), want[i].Filename)
		assert.Equal(t, want[i].AudioID, got[i].AudioID)
	}
}

func TestWriteCSVThenRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))
	assert.True(t, strings.HasPrefix(buf.String(), "filename,fingerprint_visual,fingerprint_audio_id\n"))

	res, err := ReadCSV(&buf, "round")
	require.NoError(t, err)
	assert.Empty(t, res.Quarantined)
	assertSameRecords(t, sampleRecords(), res.Records)
}

func TestXLSXFileThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprint_tbl.xlsx")
	require.NoError(t, WriteXLSXFile(path, sampleRecords()))

	res, err := ReadXLSX(path, "")
	require.NoError(t, err)
	assert.Empty(t, res.Quarantined)
	assertSameRecords(t, sampleRecords(), res.Records)
	assert.Equal(t, "fingerprint_tbl.xlsx", res.Records[0].Source)

	_, err = ReadXLSX(path, "NoSuchSheet")
	assert.Error(t, err)
}

func TestXLSXStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords()))

	res, err := ReadXLSXFrom(&buf, "upload.xlsx", DefaultSheet)
	require.NoError(t, err)
	assertSameRecords(t, sampleRecords(), res.Records)
}

func TestResultEntries(t *testing.T) {
	res := &Result{Records: sampleRecords()}
	entries := res.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, models.CatalogEntry{Filename: "b.mp4", Fingerprint: fpB}, entries[1])
	assert.Equal(t, "", entries[2].Fingerprint)
}

func TestFromVideo(t *testing.T) {
	rec, err := FromVideo(models.Video{Filename: "v.mp4", Fingerprint: fpA})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Fingerprint.Len())
	assert.Equal(t, 2, rec.Video().FrameCount)

	_, err = FromVideo(models.Video{Filename: "bad.mp4", Fingerprint: "123"})
	assert.ErrorIs(t, err, fingerprint.ErrCorruptFingerprint)
}

func TestFromDocs(t *testing.T) {
	id := "track-2"
	res := fromDocs("videos", []mongoDoc{
		{Filename: "a.mp4", FingerprintVisual: fpA, AudioID: &id},
		{Filename: "b.mp4", Fingerprint: fpB},
		{Filename: "c.mp4", FingerprintVisual: "bad"},
	})
	require.Len(t, res.Records, 2)
	assert.Equal(t, "track-2", *res.Records[0].AudioID)
	assert.Equal(t, fpB, res.Records[1].Fingerprint.Pack())
	require.Len(t, res.Quarantined, 1)
	assert.Equal(t, 3, res.Quarantined[0].Row)
}

func TestMongoSource(t *testing.T) {
	uri := os.Getenv("VISUALDNA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("VISUALDNA_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src, err := NewMongoSource(ctx, uri, "visualdna_test", "catalog_"+time.Now().Format("150405.000000"))
	require.NoError(t, err)
	defer src.Close(ctx)
	defer src.coll.Drop(ctx)

	require.NoError(t, src.Upsert(ctx, sampleRecords()))
	require.NoError(t, src.Upsert(ctx, sampleRecords()[:1]))

	res, err := src.Load(ctx)
	require.NoError(t, err)
	assertSameRecords(t, sampleRecords(), res.Records)
}
