package docxfill

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func batchRecords(t *testing.T, names ...string) []*Record {
	t.Helper()
	var recs []*Record
	for _, name := range names {
		rec := NewRecord()
		require.NoError(t, rec.SetText("Name", name))
		recs = append(recs, rec)
	}
	return recs
}

func outputText(t *testing.T, fpath string) string {
	t.Helper()
	d, err := OpenDocument(fpath)
	require.NoError(t, err)
	defer d.Close()
	return d.Plaintext()
}

func TestBatchRun(t *testing.T) {
	letter := DocxFixture{Body: P(R("Dear "), SDT("Name", R("name")))}.Write(t, "letter.docx")
	memo := DocxFixture{Body: P(R("To: "), SDT("Name", R("name")))}.Write(t, "memo.docx")
	out := filepath.Join(t.TempDir(), "out", "nested")

	b := &Batch{
		Workers:   3,
		OutputDir: out,
		Options:   DefaultOptions(),
		Logger:    zaptest.NewLogger(t),
	}
	res := b.Run(context.Background(), []string{letter, memo}, batchRecords(t, "Alice", "Bob"))
	require.NoError(t, res.Err())

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 4, res.Total())
	require.Len(t, res.Jobs, 4)

	want := map[string]string{
		"letter_1.docx": "Dear Alice",
		"letter_2.docx": "Dear Bob",
		"memo_1.docx":   "To: Alice",
		"memo_2.docx":   "To: Bob",
	}
	for _, job := range res.Jobs {
		name := filepath.Base(job.Output)
		require.Contains(t, want, name)
		assert.Equal(t, want[name], outputText(t, job.Output))
		require.NotNil(t, job.Report)
		assert.Equal(t, []string{"Name"}, job.Report.Replaced)
		assert.Equal(t, 1, job.Report.Comments)
	}

	// runs do not share id
	again := b.Run(context.Background(), []string{letter}, batchRecords(t, "Carol"))
	assert.NotEqual(t, res.RunID, again.RunID)
}

func TestBatchDistinctNames(t *testing.T) {
	first := DocxFixture{Body: P(SDT("Name", R("x")))}.Write(t, "contract.docx")
	second := DocxFixture{Body: P(SDT("Name", R("y")))}.Write(t, "Contract.docx")

	b := &Batch{OutputDir: t.TempDir(), NamePattern: "{template}", Options: DefaultOptions()}
	res := b.Run(context.Background(), []string{first, second}, batchRecords(t, "A", "B"))
	require.NoError(t, res.Err())

	var names []string
	for _, job := range res.Jobs {
		names = append(names, filepath.Base(job.Output))
		_, err := os.Stat(job.Output)
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"contract.docx", "contract_2.docx", "Contract_3.docx", "Contract_4.docx"}, names)
}

func TestBatchFailureIsolation(t *testing.T) {
	good := DocxFixture{Body: P(SDT("Name", R("x")))}.Write(t, "good.docx")
	missing := filepath.Join(t.TempDir(), "missing.docx")
	strict := DocxFixture{Body: P(SDT("Unknown", R("x")))}.Write(t, "strict.docx")

	opts := DefaultOptions()
	opts.Missing = MissingFail
	b := &Batch{Workers: 2, OutputDir: t.TempDir(), Options: opts}
	res := b.Run(context.Background(), []string{good, missing, strict}, batchRecords(t, "A", "B"))

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 4, res.Failed)
	assert.Len(t, res.Errors, 4)
	require.Error(t, res.Err())

	for _, job := range res.Jobs {
		_, statErr := os.Stat(job.Output)
		if job.Template == good {
			assert.NoError(t, job.Err)
			assert.NoError(t, statErr)
			continue
		}
		assert.Error(t, job.Err)
		assert.True(t, os.IsNotExist(statErr), "no output for failed document %s", job.Output)
		if job.Template == strict {
			assert.ErrorIs(t, job.Err, ErrUnboundPlaceholder)
			assert.True(t, IsKind(job.Err, BindingError))
		}
	}
}

func TestBatchCancelled(t *testing.T) {
	tpl := DocxFixture{Body: P(SDT("Name", R("x")))}.Write(t, "t.docx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := t.TempDir()
	b := &Batch{OutputDir: out, Options: DefaultOptions()}
	res := b.Run(ctx, []string{tpl}, batchRecords(t, "A", "B", "C"))

	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, 0, res.Succeeded)
	assert.NoError(t, res.Err())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBatchOutputDirFailure(t *testing.T) {
	tpl := DocxFixture{Body: P(SDT("Name", R("x")))}.Write(t, "t.docx")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	b := &Batch{OutputDir: filepath.Join(blocker, "out"), Options: DefaultOptions()}
	res := b.Run(context.Background(), []string{tpl}, batchRecords(t, "A", "B"))
	assert.Equal(t, 2, res.Failed)
	assert.True(t, IsKind(res.Err(), IOError))
}

func TestBatchEmpty(t *testing.T) {
	res := (&Batch{}).Run(context.Background(), nil, nil)
	assert.Equal(t, 0, res.Total())
	assert.NoError(t, res.Err())
}

func TestExpandName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "letter_3.docx", expandName(DefaultNamePattern, "/x/letter.docx", 3, ts))
	assert.Equal(t, "letter-20240309_140507-1.docx", expandName("{template}-{timestamp}-{index}", "letter.docx", 1, ts))
	assert.Equal(t, "out_1.docm", expandName("out_{index}.docm", "letter.docx", 1, ts))
}

func TestUniqueName(t *testing.T) {
	seen := map[string]bool{}
	assert.Equal(t, "a.docx", uniqueName("a.docx", seen))
	assert.Equal(t, "A_2.docx", uniqueName("A.docx", seen))
	assert.Equal(t, "a_3.docx", uniqueName("a.docx", seen))
	assert.Equal(t, "b.docx", uniqueName("b.docx", seen))
}

func TestNewBatchFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 7
	cfg.Missing = "fail"
	cfg.Comments.Enabled = false

	b := NewBatch(cfg, nil)
	assert.Equal(t, 7, b.Workers)
	assert.Equal(t, "output", b.OutputDir)
	assert.Equal(t, MissingFail, b.Options.Missing)
	assert.False(t, b.Options.Comments)
	assert.Equal(t, DefaultColor, b.Options.Policy.Color)
}
