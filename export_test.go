package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "Model", Order: 0, Cells: map[int]map[int]Cell{
			0: {0: {Value: "Revenue"}, 1: {Value: 100}},
			1: {1: {Formula: "=B1*2"}, 2: {Value: "check"}},
		}},
		{ID: "s2", Name: "Notes", Order: 1, Cells: map[int]map[int]Cell{
			0: {0: {Value: "draft"}},
		}},
	})

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, exportSnapshot(st, path))

	sheets, err := importWorkbook(path)
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.Equal(t, "Model", sheets[0].Name)
	assert.Equal(t, 0, sheets[0].Order)
	assert.Equal(t, "Revenue", sheets[0].Cells[0][0].Value)
	assert.Equal(t, "=B1*2", sheets[0].Cells[1][1].Formula)

	assert.Equal(t, "Notes", sheets[1].Name)
	assert.Equal(t, "draft", sheets[1].Cells[0][0].Value)
}

func TestImportMissingFile(t *testing.T) {
	_, err := importWorkbook(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}
