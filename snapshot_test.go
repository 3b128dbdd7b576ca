package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceSnapshotLastWriterWins(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "First", Cells: map[int]map[int]Cell{
			0: {0: {Value: "stale"}},
		}},
		{ID: "s2", Name: "Second"},
	})
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "First"},
	})

	list := st.ListSheets()
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)

	p, err := st.ProjectTable("s1")
	require.NoError(t, err)
	assert.Nil(t, p.Values["1"]["A"], "replaced snapshot must not resurrect stale cells")

	_, err = st.ProjectTable("s2")
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestListSheetsKeepsInsertionOrder(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "b", Name: "B", Order: 9},
		{ID: "a", Name: "A", Order: 0},
		{ID: "c", Name: "C", Order: 4},
	})
	list := st.ListSheets()
	require.Len(t, list, 3)
	// Insertion order, not Order field.
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestProjectTableBounds(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "Sheet1", Cells: map[int]map[int]Cell{
			5: {3: {Value: "x"}},
		}},
	})
	p, err := st.ProjectTable("s1")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Rows)
	assert.Equal(t, 4, p.Cols)
	require.Len(t, p.Values, 6)
	require.Len(t, p.Values["1"], 4)
	assert.Equal(t, "x", p.Values["6"]["D"])
	assert.Nil(t, p.Values["1"]["A"])
	assert.Nil(t, p.Values["6"]["C"])
}

func TestProjectTableEmptySheet(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{{ID: "s1", Name: "Sheet1"}})
	p, err := st.ProjectTable("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Rows)
	assert.Equal(t, 1, p.Cols)
	assert.Nil(t, p.Values["1"]["A"])
	assert.Nil(t, p.Formulas["1"]["A"])
	assert.Empty(t, p.FormulaCells)
}

func TestProjectTableFormulasAndFormatted(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "Sheet1", Cells: map[int]map[int]Cell{
			0: {
				0: {Value: "Revenue"},
				1: {Value: 42.5, Formatted: "$42.50", Formula: "=SUM(A1:A1)"},
			},
		}},
	})
	p, err := st.ProjectTable("s1")
	require.NoError(t, err)

	// Values table shows the display value; the formula table carries the
	// formula for formula cells and mirrors the value otherwise.
	assert.Equal(t, "Revenue", p.Values["1"]["A"])
	assert.Equal(t, "Revenue", p.Formulas["1"]["A"])
	assert.Equal(t, "$42.50", p.Values["1"]["B"])
	assert.Equal(t, "=SUM(A1:A1)", p.Formulas["1"]["B"])

	require.Len(t, p.FormulaCells, 1)
	assert.Equal(t, "B1", p.FormulaCells[0].Ref)
	assert.Equal(t, "=SUM(A1:A1)", p.FormulaCells[0].Formula)
	assert.Equal(t, "$42.50", p.FormulaCells[0].Value)
}

func TestProjectAll(t *testing.T) {
	st := NewSnapshotStore()
	st.ReplaceSnapshot([]SheetSnapshot{
		{ID: "s1", Name: "One", Cells: map[int]map[int]Cell{0: {0: {Value: "a"}}}},
		{ID: "s2", Name: "Two"},
	})
	all := st.ProjectAll()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all["s1"].Values["1"]["A"])
	assert.Equal(t, 1, all["s2"].Rows)
}
