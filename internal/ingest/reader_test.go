package ingest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
)

func TestReadCSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFItem,Cat,Qty,Sales\nWidget,Tools,\"1,200\",50\n,,,\nBolt,Hardware,3\n")

	table, err := ReadCSV(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Cat", "Qty", "Sales"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, analysis.RawRow{"Item": "Widget", "Cat": "Tools", "Qty": "1,200", "Sales": "50"}, table.Rows[0])
	assert.Nil(t, table.Rows[1]["Sales"])
}

func TestReadCSV_Delimiters(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "semicolon", data: "Item;Cat;Qty\na;b;1\n"},
		{name: "tab", data: "Item\tCat\tQty\na\tb\t1\n"},
		{name: "pipe", data: "Item|Cat|Qty\na|b|1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, []string{"Item", "Cat", "Qty"}, table.Headers)
			assert.Equal(t, "1", table.Rows[0]["Qty"])
		})
	}
}

func TestReadCSV_Windows1252(t *testing.T) {
	// 0xE9 is "é" in windows-1252 and invalid on its own in UTF-8
	data := []byte("Item,Cat\nCaf\xE9,Drinks\n")
	table, err := ReadCSV(data)
	require.NoError(t, err)
	assert.Equal(t, "Café", table.Rows[0]["Item"])
}

func TestReadCSV_HeaderCleanup(t *testing.T) {
	table, err := ReadCSV([]byte("Name,,Name,Stock,,\nx,y,z,1,,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "column_2", "Name_2", "Stock"}, table.Headers)
	assert.Equal(t, "z", table.Rows[0]["Name_2"])
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV([]byte("\n\n"))
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Item", "Cat", "Qty", "Sales"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Widget", "Tools", 12, 4.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Bolt", "Hardware", 7}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := ReadXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Cat", "Qty", "Sales"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "12", table.Rows[0]["Qty"])
	assert.Equal(t, "4.5", table.Rows[0]["Sales"])
	assert.Nil(t, table.Rows[1]["Sales"])
}

func TestReadJSON(t *testing.T) {
	data := []byte(`[
		{"Item": "Widget", "Qty": 12, "Cat": "Tools"},
		{"Item": "Bolt", "Cat": null, "Price": "1.5", "Tags": ["a"]}
	]`)

	table, err := ReadJSON(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Qty", "Cat", "Price", "Tags"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 12.0, table.Rows[0]["Qty"])
	assert.Nil(t, table.Rows[0]["Price"])
	assert.Nil(t, table.Rows[1]["Cat"])
	assert.Nil(t, table.Rows[1]["Qty"])
	assert.Equal(t, `["a"]`, table.Rows[1]["Tags"])
}

func TestReadJSON_Invalid(t *testing.T) {
	_, err := ReadJSON([]byte(`{"Item": "x"}`))
	assert.Error(t, err)

	_, err = ReadJSON([]byte(`[]`))
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestDecode(t *testing.T) {
	table, err := Decode("export.CSV", []byte("Item,Qty\na,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Qty"}, table.Headers)

	_, err = Decode("export.pdf", []byte("x"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
