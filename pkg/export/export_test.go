package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() Dataset {
	d := Dataset{Title: "Attendance", Headers: []string{"child", "date", "present"}}
	d.AddRow("Ada Lovelace", "2024-03-01", "yes")
	d.AddRow("Bo, Jr.", "2024-03-01")
	return d
}

func TestCSVRender(t *testing.T) {
	out, err := CSV{}.Render(sample())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"child", "date", "present"}, records[0])
	assert.Equal(t, []string{"Bo, Jr.", "2024-03-01", ""}, records[2])
}

func TestPDFRender(t *testing.T) {
	out, err := PDF{}.Render(sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXRender(t *testing.T) {
	out, err := XLSX{}.Render(sample())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ada Lovelace", rows[1][0])
	assert.Equal(t, "yes", rows[1][2])
}

func TestRenderRequiresHeaders(t *testing.T) {
	for _, r := range []Renderer{CSV{}, PDF{}, XLSX{}} {
		_, err := r.Render(Dataset{})
		assert.Error(t, err, r.Extension())
	}
}

func TestForFormat(t *testing.T) {
	r, err := ForFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", r.Extension())

	_, err = ForFormat("docx")
	assert.Error(t, err)
}
