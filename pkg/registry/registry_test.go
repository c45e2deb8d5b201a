package registry

import (
	"PICs_Gallery/config"
	"PICs_Gallery/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, 15, r.Len())

	e, ok := r.Lookup("photography_1")
	require.True(t, ok)
	assert.Equal(t, "photography", e.Category)
	assert.Equal(t, 1.5, e.Weight)

	assert.Equal(t, []string{"bangla", "english", "illustrations", "photography"}, r.Categories())
}

func TestEntry_Unregistered(t *testing.T) {
	e := Default().Entry("mystery")
	assert.Equal(t, models.DefaultCategory, e.Category)
	assert.Equal(t, 1.0, e.Weight)
	assert.Equal(t, "mystery", e.DisplayName)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]models.TableEntry{{TableName: "a"}, {TableName: "a"}})
	assert.Error(t, err)

	_, err = New([]models.TableEntry{{TableName: ""}})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig([]config.TableConfig{
		{Name: "T1", Category: "x"},
		{Name: "T2", Category: "y", Weight: 1.5, Display: "Table Two"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, r.TableNames())
	assert.Equal(t, 1.0, r.Entry("T1").Weight)
	assert.Equal(t, "T1", r.Entry("T1").DisplayName)
	assert.Equal(t, "Table Two", r.Entry("T2").DisplayName)

	def, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Len(), def.Len())
}
