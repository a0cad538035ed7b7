package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "Jean Dupont", Text("  <b>Jean</b>\n\t Dupont "))
	assert.Equal(t, "a < b", Text("a &lt; b"))
}

func TestTagsDedupes(t *testing.T) {
	assert.Equal(t, []string{"vip", "lavage"}, Tags([]string{" vip", "", "lavage", "vip "}))
}

func TestASCIIFoldAndSlug(t *testing.T) {
	assert.Equal(t, "societe generale", ASCIIFold("Société Générale"))
	assert.Equal(t, "societegenerale", Slug("Société Générale"))
	assert.Equal(t, "lavageco2", Slug("Lavage & Co. #2"))
	assert.Empty(t, Slug("—!!"))
}
