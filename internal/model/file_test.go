package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtensionAllowed(t *testing.T) {
	allowed := []string{"scan.pdf", "report.DOCX", "image.JPG", "x-ray.dcm", "cipher.enc", "archive.zip"}
	for _, name := range allowed {
		assert.True(t, ExtensionAllowed(name), name)
	}

	rejected := []string{"malware.exe", "script.sh", "noextension", "", "trailingdot."}
	for _, name := range rejected {
		assert.False(t, ExtensionAllowed(name), name)
	}
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)

	p = Pagination{Page: -3, PageSize: 1000}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)

	p = Pagination{Page: 3, PageSize: 10}
	p.Normalize()
	assert.Equal(t, 20, p.Offset())
}

func TestRolePrefix(t *testing.T) {
	assert.Equal(t, "DOC", RolePrefix(RoleDoctor))
	assert.Equal(t, "PAT", RolePrefix(RolePatient))
	assert.Equal(t, "ADM", RolePrefix(RoleAdmin))
	assert.Equal(t, "", RolePrefix("nurse"))

	assert.True(t, ValidRole(RoleDoctor))
	assert.False(t, ValidRole("nurse"))
}
