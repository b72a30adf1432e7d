package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDepartment(t *testing.T) {
	cases := []struct {
		raw  string
		want Department
		ok   bool
	}{
		{"1", DepartmentCardiology, true},
		{"18", DepartmentPhysicalTherapy, true},
		{"cardiology", DepartmentCardiology, true},
		{" ENT ", DepartmentENT, true},
		{"InternalMedicine", DepartmentInternalMedicine, true},
		{"0", 0, false},
		{"19", 0, false},
		{"astrology", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDepartment(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.raw)
		}
	}
}

func TestDepartments(t *testing.T) {
	all := Departments()
	assert.Len(t, all, 18)
	for _, d := range all {
		assert.True(t, d.Valid())
		assert.NotContains(t, d.String(), "Department(")
	}
	assert.Equal(t, "Department(42)", Department(42).String())
}

func TestDepartmentDisplayName(t *testing.T) {
	assert.Equal(t, "Internal Medicine", DepartmentInternalMedicine.DisplayName())
	assert.Equal(t, "Cardiology", DepartmentCardiology.DisplayName())
	assert.Equal(t, "Department(99)", Department(99).DisplayName())
}
