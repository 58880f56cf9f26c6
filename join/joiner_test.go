package join

import "testing"

func TestType(t *testing.T) {
	tests := []struct {
		typ         Type
		name        string
		left, right bool
	}{
		{typ: InnerJoin, name: `InnerJoin`},
		{typ: LeftOuterJoin, name: `LeftOuterJoin`, left: true},
		{typ: RightOuterJoin, name: `RightOuterJoin`, right: true},
		{typ: FullOuterJoin, name: `FullOuterJoin`, left: true, right: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.typ.String() != tt.name {
				t.Errorf(`String() = %s`, tt.typ)
			}
			if tt.typ.PreservesLeft() != tt.left || tt.typ.PreservesRight() != tt.right {
				t.Errorf(`unexpected preserved sides for %s`, tt.typ)
			}
			if !tt.typ.Valid() {
				t.Errorf(`%s not valid`, tt.typ)
			}
		})
	}

	if Type(9).Valid() {
		t.Error(`unknown type reported valid`)
	}
}
