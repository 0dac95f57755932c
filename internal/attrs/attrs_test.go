package attrs

import "testing"

func TestLowerAPTable(t *testing.T) {
	cases := []struct {
		name       string
		attrs      Attributes
		want       APKind
	}{
		{"rw-all", UserRead | UserWrite | KernelRead | KernelWrite, ReadWrite},
		{"priv-only", KernelRead | KernelWrite, PrivOnly},
		{"read-only-both", UserRead | KernelRead, ReadOnly},
		{"priv-read-only", KernelRead, PrivReadOnly},
		{"execute-only", Attributes(0), PrivReadOnly},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Lower(c.attrs, false)
			if got.AP != c.want {
				t.Fatalf("AP = %v, want %v", got.AP, c.want)
			}
		})
	}
}

func TestLowerInvalidCombinationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for invalid AP combination")
		}
	}()
	Lower(UserWrite, false) // UserWrite without UserRead is not in the table
}

func TestLowerUXNPXN(t *testing.T) {
	e := Lower(UserExec|KernelExec|KernelRead, false)
	if e.UXN || e.PXN {
		t.Fatalf("UXN/PXN should be clear when both exec bits set, got %+v", e)
	}
	e = Lower(KernelRead, false)
	if !e.UXN || !e.PXN {
		t.Fatalf("UXN/PXN should be set when no exec bits set, got %+v", e)
	}
}

func TestLowerAFClearedOnDemand(t *testing.T) {
	e := Lower(KernelRead|KernelWrite|OnDemand, false)
	if e.AF {
		t.Fatalf("AF must be clear for OnDemand mappings")
	}
	e = Lower(KernelRead|KernelWrite, false)
	if !e.AF {
		t.Fatalf("AF must be set for non-OnDemand mappings")
	}
}

func TestLowerAttrIndx(t *testing.T) {
	if got := Lower(Device|KernelRead|KernelWrite, false).AttrIndx; got != 0 {
		t.Fatalf("Device AttrIndx = %d, want 0", got)
	}
	if got := Lower(KernelRead|KernelWrite, false).AttrIndx; got != 1 {
		t.Fatalf("Normal AttrIndx = %d, want 1", got)
	}
}

func TestContiguousOnlyOnWholeGroup(t *testing.T) {
	e := Lower(KernelRead|KernelWrite|Block, true)
	if !e.Contiguous {
		t.Fatalf("expected Contiguous set for whole-group Block mapping")
	}
	e = Lower(KernelRead|KernelWrite|Block, false)
	if e.Contiguous {
		t.Fatalf("Contiguous must never be set on a partial group")
	}
	e = Lower(KernelRead|KernelWrite, true)
	if e.Contiguous {
		t.Fatalf("Contiguous must never be set without Block")
	}
}
